package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voluntree/backend/internal/auth"
	"github.com/voluntree/backend/internal/models"
	"github.com/voluntree/backend/pkg/queue"
)

// Service fans registration and application events out to in-app
// notifications, the WebSocket hub, and the email queue. Delivery is best
// effort; a failed side channel never fails the triggering request.
type Service struct {
	repo   *Repository
	hub    *Hub
	queue  *queue.Queue
	users  *auth.Repository
	logger *zap.Logger
}

// NewService creates a notification service. hub and q may be nil.
func NewService(repo *Repository, hub *Hub, q *queue.Queue, users *auth.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, hub: hub, queue: q, users: users, logger: logger}
}

// VolunteerRegistered is called when a volunteer finishes onboarding.
func (s *Service) VolunteerRegistered(ctx context.Context, userID uuid.UUID) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Error("welcome notification: load user failed", zap.Error(err), zap.String("user_id", userID.String()))
		return
	}

	n := &models.Notification{
		UserID: userID,
		Type:   models.NotificationWelcome,
		Title:  "Welcome to Voluntree!",
		Body:   "Your registration is complete. Browse opportunities and start volunteering.",
	}
	s.deliver(ctx, n)
	s.email(ctx, queue.EmailPayload{
		EmailType:      queue.EmailTypeWelcome,
		UserID:         &userID,
		RecipientEmail: user.Email,
		Subject:        "Welcome to Voluntree",
		BodyText: fmt.Sprintf("Hi %s,\n\nYour volunteer registration is complete. You can now apply to opportunities.\n\nThe Voluntree Team",
			user.FullName),
	})
}

// OrganizationRegistered is called when an organization wizard finishes and
// the organization row exists.
func (s *Service) OrganizationRegistered(ctx context.Context, orgID uuid.UUID, contactEmail string) {
	if contactEmail != "" {
		s.email(ctx, queue.EmailPayload{
			EmailType:      queue.EmailTypeOrganizationCreated,
			RecipientEmail: contactEmail,
			Subject:        "Your organization is registered on Voluntree",
			BodyText:       "Your organization profile has been created. Sign in to publish volunteering opportunities.\n\nThe Voluntree Team",
		})
	}

	// notify the owner in-app when the draft was attached to an account
	owner, err := s.repo.OrganizationOwner(ctx, orgID)
	if err != nil || owner == uuid.Nil {
		return
	}
	n := &models.Notification{
		UserID: owner,
		Type:   models.NotificationOrganizationCreated,
		Title:  "Organization registered",
		Body:   "Your organization profile is live. You can now publish opportunities.",
	}
	s.deliver(ctx, n)
}

// ApplicationStatusChanged is called when an organization decides an
// application.
func (s *Service) ApplicationStatusChanged(ctx context.Context, userID uuid.UUID, opportunityTitle, status string) {
	n := &models.Notification{
		UserID: userID,
		Type:   models.NotificationApplicationStatus,
		Title:  fmt.Sprintf("Application %s", status),
		Body:   fmt.Sprintf("Your application for %q was %s.", opportunityTitle, status),
	}
	s.deliver(ctx, n)

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return
	}
	s.email(ctx, queue.EmailPayload{
		EmailType:      queue.EmailTypeApplicationStatus,
		UserID:         &userID,
		RecipientEmail: user.Email,
		Subject:        fmt.Sprintf("Your application was %s", status),
		BodyText: fmt.Sprintf("Hi %s,\n\nYour application for %q was %s.\n\nThe Voluntree Team",
			user.FullName, opportunityTitle, status),
	})
}

func (s *Service) deliver(ctx context.Context, n *models.Notification) {
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Error("create notification failed", zap.Error(err), zap.String("type", n.Type))
		return
	}
	if s.hub != nil {
		s.hub.Push(n.UserID, "notification", n)
	}
}

func (s *Service) email(ctx context.Context, payload queue.EmailPayload) {
	if s.queue == nil {
		return
	}
	log := &models.EmailLog{
		UserID:         payload.UserID,
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
	}
	if err := s.repo.CreateEmailLog(ctx, log); err != nil {
		s.logger.Error("create email log failed", zap.Error(err), zap.String("email_type", payload.EmailType))
	} else {
		payload.EmailLogID = &log.ID
	}
	if err := s.queue.EnqueueEmail(ctx, payload); err != nil {
		s.logger.Error("enqueue email failed", zap.Error(err), zap.String("email_type", payload.EmailType))
	}
}
