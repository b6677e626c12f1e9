package applications

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voluntree/backend/internal/auth"
	"github.com/voluntree/backend/internal/middleware"
	"github.com/voluntree/backend/internal/models"
	"github.com/voluntree/backend/internal/opportunities"
	"github.com/voluntree/backend/internal/organizations"
	"github.com/voluntree/backend/pkg/response"
)

// StatusNotifier is told when an organization decides an application.
type StatusNotifier interface {
	ApplicationStatusChanged(ctx context.Context, userID uuid.UUID, opportunityTitle, status string)
}

// Handler handles application HTTP endpoints.
type Handler struct {
	repo     *Repository
	oppRepo  *opportunities.Repository
	orgRepo  *organizations.Repository
	users    *auth.Repository
	notifier StatusNotifier
	logger   *zap.Logger
}

// NewHandler creates an applications handler. notifier may be nil.
func NewHandler(repo *Repository, oppRepo *opportunities.Repository, orgRepo *organizations.Repository, users *auth.Repository, notifier StatusNotifier, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, oppRepo: oppRepo, orgRepo: orgRepo, users: users, notifier: notifier, logger: logger}
}

// ApplyRequest is the body for POST /opportunities/:id/apply.
type ApplyRequest struct {
	Message string `json:"message" binding:"max=2000"`
}

// Apply handles POST /opportunities/:id/apply. Only volunteers who finished
// onboarding may apply.
func (h *Handler) Apply(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	oppID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid opportunity id")
		return
	}
	var req ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		response.Unauthorized(c, "user not found")
		return
	}
	if !user.IsRegistered() {
		response.Forbidden(c, "complete registration before applying")
		return
	}

	opp, err := h.oppRepo.GetByID(c.Request.Context(), oppID)
	if err != nil {
		response.NotFound(c, "opportunity not found")
		return
	}
	if !opp.Published {
		response.NotFound(c, "opportunity not found")
		return
	}

	a := &models.Application{OpportunityID: oppID, UserID: userID, Message: req.Message}
	if err := h.repo.Create(c.Request.Context(), a); err != nil {
		if errors.Is(err, ErrAlreadyApplied) {
			response.Conflict(c, "already applied to this opportunity")
			return
		}
		h.logger.Error("create application failed", zap.Error(err))
		response.Internal(c, "failed to apply")
		return
	}
	response.Created(c, a)
}

// ListMine handles GET /applications. Volunteer's own applications.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list applications")
		return
	}
	response.OK(c, list)
}

// ListByOpportunity handles GET /opportunities/:id/applications. Behind
// RequireOpportunityOrgAccess.
func (h *Handler) ListByOpportunity(c *gin.Context) {
	oppID, _ := uuid.Parse(c.Param("id"))
	list, err := h.repo.ListByOpportunity(c.Request.Context(), oppID)
	if err != nil {
		response.Internal(c, "failed to list applications")
		return
	}
	response.OK(c, list)
}

// DecideRequest is the body for PATCH /applications/:id.
type DecideRequest struct {
	Status string `json:"status" binding:"required,oneof=accepted rejected"`
}

// Decide handles PATCH /applications/:id. Organization accepts or rejects a
// pending application.
func (h *Handler) Decide(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid application id")
		return
	}
	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status must be accepted or rejected")
		return
	}

	a, err := h.repo.GetByID(c.Request.Context(), appID)
	if err != nil {
		response.NotFound(c, "application not found")
		return
	}
	opp, err := h.oppRepo.GetByID(c.Request.Context(), a.OpportunityID)
	if err != nil {
		response.NotFound(c, "opportunity not found")
		return
	}
	ok, _ := h.orgRepo.UserHasOrgAccess(c.Request.Context(), opp.OrganizationID, userID)
	if !ok {
		response.Forbidden(c, "not authorized for this organization")
		return
	}
	if a.Status != models.ApplicationPending {
		response.Conflict(c, "application already decided")
		return
	}

	updated, err := h.repo.UpdateStatus(c.Request.Context(), appID, req.Status)
	if err != nil {
		response.Internal(c, "failed to update application")
		return
	}
	if h.notifier != nil {
		h.notifier.ApplicationStatusChanged(c.Request.Context(), a.UserID, opp.Title, updated.Status)
	}
	response.OK(c, updated)
}

// Withdraw handles POST /applications/:id/withdraw. Volunteer withdraws their
// own pending or accepted application.
func (h *Handler) Withdraw(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid application id")
		return
	}
	a, err := h.repo.GetByID(c.Request.Context(), appID)
	if err != nil || a.UserID != userID {
		response.NotFound(c, "application not found")
		return
	}
	if a.Status != models.ApplicationPending && a.Status != models.ApplicationAccepted {
		response.Conflict(c, "application cannot be withdrawn")
		return
	}
	updated, err := h.repo.UpdateStatus(c.Request.Context(), appID, models.ApplicationWithdrawn)
	if err != nil {
		response.Internal(c, "failed to withdraw application")
		return
	}
	response.OK(c, updated)
}
