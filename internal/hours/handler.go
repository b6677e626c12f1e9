package hours

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voluntree/backend/internal/applications"
	"github.com/voluntree/backend/internal/middleware"
	"github.com/voluntree/backend/internal/models"
	"github.com/voluntree/backend/internal/opportunities"
	"github.com/voluntree/backend/internal/organizations"
	"github.com/voluntree/backend/pkg/response"
)

// Handler handles volunteer hour HTTP endpoints.
type Handler struct {
	repo    *Repository
	appRepo *applications.Repository
	oppRepo *opportunities.Repository
	orgRepo *organizations.Repository
	logger  *zap.Logger
}

// NewHandler creates an hours handler.
func NewHandler(repo *Repository, appRepo *applications.Repository, oppRepo *opportunities.Repository, orgRepo *organizations.Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, appRepo: appRepo, oppRepo: oppRepo, orgRepo: orgRepo, logger: logger}
}

// LogRequest is the body for POST /hours.
type LogRequest struct {
	OpportunityID string  `json:"opportunity_id" binding:"required,uuid"`
	WorkedOn      string  `json:"worked_on" binding:"required,datetime=2006-01-02"`
	Hours         float64 `json:"hours" binding:"required,gt=0,lte=24"`
	Note          string  `json:"note" binding:"max=1000"`
}

// Log handles POST /hours. The volunteer must hold an accepted application on
// the opportunity.
func (h *Handler) Log(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req LogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	oppID, _ := uuid.Parse(req.OpportunityID)
	workedOn, _ := time.Parse("2006-01-02", req.WorkedOn)

	accepted := false
	apps, err := h.appRepo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to check application")
		return
	}
	for i := range apps {
		if apps[i].OpportunityID == oppID && apps[i].Status == models.ApplicationAccepted {
			accepted = true
			break
		}
	}
	if !accepted {
		response.Forbidden(c, "no accepted application for this opportunity")
		return
	}

	e := &models.HourEntry{
		OpportunityID: oppID,
		UserID:        userID,
		WorkedOn:      workedOn,
		Hours:         req.Hours,
		Note:          req.Note,
	}
	if err := h.repo.Log(c.Request.Context(), e); err != nil {
		h.logger.Error("log hours failed", zap.Error(err))
		response.Internal(c, "failed to log hours")
		return
	}
	response.Created(c, e)
}

// ListMine handles GET /hours. Volunteer's own entries.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list hours")
		return
	}
	response.OK(c, list)
}

// MyTotals handles GET /hours/totals.
func (h *Handler) MyTotals(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	t, err := h.repo.TotalsByUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to total hours")
		return
	}
	response.OK(c, t)
}

// ListByOpportunity handles GET /opportunities/:id/hours. Behind
// RequireOpportunityOrgAccess.
func (h *Handler) ListByOpportunity(c *gin.Context) {
	oppID, _ := uuid.Parse(c.Param("id"))
	list, err := h.repo.ListByOpportunity(c.Request.Context(), oppID)
	if err != nil {
		response.Internal(c, "failed to list hours")
		return
	}
	response.OK(c, list)
}

// Confirm handles POST /hours/:id/confirm. The caller must manage the
// organization behind the entry's opportunity.
func (h *Handler) Confirm(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid entry id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "entry not found")
		return
	}
	opp, err := h.oppRepo.GetByID(c.Request.Context(), e.OpportunityID)
	if err != nil {
		response.NotFound(c, "opportunity not found")
		return
	}
	ok, _ := h.orgRepo.UserHasOrgAccess(c.Request.Context(), opp.OrganizationID, userID)
	if !ok {
		response.Forbidden(c, "not authorized for this organization")
		return
	}
	if err := h.repo.Confirm(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to confirm entry")
		return
	}
	e.Confirmed = true
	response.OK(c, e)
}
