package organizations

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voluntree/backend/internal/middleware"
	"github.com/voluntree/backend/internal/models"
	"github.com/voluntree/backend/pkg/response"
)

// Handler handles organization HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates an organizations handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// JoinOrganizationRequest is the body for POST /organizations/join.
type JoinOrganizationRequest struct {
	Slug string `json:"slug" binding:"required"`
}

// GetBySlug handles GET /organizations/:slug. Public organization profile.
func (h *Handler) GetBySlug(c *gin.Context) {
	slug := strings.ToLower(strings.TrimSpace(c.Param("slug")))
	org, err := h.repo.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		response.NotFound(c, "organization not found")
		return
	}
	response.OK(c, org)
}

// JoinOrganization handles POST /organizations/join. Adds current user to an
// org by slug as a member.
func (h *Handler) JoinOrganization(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var body JoinOrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "slug required")
		return
	}
	slug := strings.ToLower(strings.TrimSpace(body.Slug))
	if slug == "" {
		response.BadRequest(c, "slug required")
		return
	}
	org, err := h.repo.GetBySlug(c.Request.Context(), slug)
	if err != nil || org == nil {
		response.NotFound(c, "organization not found")
		return
	}
	if err := h.repo.AddUser(c.Request.Context(), org.ID, userID, models.OrgRoleMember); err != nil {
		response.Internal(c, "failed to join organization")
		return
	}
	response.OK(c, org)
}

// ListMyOrganizations handles GET /organizations. Returns orgs the current
// user is a member of.
func (h *Handler) ListMyOrganizations(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	orgs, err := h.repo.ListOrganizationsForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load organizations")
		return
	}
	response.OK(c, orgs)
}

// ListMembers handles GET /organizations/:id/members. Requires org access
// (owner or coordinator).
func (h *Handler) ListMembers(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	ok, err := h.repo.UserHasOrgAccess(c.Request.Context(), orgID, userID)
	if err != nil || !ok {
		response.Forbidden(c, "not authorized for this organization")
		return
	}
	members, err := h.repo.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, members)
}
