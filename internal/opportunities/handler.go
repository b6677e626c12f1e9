package opportunities

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voluntree/backend/internal/middleware"
	"github.com/voluntree/backend/internal/models"
	"github.com/voluntree/backend/internal/organizations"
	"github.com/voluntree/backend/pkg/response"
)

// Handler handles opportunity HTTP endpoints.
type Handler struct {
	repo    *Repository
	orgRepo *organizations.Repository
	logger  *zap.Logger
}

// NewHandler creates an opportunities handler.
func NewHandler(repo *Repository, orgRepo *organizations.Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, orgRepo: orgRepo, logger: logger}
}

// CreateRequest is the body for POST /opportunities.
type CreateRequest struct {
	OrganizationID string     `json:"organization_id" binding:"required,uuid"`
	Title          string     `json:"title" binding:"required,max=255"`
	Description    string     `json:"description"`
	CategoryID     *int64     `json:"category_id"`
	CityID         *int64     `json:"city_id"`
	Address        string     `json:"address"`
	StartsAt       time.Time  `json:"starts_at" binding:"required"`
	EndsAt         *time.Time `json:"ends_at"`
	Capacity       int        `json:"capacity"`
	Published      bool       `json:"published"`
}

// UpdateRequest is the body for PUT /opportunities/:id.
type UpdateRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	Capacity    *int       `json:"capacity"`
}

// Create handles POST /opportunities. Caller must manage the organization.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	ok, _ := h.orgRepo.UserHasOrgAccess(c.Request.Context(), orgID, userID)
	if !ok {
		response.Forbidden(c, "not authorized for this organization")
		return
	}
	if req.EndsAt != nil && !req.EndsAt.After(req.StartsAt) {
		response.BadRequest(c, "ends_at must be after starts_at")
		return
	}

	o := &models.Opportunity{
		OrganizationID: orgID,
		Title:          req.Title,
		Description:    req.Description,
		CategoryID:     req.CategoryID,
		CityID:         req.CityID,
		Address:        req.Address,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		Capacity:       req.Capacity,
		Published:      req.Published,
		CreatedBy:      userID,
	}
	if err := h.repo.Create(c.Request.Context(), o); err != nil {
		h.logger.Error("create opportunity failed", zap.Error(err))
		response.Internal(c, "failed to create opportunity")
		return
	}
	response.Created(c, o)
}

// Get handles GET /opportunities/:id. Public.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid opportunity id")
		return
	}
	o, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "opportunity not found")
		return
	}
	response.OK(c, o)
}

// List handles GET /opportunities. Public, published listings only; filters by
// organization_id, category_id, city_id query params.
func (h *Handler) List(c *gin.Context) {
	f := ListFilter{PublishedOnly: true}
	if v := c.Query("organization_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid organization_id")
			return
		}
		f.OrganizationID = &id
	}
	if v := c.Query("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.BadRequest(c, "invalid category_id")
			return
		}
		f.CategoryID = &id
	}
	if v := c.Query("city_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.BadRequest(c, "invalid city_id")
			return
		}
		f.CityID = &id
	}
	list, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		response.Internal(c, "failed to list opportunities")
		return
	}
	response.OK(c, list)
}

// Update handles PUT /opportunities/:id. Behind RequireOpportunityOrgAccess.
func (h *Handler) Update(c *gin.Context) {
	id, _ := uuid.Parse(c.Param("id"))
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.repo.Update(c.Request.Context(), id, req.Title, req.Description, req.StartsAt, req.EndsAt, req.Capacity); err != nil {
		response.Internal(c, "failed to update opportunity")
		return
	}
	o, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load opportunity")
		return
	}
	response.OK(c, o)
}

// Publish handles POST /opportunities/:id/publish and /unpublish. Behind
// RequireOpportunityOrgAccess.
func (h *Handler) Publish(published bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := uuid.Parse(c.Param("id"))
		if err := h.repo.SetPublished(c.Request.Context(), id, published); err != nil {
			response.Internal(c, "failed to update opportunity")
			return
		}
		response.OK(c, gin.H{"id": id, "published": published})
	}
}

// Delete handles DELETE /opportunities/:id. Behind RequireOpportunityOrgAccess.
func (h *Handler) Delete(c *gin.Context) {
	id, _ := uuid.Parse(c.Param("id"))
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to delete opportunity")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}
