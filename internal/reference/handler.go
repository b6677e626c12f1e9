package reference

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/voluntree/backend/internal/models"
	redisclient "github.com/voluntree/backend/pkg/redis"
	"github.com/voluntree/backend/pkg/response"
)

const cacheTTL = 12 * time.Hour

// Handler handles reference data HTTP endpoints. Rows are cached in Redis;
// reference data changes only with a reseed.
type Handler struct {
	repo  *Repository
	cache *redisclient.Client
}

// NewHandler creates a reference handler. cache may be nil.
func NewHandler(repo *Repository, cache *redisclient.Client) *Handler {
	return &Handler{repo: repo, cache: cache}
}

// Countries handles GET /reference/countries.
func (h *Handler) Countries(c *gin.Context) {
	var list []models.Country
	if h.cache != nil && h.cache.GetJSON(c.Request.Context(), "ref:countries", &list) {
		response.OK(c, list)
		return
	}
	list, err := h.repo.Countries(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to load countries")
		return
	}
	if h.cache != nil {
		h.cache.SetJSON(c.Request.Context(), "ref:countries", list, cacheTTL)
	}
	response.OK(c, list)
}

// Cities handles GET /reference/countries/:id/cities.
func (h *Handler) Cities(c *gin.Context) {
	countryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid country id")
		return
	}
	key := fmt.Sprintf("ref:cities:%d", countryID)
	var list []models.City
	if h.cache != nil && h.cache.GetJSON(c.Request.Context(), key, &list) {
		response.OK(c, list)
		return
	}
	list, err = h.repo.CitiesByCountry(c.Request.Context(), countryID)
	if err != nil {
		response.Internal(c, "failed to load cities")
		return
	}
	if h.cache != nil {
		h.cache.SetJSON(c.Request.Context(), key, list, cacheTTL)
	}
	response.OK(c, list)
}

// Categories handles GET /reference/categories?kind=volunteer|organization.
func (h *Handler) Categories(c *gin.Context) {
	kind := c.DefaultQuery("kind", models.CategoryKindVolunteer)
	if kind != models.CategoryKindVolunteer && kind != models.CategoryKindOrganization {
		response.BadRequest(c, "kind must be volunteer or organization")
		return
	}
	key := "ref:categories:" + kind
	var list []models.Category
	if h.cache != nil && h.cache.GetJSON(c.Request.Context(), key, &list) {
		response.OK(c, list)
		return
	}
	list, err := h.repo.Categories(c.Request.Context(), kind)
	if err != nil {
		response.Internal(c, "failed to load categories")
		return
	}
	if h.cache != nil {
		h.cache.SetJSON(c.Request.Context(), key, list, cacheTTL)
	}
	response.OK(c, list)
}
