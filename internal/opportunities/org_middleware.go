package opportunities

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voluntree/backend/internal/middleware"
	"github.com/voluntree/backend/internal/organizations"
	"github.com/voluntree/backend/pkg/response"
)

// ContextOrganizationID is the context key for organization ID when org
// access is enforced.
const ContextOrganizationID = "organization_id"

// RequireOpportunityOrgAccess validates that the user manages the
// opportunity's organization. Call after JWT.
func RequireOpportunityOrgAccess(oppRepo *Repository, orgRepo *organizations.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		oppID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid opportunity id")
			c.Abort()
			return
		}
		o, err := oppRepo.GetByID(c.Request.Context(), oppID)
		if err != nil || o == nil {
			response.NotFound(c, "opportunity not found")
			c.Abort()
			return
		}
		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		ok, _ := orgRepo.UserHasOrgAccess(c.Request.Context(), o.OrganizationID, userID)
		if !ok {
			response.Forbidden(c, "not authorized for this organization")
			c.Abort()
			return
		}
		c.Set(ContextOrganizationID, o.OrganizationID)
		c.Next()
	}
}
