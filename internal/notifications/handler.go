package notifications

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voluntree/backend/internal/middleware"
	"github.com/voluntree/backend/pkg/response"
)

// Handler handles notification HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a notifications handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// List handles GET /notifications?limit=N.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.repo.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		response.Internal(c, "failed to list notifications")
		return
	}
	unread, err := h.repo.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to count notifications")
		return
	}
	response.OK(c, gin.H{"notifications": list, "unread": unread})
}

// MarkRead handles POST /notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	if err := h.repo.MarkRead(c.Request.Context(), id, userID); err != nil {
		response.Internal(c, "failed to mark notification read")
		return
	}
	response.OK(c, gin.H{"read": true})
}

// MarkAllRead handles POST /notifications/read-all.
func (h *Handler) MarkAllRead(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.repo.MarkAllRead(c.Request.Context(), userID); err != nil {
		response.Internal(c, "failed to mark notifications read")
		return
	}
	response.OK(c, gin.H{"read": true})
}
