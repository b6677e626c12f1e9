package onboarding

import (
	"encoding/json"
	"errors"
	"io"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voluntree/backend/internal/middleware"
	"github.com/voluntree/backend/internal/models"
	"github.com/voluntree/backend/pkg/response"
	"github.com/voluntree/backend/pkg/storage"
)

const (
	// SessionHeader carries the organization draft session token.
	SessionHeader = "X-Onboarding-Session"
	// ContextDraft is the gin context key for the validated draft session.
	ContextDraft = "onboarding_draft"
)

// Handler exposes the registration wizard over HTTP.
type Handler struct {
	engine   *Engine
	drafts   *DraftRepository
	s3       *storage.S3
	draftTTL time.Duration
	logger   *zap.Logger
}

// NewHandler creates an onboarding handler. s3 may be nil when document
// uploads are disabled.
func NewHandler(engine *Engine, drafts *DraftRepository, s3 *storage.S3, draftTTL time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, drafts: drafts, s3: s3, draftTTL: draftTTL, logger: logger}
}

func (h *Handler) renderError(c *gin.Context, err error) {
	var orderErr *StepOrderError
	var valErr *ValidationError
	switch {
	case errors.Is(err, ErrUnknownStep):
		response.NotFound(c, "unknown step")
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "step not started")
	case errors.Is(err, ErrNotSkippable):
		response.BadRequest(c, "this step cannot be skipped")
	case errors.As(err, &orderErr):
		response.Conflict(c, "complete step "+orderErr.Missing+" first")
	case errors.As(err, &valErr):
		response.ValidationFailed(c, valErr.Fields)
	default:
		h.logger.Error("onboarding request failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
		response.Internal(c, "registration step failed, please retry")
	}
}

func readJSONBody(c *gin.Context) (json.RawMessage, bool) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "unreadable request body")
		return nil, false
	}
	if len(raw) > 0 && !json.Valid(raw) {
		response.BadRequest(c, "body must be valid JSON")
		return nil, false
	}
	return raw, true
}

func volunteerSubject(c *gin.Context) string {
	return c.MustGet(middleware.ContextUserID).(uuid.UUID).String()
}

// VolunteerStep handles GET /onboarding/volunteer/steps/:step. Returns the
// saved record so a revisited form can be pre-filled.
func (h *Handler) VolunteerStep(c *gin.Context) {
	rec, err := h.engine.Step(c.Request.Context(), FlowVolunteer, volunteerSubject(c), c.Param("step"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.OK(c, rec)
}

// VolunteerSubmit handles POST /onboarding/volunteer/steps/:step.
func (h *Handler) VolunteerSubmit(c *gin.Context) {
	raw, ok := readJSONBody(c)
	if !ok {
		return
	}
	res, err := h.engine.Submit(c.Request.Context(), FlowVolunteer, volunteerSubject(c), c.Param("step"), raw)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.OK(c, res)
}

// VolunteerSkip handles POST /onboarding/volunteer/steps/:step/skip.
func (h *Handler) VolunteerSkip(c *gin.Context) {
	res, err := h.engine.Skip(c.Request.Context(), FlowVolunteer, volunteerSubject(c), c.Param("step"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.OK(c, res)
}

// VolunteerAutoSave handles POST /onboarding/volunteer/steps/:step/autosave.
// Persistence failures are soft: they are logged and reported as saved=false
// so the client's typing is never blocked.
func (h *Handler) VolunteerAutoSave(c *gin.Context) {
	raw, ok := readJSONBody(c)
	if !ok {
		return
	}
	h.autoSave(c, FlowVolunteer, volunteerSubject(c), raw)
}

// VolunteerProgress handles GET /onboarding/volunteer/progress.
func (h *Handler) VolunteerProgress(c *gin.Context) {
	p, err := h.engine.Progress(c.Request.Context(), FlowVolunteer, volunteerSubject(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.OK(c, p)
}

func (h *Handler) autoSave(c *gin.Context, flow FlowName, subject string, raw json.RawMessage) {
	err := h.engine.SaveDraft(c.Request.Context(), flow, subject, c.Param("step"), raw)
	if errors.Is(err, ErrUnknownStep) {
		response.NotFound(c, "unknown step")
		return
	}
	if err != nil {
		h.logger.Warn("auto-save failed", zap.Error(err),
			zap.String("flow", string(flow)), zap.String("step", c.Param("step")))
		response.OK(c, gin.H{"saved": false})
		return
	}
	response.OK(c, gin.H{"saved": true})
}

// UploadURLRequest is the body for the verification upload-url endpoint.
type UploadURLRequest struct {
	FileName    string `json:"file_name" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// VerificationUploadURL handles POST /onboarding/volunteer/verification/upload-url.
// Returns a presigned PUT URL; the resulting object key goes into the
// verification step's document_key field.
func (h *Handler) VerificationUploadURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "document uploads are not configured")
		return
	}
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "file_name and content_type required")
		return
	}
	if !storage.ValidateDocumentType(req.ContentType, req.FileName) {
		response.BadRequest(c, "unsupported document type")
		return
	}
	key := storage.VerificationDocumentKey(volunteerSubject(c), path.Base(req.FileName))
	url, err := h.s3.GeneratePresignedUploadURL(c.Request.Context(), h.s3.DocumentsBucket(), key, req.ContentType, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign verification upload failed", zap.Error(err))
		response.Internal(c, "failed to create upload URL")
		return
	}
	response.OK(c, gin.H{"upload_url": url, "key": key, "expires_in_seconds": int(h.s3.PresignExpire().Seconds())})
}

// CreateDraftSession handles POST /onboarding/organization/session. Issues
// the opaque token that keys the organization wizard until the organization
// exists. Works anonymously; attaches the user when a JWT was presented.
func (h *Handler) CreateDraftSession(c *gin.Context) {
	var userID *uuid.UUID
	if v, ok := c.Get(middleware.ContextUserID); ok {
		if id, ok := v.(uuid.UUID); ok {
			userID = &id
		}
	}
	draft, err := h.drafts.Create(c.Request.Context(), userID, h.draftTTL)
	if err != nil {
		h.logger.Error("create draft session failed", zap.Error(err))
		response.Internal(c, "failed to start organization registration")
		return
	}
	response.Created(c, gin.H{"session_token": draft.Token, "expires_at": draft.ExpiresAt})
}

// DraftSession validates the X-Onboarding-Session header and puts the draft
// into the request context.
func (h *Handler) DraftSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(SessionHeader)
		if token == "" {
			response.Unauthorized(c, "missing "+SessionHeader+" header")
			c.Abort()
			return
		}
		draft, err := h.drafts.GetByToken(c.Request.Context(), token)
		if errors.Is(err, ErrDraftNotFound) {
			response.NotFound(c, "unknown onboarding session")
			c.Abort()
			return
		}
		if err != nil {
			h.logger.Error("load draft session failed", zap.Error(err))
			response.Internal(c, "failed to load onboarding session")
			c.Abort()
			return
		}
		if draft.Expired() {
			response.Gone(c, "onboarding session expired")
			c.Abort()
			return
		}
		c.Set(ContextDraft, draft)
		c.Next()
	}
}

func draftFromContext(c *gin.Context) *models.OrganizationDraft {
	return c.MustGet(ContextDraft).(*models.OrganizationDraft)
}

// OrganizationStep handles GET /onboarding/organization/steps/:step.
func (h *Handler) OrganizationStep(c *gin.Context) {
	draft := draftFromContext(c)
	rec, err := h.engine.Step(c.Request.Context(), FlowOrganization, draft.Token, c.Param("step"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.OK(c, rec)
}

// OrganizationSubmit handles POST /onboarding/organization/steps/:step. The
// final step's completion creates the organization and records it on the
// draft session.
func (h *Handler) OrganizationSubmit(c *gin.Context) {
	raw, ok := readJSONBody(c)
	if !ok {
		return
	}
	draft := draftFromContext(c)
	res, err := h.engine.Submit(c.Request.Context(), FlowOrganization, draft.Token, c.Param("step"), raw)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if res.Completed && res.OrganizationID != nil {
		if err := h.drafts.MarkConverted(c.Request.Context(), draft.Token, *res.OrganizationID); err != nil {
			h.logger.Error("mark draft converted failed", zap.Error(err),
				zap.String("organization_id", res.OrganizationID.String()))
		}
	}
	response.OK(c, res)
}

// OrganizationAutoSave handles POST /onboarding/organization/steps/:step/autosave.
func (h *Handler) OrganizationAutoSave(c *gin.Context) {
	raw, ok := readJSONBody(c)
	if !ok {
		return
	}
	h.autoSave(c, FlowOrganization, draftFromContext(c).Token, raw)
}

// OrganizationProgress handles GET /onboarding/organization/progress.
func (h *Handler) OrganizationProgress(c *gin.Context) {
	p, err := h.engine.Progress(c.Request.Context(), FlowOrganization, draftFromContext(c).Token)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.OK(c, p)
}
