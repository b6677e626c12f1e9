package analytics

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voluntree/backend/pkg/response"
)

// Handler handles admin analytics endpoints.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler creates an analytics handler.
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// FunnelStep is one step's counts in the onboarding funnel.
type FunnelStep struct {
	StepName  string `json:"step_name"`
	Started   int    `json:"started"`
	Completed int    `json:"completed"`
}

// FunnelResponse is the JSON shape for GET /analytics/onboarding.
type FunnelResponse struct {
	VolunteerSteps       []FunnelStep `json:"volunteer_steps"`
	OrganizationSteps    []FunnelStep `json:"organization_steps"`
	VolunteersFinalized  int          `json:"volunteers_finalized"`
	OrganizationsCreated int          `json:"organizations_created"`
	DraftsOpen           int          `json:"drafts_open"`
}

// OnboardingFunnel handles GET /analytics/onboarding (admin only). Per-step
// started/completed counts show where subjects drop out of the wizard.
func (h *Handler) OnboardingFunnel(c *gin.Context) {
	ctx := c.Request.Context()
	out := FunnelResponse{}

	var err error
	out.VolunteerSteps, err = h.funnel(c, `SELECT step_name, COUNT(*), COUNT(*) FILTER (WHERE is_completed)
		FROM user_registration_steps GROUP BY step_name ORDER BY step_name`)
	if err != nil {
		response.Internal(c, "failed to load volunteer funnel")
		return
	}
	out.OrganizationSteps, err = h.funnel(c, `SELECT step_name, COUNT(*), COUNT(*) FILTER (WHERE is_completed)
		FROM organization_registration_steps GROUP BY step_name ORDER BY step_name`)
	if err != nil {
		response.Internal(c, "failed to load organization funnel")
		return
	}

	if err := h.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM registration_finalizations WHERE flow = 'volunteer'`).
		Scan(&out.VolunteersFinalized); err != nil {
		response.Internal(c, "failed to load finalization counts")
		return
	}
	if err := h.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM organization_drafts WHERE organization_id IS NOT NULL`).
		Scan(&out.OrganizationsCreated); err != nil {
		response.Internal(c, "failed to load conversion counts")
		return
	}
	if err := h.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM organization_drafts WHERE organization_id IS NULL AND expires_at > NOW()`).
		Scan(&out.DraftsOpen); err != nil {
		response.Internal(c, "failed to load draft counts")
		return
	}

	response.OK(c, out)
}

func (h *Handler) funnel(c *gin.Context, q string) ([]FunnelStep, error) {
	rows, err := h.pool.Query(c.Request.Context(), q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var steps []FunnelStep
	for rows.Next() {
		var s FunnelStep
		if err := rows.Scan(&s.StepName, &s.Started, &s.Completed); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// TotalsResponse is the JSON shape for GET /analytics/totals.
type TotalsResponse struct {
	Users           int     `json:"users"`
	RegisteredUsers int     `json:"registered_users"`
	Organizations   int     `json:"organizations"`
	Opportunities   int     `json:"opportunities"`
	Applications    int     `json:"applications"`
	HoursLogged     float64 `json:"hours_logged"`
}

// PlatformTotals handles GET /analytics/totals (admin only).
func (h *Handler) PlatformTotals(c *gin.Context) {
	ctx := c.Request.Context()
	var out TotalsResponse
	const q = `SELECT
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM users WHERE registered_at IS NOT NULL),
		(SELECT COUNT(*) FROM organizations),
		(SELECT COUNT(*) FROM opportunities),
		(SELECT COUNT(*) FROM applications),
		(SELECT COALESCE(SUM(hours), 0) FROM volunteer_hours)`
	if err := h.pool.QueryRow(ctx, q).Scan(&out.Users, &out.RegisteredUsers,
		&out.Organizations, &out.Opportunities, &out.Applications, &out.HoursLogged); err != nil {
		response.Internal(c, "failed to load platform totals")
		return
	}
	response.OK(c, out)
}
