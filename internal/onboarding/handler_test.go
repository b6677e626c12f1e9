package onboarding

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voluntree/backend/internal/middleware"
	"github.com/voluntree/backend/pkg/response"
)

func newTestRouter(t *testing.T, userID uuid.UUID) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine, _, _, _, _ := newTestEngine()
	h := NewHandler(engine, nil, nil, 0, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextUserID, userID) })
	vol := r.Group("/onboarding/volunteer")
	{
		vol.GET("/progress", h.VolunteerProgress)
		vol.GET("/steps/:step", h.VolunteerStep)
		vol.POST("/steps/:step", h.VolunteerSubmit)
		vol.POST("/steps/:step/skip", h.VolunteerSkip)
		vol.POST("/steps/:step/autosave", h.VolunteerAutoSave)
		vol.POST("/verification/upload-url", h.VerificationUploadURL)
	}
	return r
}

func doJSON(r *gin.Engine, method, url, body string) (*httptest.ResponseRecorder, response.Body) {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env response.Body
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestVolunteerSubmitEndpoint(t *testing.T) {
	r := newTestRouter(t, uuid.New())

	w, env := doJSON(r, http.MethodPost, "/onboarding/volunteer/steps/basic_info", basicInfoJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.Success)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var res Result
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, StepProfileDetails, res.NextStep)
	assert.False(t, res.Completed)
}

func TestVolunteerSubmitValidationEndpoint(t *testing.T) {
	r := newTestRouter(t, uuid.New())

	w, env := doJSON(r, http.MethodPost, "/onboarding/volunteer/steps/basic_info", `{"full_name":"A"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "validation failed", env.Error)
	assert.Contains(t, env.Fields, "phone")
}

func TestVolunteerSubmitOutOfOrderEndpoint(t *testing.T) {
	r := newTestRouter(t, uuid.New())

	w, env := doJSON(r, http.MethodPost, "/onboarding/volunteer/steps/profile_details", profileDetailsJSON)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, env.Error, StepBasicInfo)
}

func TestVolunteerUnknownStepEndpoint(t *testing.T) {
	r := newTestRouter(t, uuid.New())

	w, _ := doJSON(r, http.MethodPost, "/onboarding/volunteer/steps/nope", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVolunteerInvalidBodyEndpoint(t *testing.T) {
	r := newTestRouter(t, uuid.New())

	w, env := doJSON(r, http.MethodPost, "/onboarding/volunteer/steps/basic_info", `{"full_name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "body must be valid JSON", env.Error)
}

func TestVolunteerAutoSaveEndpoint(t *testing.T) {
	r := newTestRouter(t, uuid.New())

	// partial data a strict submit would reject
	w, env := doJSON(r, http.MethodPost, "/onboarding/volunteer/steps/basic_info/autosave", `{"full_name":"A"}`)
	require.Equal(t, http.StatusOK, w.Code)
	data, _ := json.Marshal(env.Data)
	assert.JSONEq(t, `{"saved":true}`, string(data))

	// saved draft is returned for form pre-fill, not completed
	w, env = doJSON(r, http.MethodGet, "/onboarding/volunteer/steps/basic_info", "")
	require.Equal(t, http.StatusOK, w.Code)
	data, _ = json.Marshal(env.Data)
	var rec struct {
		StepName    string          `json:"step_name"`
		StepData    json.RawMessage `json:"step_data"`
		IsCompleted bool            `json:"is_completed"`
	}
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, StepBasicInfo, rec.StepName)
	assert.False(t, rec.IsCompleted)
	assert.JSONEq(t, `{"full_name":"A"}`, string(rec.StepData))
}

func TestVolunteerSkipEndpoint(t *testing.T) {
	r := newTestRouter(t, uuid.New())

	doJSON(r, http.MethodPost, "/onboarding/volunteer/steps/basic_info", basicInfoJSON)
	doJSON(r, http.MethodPost, "/onboarding/volunteer/steps/profile_details", profileDetailsJSON)

	w, _ := doJSON(r, http.MethodPost, "/onboarding/volunteer/steps/verification/skip", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := doJSON(r, http.MethodPost, "/onboarding/volunteer/steps/interests/skip", "")
	require.Equal(t, http.StatusOK, w.Code)
	data, _ := json.Marshal(env.Data)
	var res Result
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, StepVerification, res.NextStep)
}

func TestVolunteerProgressEndpoint(t *testing.T) {
	r := newTestRouter(t, uuid.New())

	doJSON(r, http.MethodPost, "/onboarding/volunteer/steps/basic_info", basicInfoJSON)

	w, env := doJSON(r, http.MethodGet, "/onboarding/volunteer/progress", "")
	require.Equal(t, http.StatusOK, w.Code)
	data, _ := json.Marshal(env.Data)
	var p Progress
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, 1, p.CompletedCount)
	assert.Equal(t, 4, p.TotalRequired)
	assert.Equal(t, 25, p.Percentage)
	assert.Len(t, p.Steps, 4)
}

func TestUploadURLWithoutS3(t *testing.T) {
	r := newTestRouter(t, uuid.New())

	w, env := doJSON(r, http.MethodPost, "/onboarding/volunteer/verification/upload-url",
		`{"file_name":"passport.pdf","content_type":"application/pdf"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, env.Success)
}
