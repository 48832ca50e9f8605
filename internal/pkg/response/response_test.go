package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/regflow_go_server/internal/client"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// serve 执行一次 handler 并解析统一响应
func serve(t *testing.T, write func(c *gin.Context)) Response {
	t.Helper()

	router := gin.New()
	router.GET("/test", write)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSuccess(t *testing.T) {
	resp := serve(t, func(c *gin.Context) {
		Success(c, gin.H{"phase_status": "In Progress"})
	})

	assert.Equal(t, CodeSuccess, resp.Code)
	assert.Equal(t, "success", resp.Message)
	assert.Equal(t, map[string]interface{}{"phase_status": "In Progress"}, resp.Data)
}

func TestConflictWarning(t *testing.T) {
	t.Run("warning replaces the message", func(t *testing.T) {
		resp := serve(t, func(c *gin.Context) {
			ConflictWarning(c, "Phase already started", gin.H{"phase_status": "In Progress"})
		})

		assert.Equal(t, CodeSuccess, resp.Code)
		assert.Equal(t, "Phase already started", resp.Message)
		assert.NotNil(t, resp.Data)
	})

	t.Run("no warning is a plain success", func(t *testing.T) {
		resp := serve(t, func(c *gin.Context) { ConflictWarning(c, "", nil) })

		assert.Equal(t, CodeSuccess, resp.Code)
		assert.Equal(t, "success", resp.Message)
		assert.Nil(t, resp.Data)
	})
}

func TestErrorHelpers(t *testing.T) {
	helpers := []struct {
		name       string
		write      func(*gin.Context, string)
		code       int
		defaultMsg string
	}{
		{"param", ParamError, CodeParamError, "Invalid parameters"},
		{"auth", AuthError, CodeAuthFailed, "Authentication failed"},
		{"permission", PermissionError, CodePermissionDenied, "Permission denied"},
		{"not found", NotFoundError, CodeResourceNotFound, "Resource not found"},
		{"conflict", ConflictError, CodeConflict, "Resource state conflict"},
		{"duplicate", DuplicateError, CodeDuplicateAction, "Duplicate action"},
		{"server", ServerError, CodeServerError, "Internal server error"},
	}

	for _, h := range helpers {
		t.Run(h.name, func(t *testing.T) {
			resp := serve(t, func(c *gin.Context) { h.write(c, "") })
			assert.Equal(t, h.code, resp.Code)
			assert.Equal(t, h.defaultMsg, resp.Message)
			assert.Nil(t, resp.Data)

			resp = serve(t, func(c *gin.Context) { h.write(c, "Assignment is already completed") })
			assert.Equal(t, h.code, resp.Code)
			assert.Equal(t, "Assignment is already completed", resp.Message)
		})
	}

	t.Run("unknown code has no default", func(t *testing.T) {
		resp := serve(t, func(c *gin.Context) { Error(c, 9999, "") })
		assert.Equal(t, 9999, resp.Code)
		assert.Empty(t, resp.Message)
	})
}

func TestUpstreamError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantMessage string
	}{
		{"backend detail is surfaced", &client.APIError{StatusCode: http.StatusInternalServerError, Detail: "rule engine offline"}, CodeUpstreamError, "rule engine offline"},
		{"generic message without detail", &client.APIError{StatusCode: http.StatusBadGateway}, CodeUpstreamError, "Regulatory backend request failed"},
		{"not found", &client.APIError{StatusCode: http.StatusNotFound, Detail: "Report not found"}, CodeResourceNotFound, "Report not found"},
		{"conflict", &client.APIError{StatusCode: http.StatusConflict, Detail: "Phase already completed"}, CodeConflict, "Phase already completed"},
		{"validation error", &client.APIError{StatusCode: http.StatusUnprocessableEntity}, CodeParamError, "Invalid parameters"},
		{"forbidden", &client.APIError{StatusCode: http.StatusForbidden}, CodePermissionDenied, "Permission denied"},
		{"transport error", assert.AnError, CodeUpstreamError, "Regulatory backend request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := serve(t, func(c *gin.Context) { UpstreamError(c, tt.err) })
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantMessage, resp.Message)
		})
	}
}
