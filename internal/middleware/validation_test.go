package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/remedy/internal/validation"
)

func TestValidationMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	validator, err := validation.NewSchemaValidator()
	require.NoError(t, err)
	vm := NewValidationMiddleware(validator)

	echo := func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(body))
	}

	router := gin.New()
	router.POST("/fit", vm.ValidateFitRequest(), echo)
	router.POST("/refit", vm.ValidateRefitRequest(), echo)
	router.POST("/interactions", vm.ValidateInteractionBatch(), echo)

	valid := `{"interactions":[{"machine_id":"M1","action_id":1,"score":4}]}`

	tests := []struct {
		name           string
		path           string
		body           string
		expectedStatus int
	}{
		{"valid fit body reaches handler", "/fit", valid, http.StatusOK},
		{"fit without interactions", "/fit", `{"components":2}`, http.StatusBadRequest},
		{"fit with empty body", "/fit", "", http.StatusBadRequest},
		{"refit with empty body", "/refit", "", http.StatusOK},
		{"refit with zero components", "/refit", `{"components":0}`, http.StatusBadRequest},
		{"batch with negative action", "/interactions", `{"interactions":[{"machine_id":"M1","action_id":-1,"score":4}]}`, http.StatusBadRequest},
		{"batch that is not JSON", "/interactions", `machine_id,action_id,score`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.body, w.Body.String(), "body must be restored for the handler")
			}
		})
	}
}
