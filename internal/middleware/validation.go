package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/temcen/remedy/internal/validation"
)

const maxValidatedBodyBytes = 32 << 20

// ValidationMiddleware checks request bodies against JSON schemas before they reach handlers
type ValidationMiddleware struct {
	validator *validation.SchemaValidator
}

func NewValidationMiddleware(validator *validation.SchemaValidator) *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validator,
	}
}

func (vm *ValidationMiddleware) ValidateFitRequest() gin.HandlerFunc {
	return vm.validateRequestBody(validation.SchemaFitRequest, false)
}

func (vm *ValidationMiddleware) ValidateInteractionBatch() gin.HandlerFunc {
	return vm.validateRequestBody(validation.SchemaInteractionBatch, false)
}

// ValidateRefitRequest allows an empty body, meaning "use the configured rank".
func (vm *ValidationMiddleware) ValidateRefitRequest() gin.HandlerFunc {
	return vm.validateRequestBody(validation.SchemaRefitRequest, true)
}

func (vm *ValidationMiddleware) validateRequestBody(schemaName string, allowEmpty bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxValidatedBodyBytes+1))
		if err != nil {
			vm.sendValidationError(c, "BODY_READ_ERROR", "Failed to read request body", nil)
			return
		}
		if len(bodyBytes) > maxValidatedBodyBytes {
			vm.sendValidationError(c, "BODY_TOO_LARGE", "Request body is too large", nil)
			return
		}

		// Restore request body for downstream handlers
		c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		if len(bytes.TrimSpace(bodyBytes)) == 0 {
			if allowEmpty {
				c.Next()
				return
			}
			vm.sendValidationError(c, "EMPTY_BODY", "Request body is required", nil)
			return
		}

		result := vm.validator.Validate(schemaName, bodyBytes)
		if !result.Valid {
			vm.sendValidationError(c, "SCHEMA_ERROR", "Request validation failed", map[string]interface{}{
				"validationErrors": result.Errors,
				"fieldErrors":      result.FieldErrors(),
			})
			return
		}

		c.Next()
	}
}

func (vm *ValidationMiddleware) sendValidationError(c *gin.Context, code, message string, details map[string]interface{}) {
	errorObj := gin.H{
		"code":      code,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"requestId": uuid.New().String(),
		"path":      c.Request.URL.Path,
		"method":    c.Request.Method,
	}
	if details != nil {
		errorObj["details"] = details
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errorObj})
}
