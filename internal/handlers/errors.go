package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/remedy/internal/ml"
	"github.com/temcen/remedy/internal/services"
)

func errorResponse(code, message string, details gin.H) gin.H {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	return gin.H{"error": body}
}

// respondError maps recommender errors to HTTP statuses. Anything unrecognized is logged and reported as 500.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var (
		schemaErr  *ml.SchemaError
		rankErr    *ml.PrecondRankError
		unknownErr *ml.UnknownMachineError
	)

	switch {
	case errors.As(err, &schemaErr):
		c.JSON(http.StatusBadRequest, errorResponse("SCHEMA_ERROR", err.Error(), gin.H{
			"field": schemaErr.Field,
			"row":   schemaErr.Row,
		}))
	case errors.Is(err, ml.ErrEmptyDataset):
		c.JSON(http.StatusBadRequest, errorResponse("EMPTY_DATASET", err.Error(), nil))
	case errors.As(err, &rankErr):
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_RANK", err.Error(), gin.H{
			"components": rankErr.Components,
			"machines":   rankErr.Machines,
			"actions":    rankErr.Actions,
		}))
	case errors.As(err, &unknownErr):
		c.JSON(http.StatusNotFound, errorResponse("UNKNOWN_MACHINE", err.Error(), gin.H{
			"machine_id": unknownErr.MachineID,
		}))
	case errors.Is(err, ml.ErrModelNotFitted):
		c.JSON(http.StatusConflict, errorResponse("MODEL_NOT_FITTED", "No model has been fitted yet", nil))
	case errors.Is(err, services.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, errorResponse("STORE_UNAVAILABLE", err.Error(), nil))
	default:
		logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		c.JSON(http.StatusInternalServerError, errorResponse("INTERNAL_ERROR", "Internal server error", nil))
	}
}
