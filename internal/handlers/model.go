package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/remedy/internal/services"
	"github.com/temcen/remedy/pkg/models"
)

const maxCSVUploadBytes = 64 << 20

// ModelHandler serves model status and the administrative fit endpoints.
type ModelHandler struct {
	recommender services.RemediationRecommenderInterface
	validator   *validator.Validate
	logger      *logrus.Logger
}

func NewModelHandler(recommender services.RemediationRecommenderInterface, logger *logrus.Logger) *ModelHandler {
	return &ModelHandler{
		recommender: recommender,
		validator:   validator.New(),
		logger:      logger,
	}
}

func (h *ModelHandler) Status(c *gin.Context) {
	status, err := h.recommender.Status(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *ModelHandler) History(c *gin.Context) {
	c.JSON(http.StatusOK, h.recommender.History(c.Request.Context()))
}

func (h *ModelHandler) Fit(c *gin.Context) {
	var req models.FitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_REQUEST_BODY", "Invalid request body format", nil))
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		h.validationFailed(c, err)
		return
	}

	status, err := h.recommender.Fit(c.Request.Context(), req.Interactions, req.Components, "api")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// FitCSV fits from a multipart upload whose "file" part holds a
// machine_id,action_id,score table.
func (h *ModelHandler) FitCSV(c *gin.Context) {
	components := 0
	if raw := c.PostForm("components"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, errorResponse("INVALID_PARAMETER", "components must be a positive integer", nil))
			return
		}
		components = parsed
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("MISSING_FILE", "A CSV file is required in the 'file' field", nil))
		return
	}
	if fileHeader.Size > maxCSVUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse("FILE_TOO_LARGE", "CSV upload exceeds the size limit", nil))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.WithError(err).Error("Failed to open uploaded CSV")
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_FILE", "Failed to read uploaded file", nil))
		return
	}
	defer file.Close()

	status, err := h.recommender.FitFromCSV(c.Request.Context(), file, components)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"filename":      fileHeader.Filename,
		"model_version": status.Version,
	}).Info("Model fitted from uploaded CSV")

	c.JSON(http.StatusOK, status)
}

// Refit reloads stored interactions. The body is optional.
func (h *ModelHandler) Refit(c *gin.Context) {
	var req models.RefitRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_REQUEST_BODY", "Invalid request body format", nil))
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		h.validationFailed(c, err)
		return
	}

	status, err := h.recommender.Refit(c.Request.Context(), req.Components)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *ModelHandler) StoreInteractions(c *gin.Context) {
	var req models.InteractionBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_REQUEST_BODY", "Invalid request body format", nil))
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		h.validationFailed(c, err)
		return
	}

	response, err := h.recommender.StoreInteractions(c.Request.Context(), req.Interactions)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

func (h *ModelHandler) validationFailed(c *gin.Context, err error) {
	fields := gin.H{}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fe := range validationErrs {
			fields[fe.Namespace()] = fe.Tag()
		}
	}
	c.JSON(http.StatusBadRequest, errorResponse("SCHEMA_ERROR", "Request validation failed", gin.H{"fields": fields}))
}
