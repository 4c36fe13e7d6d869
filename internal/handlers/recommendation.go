package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/remedy/internal/services"
)

const incidentDateLayout = "2006-01-02"

type RecommendationHandler struct {
	recommender services.RemediationRecommenderInterface
	logger      *logrus.Logger
}

func NewRecommendationHandler(recommender services.RemediationRecommenderInterface, logger *logrus.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		recommender: recommender,
		logger:      logger,
	}
}

// Get ranks remediation actions for a machine. n is optional; the service
// applies the default and the upper bound.
func (h *RecommendationHandler) Get(c *gin.Context) {
	machineID := c.Param("machineId")

	n := 0
	if nStr := c.Query("n"); nStr != "" {
		parsed, err := strconv.Atoi(nStr)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, errorResponse("INVALID_PARAMETER", "n must be a positive integer", nil))
			return
		}
		n = parsed
	}

	incidentDate := c.Query("date")
	if incidentDate != "" {
		if _, err := time.Parse(incidentDateLayout, incidentDate); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("INVALID_DATE", "date must use the YYYY-MM-DD format", nil))
			return
		}
	}

	response, err := h.recommender.Recommend(c.Request.Context(), machineID, n)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response.IncidentDate = incidentDate
	c.JSON(http.StatusOK, response)
}

func (h *RecommendationHandler) GetScore(c *gin.Context) {
	actionID, err := strconv.Atoi(c.Param("actionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("INVALID_ACTION_ID", "actionId must be an integer", nil))
		return
	}

	response, err := h.recommender.PredictScore(c.Request.Context(), c.Param("machineId"), actionID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *RecommendationHandler) ListMachines(c *gin.Context) {
	response, err := h.recommender.Machines(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *RecommendationHandler) ListActions(c *gin.Context) {
	c.JSON(http.StatusOK, h.recommender.Actions(c.Request.Context()))
}
