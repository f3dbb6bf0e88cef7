package handlers

import (
	"net/http"

	"github.com/dionfirmansyah/yonsense/internal/models"
	"github.com/gin-gonic/gin"
)

func respondSuccess(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, models.ResponseEnvelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func respondError(c *gin.Context, status int, message string, err error) {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	c.JSON(status, models.ResponseEnvelope{
		Success: false,
		Message: message,
		Error:   errMsg,
	})
}

func respondValidationError(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, "validation failed", err)
}

// respondOutcome reports a completed dispatch. Unsuccessful outcomes are
// still 200: the request was valid and every target was attempted.
func respondOutcome(c *gin.Context, success bool, message, reason string, stats models.DeliveryStats, data interface{}) {
	env := models.ResponseEnvelope{
		Success: success,
		Message: message,
		Data:    data,
		Stats:   &stats,
	}
	if !success {
		env.Error = reason
	}
	c.JSON(http.StatusOK, env)
}
