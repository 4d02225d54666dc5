package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fitcoach/internal/api"
	"fitcoach/internal/notify"
	"fitcoach/internal/reminder"
)

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200 {object} api.HealthResponse
// @Router       /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
}

// @Summary      Queue a test notification
// @Tags         system
// @Produce      json
// @Param        email query string true "Recipient email"
// @Success      200 {object} api.MessageResponse
// @Failure      400 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /test-notification [get]
func TestNotification(notifyService *notify.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		testEmail := c.Query("email")
		if testEmail == "" {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "email parameter required"})
			return
		}

		err := notifyService.Enqueue(c.Request.Context(), notify.Job{
			Channel: notify.ChannelEmail,
			To:      testEmail,
			Name:    "Test User",
			Subject: "Test Notification from FitCoach",
			Body:    "Notifications are working!",
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
			return
		}

		c.JSON(http.StatusOK, api.MessageResponse{Message: "Notification queued successfully"})
	}
}

// @Summary      Run the reminder sweep
// @Description  Triggers one reminder sweep immediately. Admin only.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} gin.H
// @Failure      500 {object} api.ErrorResponse
// @Router       /admin/reminders/run [post]
func RunReminders(sweeper *reminder.Sweeper) gin.HandlerFunc {
	return func(c *gin.Context) {
		sent, err := sweeper.RunOnce(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Reminder sweep failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Reminder sweep complete", "sent": sent})
	}
}

// @Summary      Prometheus metrics
// @Description  Exposes Prometheus metrics in text format
// @Tags         system
// @Produce      text/plain
// @Success      200 {string} string
// @Router       /metrics [get]
func Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
