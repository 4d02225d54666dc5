package calendar

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"fitcoach/internal/logger"
	"fitcoach/internal/metrics"
	"fitcoach/internal/session"
)

const (
	eventBookingCreated     = "BOOKING_CREATED"
	eventBookingCancelled   = "BOOKING_CANCELLED"
	eventBookingRescheduled = "BOOKING_RESCHEDULED"
)

// event mirrors the envelope the scheduling provider posts to the webhook.
type event struct {
	TriggerEvent string  `json:"triggerEvent"`
	Payload      booking `json:"payload"`
}

type booking struct {
	UID           string     `json:"uid"`
	RescheduleUID string     `json:"rescheduleUid"`
	Title         string     `json:"title"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       time.Time  `json:"endTime"`
	Location      string     `json:"location"`
	Attendees     []attendee `json:"attendees"`
	Metadata      struct {
		VideoCallURL string `json:"videoCallUrl"`
	} `json:"metadata"`
}

type attendee struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Handler struct {
	sessionService session.Service
	webhookSecret  string
}

func NewHandler(sessionService session.Service, webhookSecret string) *Handler {
	return &Handler{
		sessionService: sessionService,
		webhookSecret:  webhookSecret,
	}
}

// HandleWebhook godoc
// @Summary      Calendar webhook
// @Description  Receives booking lifecycle events from the scheduling provider.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        X-Cal-Signature-256  header    string  true  "Hex HMAC of the payload"
// @Success      200  {object}  gin.H
// @Failure      400  {object}  gin.H
// @Failure      401  {object}  gin.H
// @Router       /webhooks/calendar [post]
func (h *Handler) HandleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read payload"})
		return
	}

	if err := VerifySignature(payload, c.GetHeader("X-Cal-Signature-256"), h.webhookSecret); err != nil {
		logger.Warn("Calendar webhook rejected", "reason", err)
		metrics.RecordWebhookEvent("calendar", "unknown", "rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var evt event
	if err := json.Unmarshal(payload, &evt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event payload"})
		return
	}

	switch evt.TriggerEvent {
	case eventBookingCreated:
		h.handleCreated(c, evt.Payload)
	case eventBookingCancelled:
		h.handleCancelled(c, evt.Payload)
	case eventBookingRescheduled:
		h.handleRescheduled(c, evt.Payload)
	default:
		logger.Info("Ignoring calendar event", "trigger", evt.TriggerEvent)
		metrics.RecordWebhookEvent("calendar", evt.TriggerEvent, "ignored")
		c.JSON(http.StatusOK, gin.H{"message": "Event ignored"})
	}
}

func (h *Handler) handleCreated(c *gin.Context, b booking) {
	if b.UID == "" || len(b.Attendees) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Booking is missing uid or attendees"})
		return
	}

	sess, created, err := h.sessionService.CreateFromCalendarBooking(c.Request.Context(), session.CalendarBooking{
		BookingRef:    b.UID,
		AttendeeEmail: b.Attendees[0].Email,
		Title:         b.Title,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		MeetingLink:   meetingLink(b),
	})
	if err != nil {
		if errors.Is(err, session.ErrUnknownAttendee) {
			// Acknowledged so the provider stops retrying; the booking is
			// surfaced in logs for manual follow-up.
			logger.Warn("Booking from unknown attendee",
				"booking", b.UID,
				"email", b.Attendees[0].Email,
			)
			metrics.RecordWebhookEvent("calendar", eventBookingCreated, "unknown_attendee")
			c.JSON(http.StatusOK, gin.H{"message": "No matching account"})
			return
		}
		metrics.RecordWebhookEvent("calendar", eventBookingCreated, "error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record booking"})
		return
	}

	if !created {
		metrics.RecordWebhookEvent("calendar", eventBookingCreated, "duplicate")
		c.JSON(http.StatusOK, gin.H{"message": "Booking already recorded", "session_id": sess.ID})
		return
	}

	metrics.RecordWebhookEvent("calendar", eventBookingCreated, "ok")
	c.JSON(http.StatusOK, gin.H{"message": "Booking recorded", "session_id": sess.ID})
}

func (h *Handler) handleCancelled(c *gin.Context, b booking) {
	if b.UID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Booking is missing uid"})
		return
	}

	sess, err := h.sessionService.CancelFromCalendar(c.Request.Context(), b.UID)
	if err != nil {
		metrics.RecordWebhookEvent("calendar", eventBookingCancelled, "error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel booking"})
		return
	}

	if sess == nil {
		logger.Info("Cancellation for unknown booking", "booking", b.UID)
		metrics.RecordWebhookEvent("calendar", eventBookingCancelled, "noop")
		c.JSON(http.StatusOK, gin.H{"message": "No matching session"})
		return
	}

	metrics.RecordWebhookEvent("calendar", eventBookingCancelled, "ok")
	c.JSON(http.StatusOK, gin.H{"message": "Booking cancelled", "session_id": sess.ID})
}

func (h *Handler) handleRescheduled(c *gin.Context, b booking) {
	// Providers reference the original booking through rescheduleUid and
	// mint a fresh uid for the new slot.
	ref := b.RescheduleUID
	if ref == "" {
		ref = b.UID
	}
	if ref == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Booking is missing uid"})
		return
	}

	err := h.sessionService.RescheduleFromCalendar(c.Request.Context(), ref, b.StartTime, b.EndTime)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			logger.Info("Reschedule for unknown booking", "booking", ref)
			metrics.RecordWebhookEvent("calendar", eventBookingRescheduled, "noop")
			c.JSON(http.StatusOK, gin.H{"message": "No matching session"})
			return
		}
		metrics.RecordWebhookEvent("calendar", eventBookingRescheduled, "error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reschedule booking"})
		return
	}

	metrics.RecordWebhookEvent("calendar", eventBookingRescheduled, "ok")
	c.JSON(http.StatusOK, gin.H{"message": "Booking rescheduled"})
}

// meetingLink prefers the explicit video call URL and falls back to a
// URL-shaped location field.
func meetingLink(b booking) *string {
	if b.Metadata.VideoCallURL != "" {
		link := b.Metadata.VideoCallURL
		return &link
	}

	if strings.HasPrefix(b.Location, "http://") || strings.HasPrefix(b.Location, "https://") {
		if _, err := url.Parse(b.Location); err == nil {
			link := b.Location
			return &link
		}
	}

	return nil
}
