package billing

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fitcoach/internal/ledger"
	"fitcoach/internal/logger"
	"fitcoach/internal/metrics"
)

const (
	eventSubscriptionCreated = "customer.subscription.created"
	eventSubscriptionDeleted = "customer.subscription.deleted"
)

// event mirrors the envelope the payment provider posts to the webhook.
type event struct {
	Type string `json:"type"`
	Data struct {
		Object subscription `json:"object"`
	} `json:"data"`
}

type subscription struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
	Plan     struct {
		Amount int64 `json:"amount"`
	} `json:"plan"`
}

type Handler struct {
	ledgerService ledger.Service
	webhookSecret string
}

func NewHandler(ledgerService ledger.Service, webhookSecret string) *Handler {
	return &Handler{
		ledgerService: ledgerService,
		webhookSecret: webhookSecret,
	}
}

// HandleWebhook godoc
// @Summary      Billing webhook
// @Description  Receives subscription lifecycle events from the payment provider.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature  header    string  true  "Signed payload header"
// @Success      200  {object}  gin.H
// @Failure      400  {object}  gin.H
// @Failure      401  {object}  gin.H
// @Router       /webhooks/billing [post]
func (h *Handler) HandleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read payload"})
		return
	}

	if err := VerifySignature(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret, time.Now()); err != nil {
		logger.Warn("Billing webhook rejected", "reason", err)
		metrics.RecordWebhookEvent("billing", "unknown", "rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var evt event
	if err := json.Unmarshal(payload, &evt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event payload"})
		return
	}

	switch evt.Type {
	case eventSubscriptionCreated:
		h.handleSubscriptionCreated(c, evt.Data.Object)
	case eventSubscriptionDeleted:
		h.handleSubscriptionDeleted(c, evt.Data.Object)
	default:
		// Unhandled event types are acknowledged so the provider stops
		// retrying them.
		logger.Info("Ignoring billing event", "type", evt.Type)
		metrics.RecordWebhookEvent("billing", evt.Type, "ignored")
		c.JSON(http.StatusOK, gin.H{"message": "Event ignored"})
	}
}

func (h *Handler) handleSubscriptionCreated(c *gin.Context, sub subscription) {
	info := ledger.CheckoutInfo{
		PackageType:     sub.Metadata["package_type"],
		SubscriptionRef: sub.ID,
		PriceCHF:        sub.Plan.Amount,
	}
	if raw := sub.Metadata["user_id"]; raw != "" {
		info.UserID, _ = strconv.Atoi(raw)
	}
	if raw := sub.Metadata["total_sessions"]; raw != "" {
		info.TotalSessions, _ = strconv.Atoi(raw)
	}
	if raw := sub.Metadata["duration_days"]; raw != "" {
		info.DurationDays, _ = strconv.Atoi(raw)
	}

	pkg, err := h.ledgerService.CreateFromCheckout(c.Request.Context(), info)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrMissingSubscriber),
			errors.Is(err, ledger.ErrMissingTier),
			errors.Is(err, ledger.ErrInvalidCheckout):
			logger.Warn("Billing event with unusable metadata",
				"subscription", sub.ID,
				"reason", err,
			)
			metrics.RecordWebhookEvent("billing", eventSubscriptionCreated, "invalid")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			metrics.RecordWebhookEvent("billing", eventSubscriptionCreated, "error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create package"})
		}
		return
	}

	metrics.RecordWebhookEvent("billing", eventSubscriptionCreated, "ok")
	c.JSON(http.StatusOK, gin.H{"message": "Package created", "package_id": pkg.ID})
}

func (h *Handler) handleSubscriptionDeleted(c *gin.Context, sub subscription) {
	err := h.ledgerService.CancelBySubscriptionRef(c.Request.Context(), sub.ID)
	if err != nil {
		if errors.Is(err, ledger.ErrPackageNotFound) {
			// Unknown or already-cancelled subscription: acknowledged so the
			// provider does not retry.
			logger.Info("Billing cancellation for unknown subscription", "subscription", sub.ID)
			metrics.RecordWebhookEvent("billing", eventSubscriptionDeleted, "noop")
			c.JSON(http.StatusOK, gin.H{"message": "No matching package"})
			return
		}
		metrics.RecordWebhookEvent("billing", eventSubscriptionDeleted, "error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel package"})
		return
	}

	metrics.RecordWebhookEvent("billing", eventSubscriptionDeleted, "ok")
	c.JSON(http.StatusOK, gin.H{"message": "Package cancelled"})
}
