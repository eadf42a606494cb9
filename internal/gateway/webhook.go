package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// WebhookEvent is the provider callback payload after verification.
type WebhookEvent struct {
	EventType string `json:"event_type"`
	OrderID   string `json:"order_id"`
}

// Webhook event types routed by the receiver.
const (
	WebhookOrderApproved = "CHECKOUT.ORDER.APPROVED"
	WebhookOrderCaptured = "PAYMENT.CAPTURE.COMPLETED"
)

// VerifyWebhook checks the payload's authenticity against the shared
// webhook secret before any of it is trusted. The signature header is
// hex-encoded HMAC-SHA256 over the raw body.
func VerifyWebhook(secret []byte, body []byte, signature string) (WebhookEvent, error) {
	if len(secret) == 0 {
		return WebhookEvent{}, fmt.Errorf("webhook secret not configured")
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return WebhookEvent{}, fmt.Errorf("webhook signature mismatch")
	}

	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return WebhookEvent{}, fmt.Errorf("webhook payload: %w", err)
	}
	if ev.OrderID == "" {
		return WebhookEvent{}, fmt.Errorf("webhook payload missing order_id")
	}
	return ev, nil
}
