package klarna

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/noah-isme/kec-gateway/internal/settings"
)

// Notification event types.
const (
	EventPaymentCompleted = "payment.request.state-change.completed"
	EventPaymentExpired   = "payment.request.state-change.expired"
	EventPaymentSubmitted = "payment.request.state-change.submitted"
)

// EventVersion is the notification payload version the integration understands.
const EventVersion = "v2"

// CreateWebhookRequest registers a notification endpoint.
type CreateWebhookRequest struct {
	URL          string   `json:"url"`
	EventTypes   []string `json:"event_types"`
	EventVersion string   `json:"event_version"`
	SigningKeyID string   `json:"signing_key_id"`
	Status       string   `json:"status"`
}

var errMissingID = errors.New("klarna: missing identifier")

// CreateSigningKey creates a notification signing key.
func (c *Client) CreateSigningKey(ctx context.Context) (settings.SigningKey, error) {
	var key settings.SigningKey
	err := c.do(ctx, "create_signing_key", http.MethodPost, "v2/notification/signing-keys", nil, &key)
	return key, err
}

// DeleteSigningKey removes a notification signing key.
func (c *Client) DeleteSigningKey(ctx context.Context, signingKeyID string) error {
	if signingKeyID == "" {
		return errMissingID
	}
	return c.do(ctx, "delete_signing_key", http.MethodDelete, "v2/notification/signing-keys/"+url.PathEscape(signingKeyID), nil, nil)
}

// CreateWebhook registers url for eventTypes, signed with signingKeyID.
func (c *Client) CreateWebhook(ctx context.Context, endpoint string, eventTypes []string, eventVersion, signingKeyID string) (settings.Webhook, error) {
	body := CreateWebhookRequest{
		URL:          endpoint,
		EventTypes:   eventTypes,
		EventVersion: eventVersion,
		SigningKeyID: signingKeyID,
		Status:       "ENABLED",
	}
	var wh settings.Webhook
	err := c.do(ctx, "create_webhook", http.MethodPost, "v2/notification/webhooks", body, &wh)
	return wh, err
}

// DeleteWebhook removes a registered webhook.
func (c *Client) DeleteWebhook(ctx context.Context, webhookID string) error {
	if webhookID == "" {
		return errMissingID
	}
	return c.do(ctx, "delete_webhook", http.MethodDelete, "v2/notification/webhooks/"+url.PathEscape(webhookID), nil, nil)
}

// SimulateWebhook asks Klarna to deliver a test event to the webhook.
func (c *Client) SimulateWebhook(ctx context.Context, webhookID, eventType, eventVersion string) error {
	if webhookID == "" {
		return errMissingID
	}
	body := map[string]string{"event_type": eventType, "event_version": eventVersion}
	return c.do(ctx, "simulate_webhook", http.MethodPost, "v2/notification/webhooks/"+url.PathEscape(webhookID)+"/simulate", body, nil)
}
