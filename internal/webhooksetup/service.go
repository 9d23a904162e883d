// Package webhooksetup registers and removes the Klarna notification webhook for the store.
package webhooksetup

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/kec-gateway/internal/klarna"
	"github.com/noah-isme/kec-gateway/internal/obs"
	"github.com/noah-isme/kec-gateway/internal/settings"
)

// Admin actions.
const (
	ActionCreate   = "create_webhook"
	ActionDelete   = "delete_webhook"
	ActionSimulate = "simulate_webhook"
)

// ErrUnknownAction is returned for actions other than the three above.
var ErrUnknownAction = errors.New("webhooksetup: unknown action")

// Actions lists the admin actions.
func Actions() []string {
	return []string{ActionCreate, ActionDelete, ActionSimulate}
}

// Klarna is the webhook management API.
type Klarna interface {
	CreateSigningKey(ctx context.Context) (settings.SigningKey, error)
	DeleteSigningKey(ctx context.Context, signingKeyID string) error
	CreateWebhook(ctx context.Context, endpoint string, eventTypes []string, eventVersion, signingKeyID string) (settings.Webhook, error)
	DeleteWebhook(ctx context.Context, webhookID string) error
	SimulateWebhook(ctx context.Context, webhookID, eventType, eventVersion string) error
}

// Store keeps the registered webhook and signing key descriptors.
type Store interface {
	Webhook(ctx context.Context) (*settings.Webhook, error)
	SaveWebhook(ctx context.Context, wh settings.Webhook) error
	DeleteWebhook(ctx context.Context) error
	SigningKey(ctx context.Context) (*settings.SigningKey, error)
	SaveSigningKey(ctx context.Context, key settings.SigningKey) error
	DeleteSigningKey(ctx context.Context) error
}

// Result is what an admin action reports back.
type Result struct {
	Messages []string `json:"messages"`
	Errors   []string `json:"errors"`
}

// Service runs the webhook admin actions.
type Service struct {
	Klarna          Klarna
	Store           Store
	NotificationURL string
}

// Run executes action. Failures are reported in Result.Errors; only an unknown action
// returns an error.
func (s *Service) Run(ctx context.Context, action string) (Result, error) {
	var (
		message string
		err     error
	)
	switch action {
	case ActionCreate:
		message, err = s.create(ctx)
	case ActionDelete:
		message, err = s.remove(ctx)
	case ActionSimulate:
		message, err = s.simulate(ctx)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	res := Result{Messages: []string{}, Errors: []string{}}
	logger := zerolog.Ctx(ctx).With().Str("action", action).Logger()
	switch {
	case err != nil:
		logger.Error().Err(err).Msg("webhook action failed")
		obs.IncWebhookAdmin(action, "error")
		res.Errors = append(res.Errors, userMessage(err))
	case message == "":
		logger.Info().Msg("webhook action skipped")
		obs.IncWebhookAdmin(action, "noop")
	default:
		logger.Info().Msg(message)
		obs.IncWebhookAdmin(action, "ok")
		res.Messages = append(res.Messages, message)
	}
	return res, nil
}

// actionError carries the message shown to the administrator.
type actionError struct {
	message string
	err     error
}

func (e *actionError) Error() string { return e.message + ": " + e.err.Error() }
func (e *actionError) Unwrap() error { return e.err }

func fail(message string, err error) error {
	return &actionError{message: message, err: err}
}

func userMessage(err error) string {
	var ae *actionError
	if errors.As(err, &ae) {
		return ae.message
	}
	return err.Error()
}

func (s *Service) create(ctx context.Context) (string, error) {
	stored, err := s.Store.Webhook(ctx)
	if err != nil {
		return "", fail("Could not read the stored webhook", err)
	}
	if stored != nil {
		return "", nil
	}

	key, err := s.Store.SigningKey(ctx)
	if err != nil {
		return "", fail("Could not read the stored signing key", err)
	}
	if key == nil {
		created, err := s.Klarna.CreateSigningKey(ctx)
		if err != nil {
			return "", fail("Could not create signing key", err)
		}
		if err := s.Store.SaveSigningKey(ctx, created); err != nil {
			return "", fail("Could not create signing key", err)
		}
		key = &created
	}

	eventTypes := []string{klarna.EventPaymentCompleted, klarna.EventPaymentExpired}
	wh, err := s.Klarna.CreateWebhook(ctx, s.NotificationURL, eventTypes, klarna.EventVersion, key.SigningKeyID)
	if err != nil {
		return "", fail("Could not create webhook with Klarna", err)
	}
	if err := s.Store.SaveWebhook(ctx, wh); err != nil {
		return "", fail("Could not create webhook with Klarna", err)
	}
	return "Webhook created successfully.", nil
}

func (s *Service) remove(ctx context.Context) (string, error) {
	key, err := s.Store.SigningKey(ctx)
	if err != nil {
		return "", fail("Could not read the stored signing key", err)
	}
	wh, err := s.Store.Webhook(ctx)
	if err != nil {
		return "", fail("Could not read the stored webhook", err)
	}
	if key == nil && wh == nil {
		return "", nil
	}

	if wh != nil {
		if err := s.Klarna.DeleteWebhook(ctx, wh.WebhookID); err != nil {
			return "", fail("Could not remove webhook", err)
		}
		if err := s.Store.DeleteWebhook(ctx); err != nil {
			return "", fail("Could not remove webhook", err)
		}
	}
	if key != nil {
		if err := s.Klarna.DeleteSigningKey(ctx, key.SigningKeyID); err != nil {
			return "", fail("Could not remove signing key", err)
		}
		if err := s.Store.DeleteSigningKey(ctx); err != nil {
			return "", fail("Could not remove signing key", err)
		}
	}
	return "Webhook removed successfully.", nil
}

func (s *Service) simulate(ctx context.Context) (string, error) {
	wh, err := s.Store.Webhook(ctx)
	if err != nil {
		return "", fail("Could not read the stored webhook", err)
	}
	if wh == nil {
		return "", nil
	}
	if err := s.Klarna.SimulateWebhook(ctx, wh.WebhookID, klarna.EventPaymentSubmitted, klarna.EventVersion); err != nil {
		return "", fail("Could not send test webhook", err)
	}
	return "Test webhook sent successfully.", nil
}
