package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/kec-gateway/internal/common"
	"github.com/noah-isme/kec-gateway/internal/klarna"
	"github.com/noah-isme/kec-gateway/internal/obs"
	"github.com/noah-isme/kec-gateway/internal/settings"
)

// SigningKeys returns the stored notification signing key, nil when none is registered.
type SigningKeys interface {
	SigningKey(ctx context.Context) (*settings.SigningKey, error)
}

// Endpoint receives Klarna notifications over HTTP.
type Endpoint struct {
	Dispatcher *Dispatcher
	Keys       SigningKeys
	Replay     ReplayGuard
}

type ack struct {
	Status string `json:"status"`
}

// ServeHTTP handles POST /kec/notifications.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := obs.StartSpan(r.Context(), "notification", "Notification.Handle")
	defer span.End()
	logger := zerolog.Ctx(ctx)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "unable to read payload", nil)
		return
	}
	key, err := e.signingKey(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("load notification signing key")
		obs.IncNotification("unknown", "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "signing key unavailable")
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "signing key unavailable", nil)
		return
	}
	if err := verify(key, r, body); err != nil {
		logger.Warn().Err(err).Msg("notification signature rejected")
		obs.IncNotification("unknown", "bad_signature")
		span.SetStatus(codes.Error, "bad signature")
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}

	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil || ev.EventType == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid notification", nil)
		return
	}
	span.SetAttributes(
		attribute.String("kec.event_type", ev.EventType),
		attribute.String("kec.event_version", ev.EventVersion),
	)
	log := logger.With().Str("event_type", ev.EventType).Str("event_version", ev.EventVersion).Logger()

	delivery := deliveryID(ev, body)
	if e.Replay != nil {
		fresh, err := e.Replay.Claim(ctx, delivery)
		if err != nil {
			log.Error().Err(err).Msg("replay guard unavailable")
			common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "replay store unavailable", nil)
			return
		}
		if !fresh {
			log.Info().Msg("duplicate notification skipped")
			obs.IncNotification(ev.EventType, "duplicate")
			common.JSON(w, http.StatusOK, ack{Status: "duplicate"})
			return
		}
	}

	err = e.Dispatcher.Dispatch(ctx, ev)
	switch {
	case err == nil:
		log.Info().Msg("notification processed")
		obs.IncNotification(ev.EventType, "processed")
		common.JSON(w, http.StatusOK, ack{Status: "processed"})
	case errors.Is(err, ErrIgnored):
		log.Debug().Msg("notification ignored")
		obs.IncNotification(ev.EventType, "ignored")
		common.JSON(w, http.StatusOK, ack{Status: "ignored"})
	default:
		if e.Replay != nil {
			if rerr := e.Replay.Forget(context.WithoutCancel(ctx), delivery); rerr != nil {
				log.Warn().Err(rerr).Msg("release replay guard")
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		appErr := common.AsAppError(err)
		log.Error().Err(err).Int("status", appErr.HTTPStatus).Msg("notification failed")
		obs.IncNotification(ev.EventType, "error")
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, nil)
	}
}

func (e *Endpoint) signingKey(ctx context.Context) (*settings.SigningKey, error) {
	if e.Keys == nil {
		return nil, nil
	}
	return e.Keys.SigningKey(ctx)
}

// verify checks the body signature when a signing key with a secret is stored.
func verify(key *settings.SigningKey, r *http.Request, body []byte) error {
	if key == nil || key.SigningKey == "" {
		return nil
	}
	return klarna.VerifySignature(key.SigningKey, body, r.Header.Get(klarna.SignatureHeader))
}
