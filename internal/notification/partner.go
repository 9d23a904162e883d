package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/noah-isme/kec-gateway/internal/order"
	"github.com/noah-isme/kec-gateway/internal/settings"
)

// AcquiringPartner settles completed payments for stores whose acquirer is not Klarna itself.
// ProcessOrderState returns the URL the shopper should land on.
type AcquiringPartner interface {
	Key() string
	ProcessOrderState(ctx context.Context, o *order.Order, interoperabilityToken string, interoperabilityData map[string]any, state string, payload json.RawMessage) (string, error)
}

// OrderProcessor completes an order when no acquiring partner is configured.
type OrderProcessor interface {
	ProcessOrder(ctx context.Context, o *order.Order, interoperabilityToken, state string, payload json.RawMessage) error
}

// OrderCanceller is told about orders cancelled by an expired payment request.
type OrderCanceller interface {
	CancelOrder(ctx context.Context, o *order.Order, interoperabilityToken, state string, payload json.RawMessage) error
}

// SettingsSource reads the current settings.
type SettingsSource interface {
	Load(ctx context.Context) (settings.Settings, error)
}

// PartnerRegistry maps partner keys to their integration.
type PartnerRegistry struct {
	partners map[string]AcquiringPartner
	settings SettingsSource
}

// NewPartnerRegistry registers partners. Two partners claiming the same key are a
// configuration error.
func NewPartnerRegistry(src SettingsSource, partners ...AcquiringPartner) (*PartnerRegistry, error) {
	r := &PartnerRegistry{partners: make(map[string]AcquiringPartner, len(partners)), settings: src}
	for _, p := range partners {
		key := p.Key()
		if key == "" {
			return nil, fmt.Errorf("notification: acquiring partner without a key")
		}
		if _, dup := r.partners[key]; dup {
			return nil, fmt.Errorf("notification: acquiring partner key %q registered twice", key)
		}
		r.partners[key] = p
	}
	return r, nil
}

// Active returns the partner selected by the configured key, or nil.
func (r *PartnerRegistry) Active(ctx context.Context) (AcquiringPartner, error) {
	if r == nil || r.settings == nil || len(r.partners) == 0 {
		return nil, nil
	}
	st, err := r.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return r.partners[st.AcquiringPartnerKey], nil
}
