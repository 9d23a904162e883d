package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Flow values.
const (
	FlowOneStep = "one_step"
	FlowTwoStep = "two_step"
)

// Placement values.
const (
	PlacementCart    = "cart"
	PlacementProduct = "product"
	PlacementBoth    = "both"
)

// Option names outside the settings record.
const (
	OptionWebhook    = "kec_webhook"
	OptionSigningKey = "kec_signing_key"
)

// Settings is the express checkout configuration record.
type Settings struct {
	Enabled             string `json:"kec_enabled" validate:"oneof=yes no"`
	CredentialsSecret   string `json:"kec_credentials_secret"`
	Theme               string `json:"kec_theme" validate:"oneof=default dark light"`
	Shape               string `json:"kec_shape" validate:"oneof=default rect pill"`
	Placement           string `json:"kec_placement" validate:"oneof=cart product both"`
	Flow                string `json:"kec_flow" validate:"oneof=one_step two_step"`
	Testmode            string `json:"testmode" validate:"oneof=yes no"`
	AcquiringPartnerKey string `json:"kec_acquiring_partner,omitempty"`
	Locale              string `json:"kec_locale,omitempty"`
}

// Defaults returns the settings used when nothing is stored.
func Defaults() Settings {
	return Settings{
		Enabled:   "no",
		Theme:     "default",
		Shape:     "default",
		Placement: PlacementBoth,
		Flow:      FlowOneStep,
		Testmode:  "yes",
	}
}

// IsEnabled reports whether the button should be rendered at all.
func (s Settings) IsEnabled() bool { return s.Enabled == "yes" }

// IsTestmode reports whether the playground environment is used.
func (s Settings) IsTestmode() bool { return s.Testmode == "yes" }

// ShowOn reports whether the button belongs on the given page.
func (s Settings) ShowOn(page string) bool {
	return s.Placement == PlacementBoth || s.Placement == page
}

func (s Settings) withDefaults() Settings {
	d := Defaults()
	if s.Enabled == "" {
		s.Enabled = d.Enabled
	}
	if s.Theme == "" {
		s.Theme = d.Theme
	}
	if s.Shape == "" {
		s.Shape = d.Shape
	}
	if s.Placement == "" {
		s.Placement = d.Placement
	}
	if s.Flow == "" {
		s.Flow = d.Flow
	}
	if s.Testmode == "" {
		s.Testmode = d.Testmode
	}
	return s
}

// SigningKey is the descriptor Klarna returns for a notification signing key.
type SigningKey struct {
	SigningKeyID string `json:"signing_key_id"`
	SigningKey   string `json:"signing_key,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// Webhook is the descriptor Klarna returns for a registered webhook.
type Webhook struct {
	WebhookID    string   `json:"webhook_id"`
	URL          string   `json:"url"`
	EventTypes   []string `json:"event_types"`
	EventVersion string   `json:"event_version"`
	SigningKeyID string   `json:"signing_key_id"`
	Status       string   `json:"status"`
	CreatedAt    string   `json:"created_at,omitempty"`
}

// ErrInvalid wraps validation failures of a settings update.
var ErrInvalid = errors.New("invalid settings")

// OptionStore is the persistent key/value option store.
type OptionStore interface {
	// Get decodes the option into dst and reports whether it exists.
	Get(ctx context.Context, name string, dst any) (bool, error)
	Set(ctx context.Context, name string, value any) error
	Delete(ctx context.Context, name string) error
}

// Service reads and writes express checkout configuration.
type Service struct {
	store      OptionStore
	optionsKey string
	validate   *validator.Validate
}

// NewService constructs a settings service reading the record stored under optionsKey.
func NewService(store OptionStore, optionsKey string, validate *validator.Validate) *Service {
	if validate == nil {
		validate = validator.New()
	}
	return &Service{store: store, optionsKey: optionsKey, validate: validate}
}

// Load returns the stored settings merged with defaults.
func (s *Service) Load(ctx context.Context) (Settings, error) {
	var st Settings
	if _, err := s.store.Get(ctx, s.optionsKey, &st); err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return st.withDefaults(), nil
}

// Update validates and stores the settings.
func (s *Service) Update(ctx context.Context, st Settings) (Settings, error) {
	st = st.withDefaults()
	st.CredentialsSecret = strings.TrimSpace(st.CredentialsSecret)
	if err := s.validate.Struct(st); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.store.Set(ctx, s.optionsKey, st); err != nil {
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return st, nil
}

// Webhook returns the recorded webhook descriptor, or nil.
func (s *Service) Webhook(ctx context.Context) (*Webhook, error) {
	var wh Webhook
	ok, err := s.store.Get(ctx, OptionWebhook, &wh)
	if err != nil {
		return nil, fmt.Errorf("load webhook: %w", err)
	}
	if !ok || wh.WebhookID == "" {
		return nil, nil
	}
	return &wh, nil
}

// SaveWebhook records the webhook descriptor.
func (s *Service) SaveWebhook(ctx context.Context, wh Webhook) error {
	return s.store.Set(ctx, OptionWebhook, wh)
}

// DeleteWebhook forgets the webhook descriptor.
func (s *Service) DeleteWebhook(ctx context.Context) error {
	return s.store.Delete(ctx, OptionWebhook)
}

// SigningKey returns the recorded signing key descriptor, or nil.
func (s *Service) SigningKey(ctx context.Context) (*SigningKey, error) {
	var key SigningKey
	ok, err := s.store.Get(ctx, OptionSigningKey, &key)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}
	if !ok || key.SigningKeyID == "" {
		return nil, nil
	}
	return &key, nil
}

// SaveSigningKey records the signing key descriptor.
func (s *Service) SaveSigningKey(ctx context.Context, key SigningKey) error {
	return s.store.Set(ctx, OptionSigningKey, key)
}

// DeleteSigningKey forgets the signing key descriptor.
func (s *Service) DeleteSigningKey(ctx context.Context) error {
	return s.store.Delete(ctx, OptionSigningKey)
}
