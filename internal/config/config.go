package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	PublicBaseURL      string
	CORSAllowedOrigins []string

	SessionSecret     string
	SessionCookieName string
	SessionTTL        time.Duration
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite

	NonceSecret string
	NonceTTL    time.Duration

	CurrencyCode     string
	TaxRatePercent   string
	PricesIncludeTax bool

	Klarna KlarnaConfig
	KEC    KECConfig

	LockTTL          time.Duration
	LockRetryBackoff time.Duration
	WebhookReplayTTL time.Duration

	AdminUser         string
	AdminPasswordHash string

	RateLimitWindow time.Duration
	RateLimitMax    int
	BodyLimitBytes  int64

	SweepInterval     time.Duration
	SweepAbandonAfter time.Duration
}

// KlarnaConfig configures the outbound Klarna API client.
type KlarnaConfig struct {
	Username      string
	Password      string
	Country       string
	ModuleVersion string
	BaseURL       string
	Timeout       time.Duration
}

// KECConfig holds express checkout tunables.
type KECConfig struct {
	OptionsKey         string
	OrderLookupWindow  time.Duration
	RedirectWaitBudget time.Duration
	RedirectWaitEvery  time.Duration
	SessionLock        bool
	// RedirectHosts are external hosts the two-step return may redirect to.
	RedirectHosts []string
}

var defaults = map[string]string{
	"APP_ENV":                    "development",
	"PORT":                       "8080",
	"PUBLIC_BASE_URL":            "http://localhost:8080",
	"SESSION_COOKIE_NAME":        "kec_session",
	"SESSION_TTL":                "48h",
	"COOKIE_SAMESITE":            "lax",
	"NONCE_TTL":                  "12h",
	"CURRENCY_CODE":              "USD",
	"TAX_RATE_PERCENT":           "0",
	"KLARNA_COUNTRY":             "US",
	"KLARNA_MODULE_VERSION":      "dev",
	"KLARNA_TIMEOUT":             "10s",
	"KEC_OPTIONS_KEY":            "woocommerce_klarna_payments_settings",
	"KEC_ORDER_LOOKUP_WINDOW":    "48h",
	"KEC_REDIRECT_WAIT_BUDGET":   "10s",
	"KEC_REDIRECT_WAIT_INTERVAL": "500ms",
	"KEC_SESSION_LOCK":           "true",
	"LOCK_TTL":                   "10s",
	"LOCK_RETRY_BACKOFF":         "50ms",
	"WEBHOOK_REPLAY_TTL":         "24h",
	"ADMIN_USER":                 "admin",
	"RATE_LIMIT_WINDOW":          "1m",
	"RATE_LIMIT_MAX":             "120",
	"BODY_LIMIT_BYTES":           "1048576",
	"SWEEP_INTERVAL":             "15m",
	"SWEEP_ABANDON_AFTER":        "48h",
}

// Load reads configuration from environment variables and an optional .env
// file. Malformed values are reported together rather than replaced by defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}
	// Blank variables keep the default.
	provider := env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		return key, value
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	v := &values{k: k}
	cfg := &Config{
		AppEnv:             v.str("APP_ENV"),
		Port:               v.str("PORT"),
		DatabaseURL:        v.str("DATABASE_URL"),
		RedisURL:           v.str("REDIS_URL"),
		PublicBaseURL:      strings.TrimRight(v.str("PUBLIC_BASE_URL"), "/"),
		CORSAllowedOrigins: v.list("CORS_ALLOWED_ORIGINS"),
		SessionSecret:      v.str("SESSION_SECRET"),
		SessionCookieName:  v.str("SESSION_COOKIE_NAME"),
		SessionTTL:         v.duration("SESSION_TTL"),
		CookieDomain:       v.str("COOKIE_DOMAIN"),
		CookieSecure:       v.boolean("COOKIE_SECURE"),
		CookieSameSite:     v.sameSite("COOKIE_SAMESITE"),
		NonceSecret:        v.str("NONCE_SECRET"),
		NonceTTL:           v.duration("NONCE_TTL"),
		CurrencyCode:       strings.ToUpper(v.str("CURRENCY_CODE")),
		TaxRatePercent:     v.str("TAX_RATE_PERCENT"),
		PricesIncludeTax:   v.boolean("PRICES_INCLUDE_TAX"),
		Klarna: KlarnaConfig{
			Username:      v.str("KLARNA_USERNAME"),
			Password:      v.str("KLARNA_PASSWORD"),
			Country:       strings.ToUpper(v.str("KLARNA_COUNTRY")),
			ModuleVersion: v.str("KLARNA_MODULE_VERSION"),
			BaseURL:       v.str("KLARNA_BASE_URL"),
			Timeout:       v.duration("KLARNA_TIMEOUT"),
		},
		KEC: KECConfig{
			OptionsKey:         v.str("KEC_OPTIONS_KEY"),
			OrderLookupWindow:  v.duration("KEC_ORDER_LOOKUP_WINDOW"),
			RedirectWaitBudget: v.duration("KEC_REDIRECT_WAIT_BUDGET"),
			RedirectWaitEvery:  v.duration("KEC_REDIRECT_WAIT_INTERVAL"),
			SessionLock:        v.boolean("KEC_SESSION_LOCK"),
			RedirectHosts:      v.list("KEC_REDIRECT_ALLOWED_HOSTS"),
		},
		LockTTL:           v.duration("LOCK_TTL"),
		LockRetryBackoff:  v.duration("LOCK_RETRY_BACKOFF"),
		WebhookReplayTTL:  v.duration("WEBHOOK_REPLAY_TTL"),
		AdminUser:         v.str("ADMIN_USER"),
		AdminPasswordHash: v.str("ADMIN_PASSWORD_HASH"),
		RateLimitWindow:   v.duration("RATE_LIMIT_WINDOW"),
		RateLimitMax:      v.positiveInt("RATE_LIMIT_MAX"),
		BodyLimitBytes:    int64(v.positiveInt("BODY_LIMIT_BYTES")),
		SweepInterval:     v.duration("SWEEP_INTERVAL"),
		SweepAbandonAfter: v.duration("SWEEP_ABANDON_AFTER"),
	}

	for _, required := range []string{"DATABASE_URL", "REDIS_URL", "SESSION_SECRET"} {
		if v.str(required) == "" {
			v.errs = append(v.errs, fmt.Errorf("%s is required", required))
		}
	}
	if err := errors.Join(v.errs...); err != nil {
		return nil, err
	}
	if cfg.NonceSecret == "" {
		cfg.NonceSecret = cfg.SessionSecret
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// values reads typed keys from k and collects parse failures.
type values struct {
	k    *koanf.Koanf
	errs []error
}

func (v *values) str(key string) string {
	return strings.TrimSpace(v.k.String(key))
}

func (v *values) list(key string) []string {
	var out []string
	for _, part := range strings.Split(v.str(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (v *values) fail(key, raw string, err error) {
	v.errs = append(v.errs, fmt.Errorf("%s: invalid value %q: %w", key, raw, err))
}

func (v *values) duration(key string) time.Duration {
	raw := v.str(key)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		v.fail(key, raw, err)
	}
	return d
}

func (v *values) positiveInt(key string) int {
	raw := v.str(key)
	n, err := strconv.Atoi(raw)
	if err == nil && n <= 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		v.fail(key, raw, err)
	}
	return n
}

func (v *values) boolean(key string) bool {
	switch strings.ToLower(v.str(key)) {
	case "1", "true", "yes", "on":
		return true
	case "", "0", "false", "no", "off":
		return false
	default:
		v.fail(key, v.str(key), errors.New("expected a boolean"))
		return false
	}
}

func (v *values) sameSite(key string) http.SameSite {
	switch strings.ToLower(v.str(key)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax", "":
		return http.SameSiteLaxMode
	default:
		v.fail(key, v.str(key), errors.New("expected lax, strict or none"))
		return http.SameSiteLaxMode
	}
}
