package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/kec-gateway/internal/app"
	"github.com/noah-isme/kec-gateway/internal/assets"
	"github.com/noah-isme/kec-gateway/internal/audit"
	"github.com/noah-isme/kec-gateway/internal/cart"
	"github.com/noah-isme/kec-gateway/internal/catalog"
	"github.com/noah-isme/kec-gateway/internal/checkout"
	"github.com/noah-isme/kec-gateway/internal/common"
	"github.com/noah-isme/kec-gateway/internal/config"
	"github.com/noah-isme/kec-gateway/internal/health"
	"github.com/noah-isme/kec-gateway/internal/klarna"
	"github.com/noah-isme/kec-gateway/internal/notification"
	"github.com/noah-isme/kec-gateway/internal/obs"
	"github.com/noah-isme/kec-gateway/internal/order"
	"github.com/noah-isme/kec-gateway/internal/pricing"
	"github.com/noah-isme/kec-gateway/internal/ratelimit"
	"github.com/noah-isme/kec-gateway/internal/resilience"
	"github.com/noah-isme/kec-gateway/internal/security"
	"github.com/noah-isme/kec-gateway/internal/session"
	"github.com/noah-isme/kec-gateway/internal/settings"
	"github.com/noah-isme/kec-gateway/internal/shipping"
	"github.com/noah-isme/kec-gateway/internal/webhooksetup"
)

const (
	ajaxPrefix       = "/api/v1/kec/ajax/"
	notificationPath = "/api/v1/kec/notifications"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "kec")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "kec-gateway",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
			ModuleVersion: cfg.Klarna.ModuleVersion,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if envBool("DB_AUTO_MIGRATE", !cfg.IsProduction()) {
		if err := app.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	deps, err := app.Open(startCtx, cfg, "kec-api", metricsEnabled, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("open dependencies")
	}
	defer deps.Close()

	taxRate, err := pricing.NewRate(cfg.TaxRatePercent)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse tax rate")
	}

	settingsSvc := settings.NewService(settings.NewPGOptionStore(deps.DB), cfg.KEC.OptionsKey, deps.Validator)
	catalogSvc := catalog.NewService(catalog.NewPGStore(deps.DB), catalog.NewCache(deps.Redis, envDurationMillis("CATALOG_CACHE_TTL_MS", 60_000)))
	orders := order.NewPGRepository(deps.DB)

	cartSvc := &cart.Service{
		Products:         catalogSvc,
		Shipping:         shipping.TableCalculator{Rules: shipping.NewPGRuleStore(deps.DB), TaxRate: taxRate},
		TaxRate:          taxRate,
		PricesIncludeTax: cfg.PricesIncludeTax,
		Currency:         cfg.CurrencyCode,
	}

	sessions := session.NewManager(session.NewRedisStore(deps.Redis, cfg.SessionTTL), session.CookieOptions{
		Name:     cfg.SessionCookieName,
		Secret:   cfg.SessionSecret,
		Domain:   cfg.CookieDomain,
		MaxAge:   int(cfg.SessionTTL / time.Second),
		Secure:   cfg.CookieSecure,
		SameSite: cfg.CookieSameSite,
	})
	nonces := security.Nonces{Secret: []byte(cfg.NonceSecret), TTL: cfg.NonceTTL}

	drafts := &checkout.Drafts{Orders: orders, PricesIncludeTax: cfg.PricesIncludeTax}
	checkoutHandler := &checkout.Handler{
		Sessions:    sessions,
		Cart:        cartSvc,
		Products:    catalogSvc,
		OneStep:     checkout.OneStep{Cart: cartSvc},
		TwoStep:     checkout.TwoStep{Cart: cartSvc, Drafts: drafts, PublicBaseURL: cfg.PublicBaseURL},
		Tokens:      klarna.ClientTokenParser{},
		Payload:     checkout.CartPayload{Cart: cartSvc, DefaultCountry: cfg.Klarna.Country, Locale: envOrDefault("KEC_LOCALE", "")},
		Finalizer:   checkout.OrderFinalizer{Orders: orders, PublicBaseURL: cfg.PublicBaseURL},
		LockTTL:     cfg.LockTTL,
		CheckoutURL: cfg.PublicBaseURL + "/checkout",
		Validate:    deps.Validator,
	}
	if cfg.KEC.SessionLock {
		checkoutHandler.Locker = deps.Locker
	}
	storefrontGuard := security.NonceGuard{
		Nonces: nonces,
		Action: func(r *http.Request) string { return chi.URLParam(r, "action") },
		Subject: func(r *http.Request) string {
			id, _ := session.IDFromContext(r.Context())
			return id
		},
	}

	returnHandler := &checkout.ReturnHandler{
		Sessions: sessions,
		Orders:   orders,
		Window:   cfg.KEC.OrderLookupWindow,
		Wait: resilience.PollConfig{
			Budget:      cfg.KEC.RedirectWaitBudget,
			Interval:    cfg.KEC.RedirectWaitEvery,
			Multiplier:  1.5,
			MaxInterval: 2 * time.Second,
		},
		PublicBaseURL: cfg.PublicBaseURL,
		CartURL:       cfg.PublicBaseURL + "/cart",
		AllowedHosts:  cfg.KEC.RedirectHosts,
	}

	partners, err := notification.NewPartnerRegistry(settingsSvc)
	if err != nil {
		logger.Fatal().Err(err).Msg("register acquiring partners")
	}
	dispatcher, err := notification.NewDispatcher(
		notification.NewCompleted(orders, cfg.KEC.OrderLookupWindow, partners, notification.StatusProcessor{}, cfg.PublicBaseURL),
		notification.NewExpired(orders, cfg.KEC.OrderLookupWindow, nil),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("register notification handlers")
	}
	notificationEndpoint := &notification.Endpoint{
		Dispatcher: dispatcher,
		Keys:       settingsSvc,
		Replay:     notification.RedisReplayGuard{Client: deps.Redis, TTL: cfg.WebhookReplayTTL},
	}

	klarnaClient := app.NewKlarnaClient(cfg.Klarna, settingsSvc, logger)
	webhookAdmin := &webhooksetup.Handler{
		Svc: &webhooksetup.Service{
			Klarna:          klarnaClient,
			Store:           settingsSvc,
			NotificationURL: cfg.PublicBaseURL + notificationPath,
		},
		Nonces:  nonces,
		Subject: cfg.AdminUser,
	}

	assetsHandler := &assets.Handler{
		Svc: &assets.Service{
			Registry:      assets.NewRegistry(envOrDefault("KEC_ASSETS_BASE_URL", cfg.PublicBaseURL+"/static/kec"), cfg.Klarna.ModuleVersion),
			Settings:      settingsSvc,
			Cart:          cartSvc,
			Products:      catalogSvc,
			Nonces:        nonces,
			AjaxURL:       ajaxPrefix,
			Currency:      cfg.CurrencyCode,
			DefaultLocale: envOrDefault("KEC_LOCALE", ""),
		},
		Sessions: sessions,
	}

	cartHandler := &cart.Handler{Svc: cartSvc, Sessions: sessions, Validate: deps.Validator}
	settingsHandler := &settings.Handler{Svc: settingsSvc}
	orderAdmin := &order.AdminHandler{Repo: orders}
	adminAuth := security.AdminAuth{User: cfg.AdminUser, PasswordHash: cfg.AdminPasswordHash}

	auditStore := audit.NewPGStore(deps.DB)
	auditRecorder := audit.HTTPRecorder{
		Service: &audit.Service{
			Store:        auditStore,
			Enabled:      envBool("AUDIT_ENABLED", true),
			SamplingRate: envFloat("AUDIT_SAMPLING_RATE", 1),
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("record audit entry") },
	}
	auditHandler := &audit.Handler{Store: auditStore}
	idem := common.Idem{R: deps.Redis, TTL: 10 * time.Minute}

	limiter := ratelimit.Limiter{Client: deps.Redis, Prefix: "kec:rl:"}
	onLimitError := func(err error) { logger.Error().Err(err).Msg("rate limiter unavailable") }
	ajaxLimit := ratelimit.Handler{
		Limiter: limiter,
		Config:  ratelimit.Config{Key: ratelimit.BySessionOrIP("ajax"), Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
		OnError: onLimitError,
	}
	notificationLimit := ratelimit.Handler{
		Limiter: limiter,
		Config:  ratelimit.Config{Key: ratelimit.ByClientIP("notifications"), Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
		OnError: onLimitError,
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", "")), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.Annotate)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(security.Headers{
		Enable:        envBool("SECURE_HEADERS_ENABLED", true),
		EnableHSTS:    cfg.IsProduction(),
		HSTSMaxAge:    envInt("SECURE_HSTS_MAX_AGE", 31536000),
		ScriptOrigins: []string{"https://x.klarnacdn.net", "https://js.klarna.com"},
	}.Middleware)
	r.Use(security.BodyLimit{
		Max: cfg.BodyLimitBytes,
		Routes: map[string]int64{
			ajaxPrefix:       int64(envInt("KEC_AJAX_BODY_LIMIT_BYTES", 64<<10)),
			notificationPath: int64(envInt("KEC_NOTIFICATION_BODY_LIMIT_BYTES", 256<<10)),
		},
	}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", security.NonceHeader, klarna.SignatureHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", ""), envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")))
	}

	healthHandler := health.Handler{Probes: []health.Probe{
		health.Postgres(deps.DB, envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500)),
		health.Redis(deps.Redis, envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300)),
		health.Breaker("klarna", klarnaClient.HTTP.Breaker),
	}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	// Klarna delivers notifications without a browser session.
	r.With(obs.RequestLogger{Logger: logger}.Middleware, notificationLimit.Middleware).Post(notificationPath, notificationEndpoint.ServeHTTP)

	r.Group(func(storefront chi.Router) {
		storefront.Use(sessions.Middleware)
		storefront.Use(obs.RequestLogger{Logger: logger}.Middleware)

		storefront.Get("/", func(w http.ResponseWriter, req *http.Request) {
			if req.URL.Query().Get(checkout.ReturnQueryParam) == "" {
				http.NotFound(w, req)
				return
			}
			returnHandler.ServeHTTP(w, req)
		})
		storefront.Get("/kec/two-step/return", returnHandler.ServeHTTP)

		storefront.Route("/api/v1", func(v chi.Router) {
			v.Get("/cart", cartHandler.Get)
			v.Post("/cart/items", cartHandler.AddItem)
			v.Delete("/cart", cartHandler.Clear)

			v.Get("/kec/assets", assetsHandler.Get)
			v.With(ajaxLimit.Middleware, storefrontGuard.Middleware).Post("/kec/ajax/{action}", checkoutHandler.Dispatch)
		})
	})

	r.Route("/api/v1/admin/kec", func(admin chi.Router) {
		admin.Use(obs.RequestLogger{Logger: logger}.Middleware)
		admin.Use(adminAuth.Middleware)
		admin.Get("/settings", settingsHandler.Get)
		admin.With(auditRecorder.Middleware(audit.Route{Action: "settings.update", ResourceType: "settings"})).
			Put("/settings", settingsHandler.Put)
		admin.Get("/webhook/nonces", webhookAdmin.IssueNonces)
		admin.With(
			webhookAdmin.NonceGuard().Middleware,
			idem.Middleware,
			auditRecorder.Middleware(audit.Route{ResourceType: "webhook", IDParam: "action"}),
		).Post("/webhook/{action}", webhookAdmin.Run)
		admin.Get("/orders/{orderID}", orderAdmin.Get)
		admin.With(auditRecorder.Middleware(audit.Route{Action: "order.status.update", ResourceType: "order", IDParam: "orderID"})).
			Patch("/orders/{orderID}/status", orderAdmin.PatchStatus)
		admin.Get("/audit", auditHandler.List)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	health.SetReady(true)
	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{cfg.PublicBaseURL}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
