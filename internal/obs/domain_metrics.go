package obs

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteTotal counts express checkout quote computations.
	QuoteTotal *prometheus.CounterVec
	// NotificationTotal counts inbound Klarna notification outcomes.
	NotificationTotal *prometheus.CounterVec
	// WebhookAdminTotal counts webhook management actions.
	WebhookAdminTotal *prometheus.CounterVec
	// KlarnaRequestTotal counts outbound Klarna API calls.
	KlarnaRequestTotal *prometheus.CounterVec
	// KlarnaRequestLatency records outbound Klarna call latency in milliseconds.
	KlarnaRequestLatency *prometheus.HistogramVec
	// RedirectWaitTotal counts two-step return redirects by how the redirect URL was obtained.
	RedirectWaitTotal *prometheus.CounterVec
	// DraftSweepTotal counts abandoned draft orders cancelled by the sweeper.
	DraftSweepTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kec_quote_total",
			Help:      "Count of express checkout quote computations.",
		}, []string{"flow", "event", "result"})
		NotificationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kec_notification_total",
			Help:      "Count of processed Klarna notifications by outcome.",
		}, []string{"event", "result"})
		WebhookAdminTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kec_webhook_admin_total",
			Help:      "Count of webhook management actions by outcome.",
		}, []string{"action", "result"})
		KlarnaRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kec_klarna_request_total",
			Help:      "Count of outbound Klarna API requests.",
		}, []string{"operation", "result"})
		KlarnaRequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kec_klarna_request_duration_ms",
			Help:      "Latency for outbound Klarna API requests in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"operation"})
		RedirectWaitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kec_redirect_total",
			Help:      "Count of two-step return redirects by source of the destination.",
		}, []string{"source"})
		DraftSweepTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kec_draft_sweep_total",
			Help:      "Number of abandoned draft orders cancelled by the sweeper.",
		})

		mustRegisterCollector(reg, QuoteTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteTotal = v
			}
		})
		mustRegisterCollector(reg, NotificationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				NotificationTotal = v
			}
		})
		mustRegisterCollector(reg, WebhookAdminTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WebhookAdminTotal = v
			}
		})
		mustRegisterCollector(reg, KlarnaRequestTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				KlarnaRequestTotal = v
			}
		})
		mustRegisterCollector(reg, KlarnaRequestLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				KlarnaRequestLatency = v
			}
		})
		mustRegisterCollector(reg, RedirectWaitTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RedirectWaitTotal = v
			}
		})
		mustRegisterCollector(reg, DraftSweepTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				DraftSweepTotal = v
			}
		})
	})
}

// IncQuote records a quote outcome when metrics are registered.
func IncQuote(flow, event, result string) {
	if QuoteTotal != nil {
		QuoteTotal.WithLabelValues(flow, event, result).Inc()
	}
}

// IncNotification records a notification outcome when metrics are registered.
func IncNotification(event, result string) {
	if NotificationTotal != nil {
		NotificationTotal.WithLabelValues(event, result).Inc()
	}
}

// IncWebhookAdmin records a webhook management outcome when metrics are registered.
func IncWebhookAdmin(action, result string) {
	if WebhookAdminTotal != nil {
		WebhookAdminTotal.WithLabelValues(action, result).Inc()
	}
}

// IncRedirect records how a two-step redirect destination was resolved.
func IncRedirect(source string) {
	if RedirectWaitTotal != nil {
		RedirectWaitTotal.WithLabelValues(source).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

// ObserveKlarnaRequest records an outbound Klarna call when metrics are registered.
func ObserveKlarnaRequest(operation, result string, took time.Duration) {
	if KlarnaRequestTotal != nil {
		KlarnaRequestTotal.WithLabelValues(operation, result).Inc()
	}
	if KlarnaRequestLatency != nil {
		KlarnaRequestLatency.WithLabelValues(operation).Observe(float64(took.Milliseconds()))
	}
}

// IncDraftSweep records one cancelled abandoned draft when metrics are registered.
func IncDraftSweep() {
	if DraftSweepTotal != nil {
		DraftSweepTotal.Inc()
	}
}
