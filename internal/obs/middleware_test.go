package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kec-gateway/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("kec", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/kec/ajax/kec_set_cart", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/kec/ajax/{action}"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodPost, "/api/v1/kec/ajax/{action}", "204")))
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Equal(t, float64(0), testutil.ToFloat64(metrics.InFlight))
}

func TestHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("kec", nil, registry)
	second := obs.NewHTTPMetrics("kec", nil, registry)
	require.Same(t, first.ReqTotal, second.ReqTotal)
}

func TestRequestLoggerAttachesContextLogger(t *testing.T) {
	var seen bool
	logger := obs.RequestLogger{Logger: zerolog.Nop()}
	handler := logger.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = zerolog.Ctx(r.Context()) != nil
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, seen)
}

func TestSessionIDContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := obs.WithSessionID(req.Context(), "abc")
	require.Equal(t, "abc", obs.SessionIDFromContext(ctx))
	require.Empty(t, obs.SessionIDFromContext(req.Context()))
}

func TestAnnotateExposesInnerSessionToOuterMiddleware(t *testing.T) {
	var seen string
	outer := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			seen = obs.SessionIDFromContext(r.Context())
		})
	}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = obs.WithSessionID(r.Context(), "sess-42")
	})
	obs.Annotate(outer(inner)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "sess-42", seen)
}

func TestMetricsUseChiRouteAfterRouting(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("kec", nil, registry)

	r := chi.NewRouter()
	r.Use(obs.Annotate, obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Route("/api/v1/kec", func(r chi.Router) {
		r.Get("/orders/{orderID}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/kec/orders/7", nil))

	require.Equal(t, float64(1), testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/kec/orders/{orderID}", "404")))
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{5, 25.5, 100}, obs.ParseBucketsCSV(" 5, 25.5,,abc,-1,100"))
	require.Nil(t, obs.ParseBucketsCSV(""))
}
