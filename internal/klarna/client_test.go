package klarna

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kec-gateway/internal/resilience"
)

type recorded struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, &rec.Body))
		}
		calls = append(calls, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return &Client{
		HTTP:          resilience.HTTPClient{Client: srv.Client()},
		Username:      "merchant",
		Password:      "secret",
		ModuleVersion: "4.1.0",
		BaseURL:       srv.URL,
	}, &calls
}

func TestCreateSigningKey(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"signing_key_id":"sk-1","signing_key":"abc","created_at":"2026-01-01T00:00:00Z"}`))
	})

	key, err := client.CreateSigningKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-1", key.SigningKeyID)
	require.Equal(t, "abc", key.SigningKey)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	require.Equal(t, http.MethodPost, call.Method)
	require.Equal(t, "/v2/notification/signing-keys", call.Path)
	require.Equal(t, "Basic bWVyY2hhbnQ6c2VjcmV0", call.Header.Get("Authorization"))

	var meta map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(call.Header.Get(IntegrationMetadataHeader)), &meta))
	require.Equal(t, "WOOCOMMERCE", meta["integrator"]["name"])
	require.Equal(t, "4.1.0", meta["integrator"]["module_version"])
}

func TestCreateWebhookBody(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"webhook_id":"wh-1","url":"https://shop.example/api/v1/kec/notifications","status":"ENABLED"}`))
	})

	wh, err := client.CreateWebhook(context.Background(), "https://shop.example/api/v1/kec/notifications",
		[]string{EventPaymentCompleted, EventPaymentExpired}, EventVersion, "sk-1")
	require.NoError(t, err)
	require.Equal(t, "wh-1", wh.WebhookID)

	body := (*calls)[0].Body
	require.Equal(t, "https://shop.example/api/v1/kec/notifications", body["url"])
	require.Equal(t, []any{EventPaymentCompleted, EventPaymentExpired}, body["event_types"])
	require.Equal(t, "v2", body["event_version"])
	require.Equal(t, "sk-1", body["signing_key_id"])
	require.Equal(t, "ENABLED", body["status"])
}

func TestDeleteAndSimulatePaths(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, client.DeleteWebhook(ctx, "wh-1"))
	require.NoError(t, client.DeleteSigningKey(ctx, "sk-1"))
	require.NoError(t, client.SimulateWebhook(ctx, "wh-1", EventPaymentSubmitted, EventVersion))

	require.Len(t, *calls, 3)
	require.Equal(t, http.MethodDelete, (*calls)[0].Method)
	require.Equal(t, "/v2/notification/webhooks/wh-1", (*calls)[0].Path)
	require.Equal(t, "/v2/notification/signing-keys/sk-1", (*calls)[1].Path)
	require.Equal(t, "/v2/notification/webhooks/wh-1/simulate", (*calls)[2].Path)
	require.Equal(t, EventPaymentSubmitted, (*calls)[2].Body["event_type"])

	require.ErrorIs(t, client.DeleteWebhook(ctx, ""), errMissingID)
	require.Len(t, *calls, 3)
}

func TestNon2xxIsAPIError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error_code":"UNAUTHORIZED"}`))
	})

	_, err := client.CreateSigningKey(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "create_signing_key", apiErr.Operation)
	require.Contains(t, apiErr.Body, "UNAUTHORIZED")
}

func TestBaseURLFromTestmode(t *testing.T) {
	require.Equal(t, "https://api-global.test.klarna.com/", BaseURLFor(true))
	require.Equal(t, "https://api-global.klarna.com/", BaseURLFor(false))

	c := &Client{Testmode: func(context.Context) (bool, error) { return true, nil }}
	base, err := c.baseURL(context.Background())
	require.NoError(t, err)
	require.Equal(t, PlaygroundBaseURL, base)

	c.Testmode = func(context.Context) (bool, error) { return false, errors.New("options down") }
	_, err = c.baseURL(context.Background())
	require.Error(t, err)
}
