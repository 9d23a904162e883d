package settings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	store := NewMemoryOptions()
	require.NoError(t, store.Set(context.Background(), "kp", map[string]string{"kec_enabled": "yes", "kec_theme": "dark"}))
	svc := NewService(store, "kp", nil)

	st, err := svc.Load(context.Background())
	require.NoError(t, err)
	require.True(t, st.IsEnabled())
	require.Equal(t, "dark", st.Theme)
	require.Equal(t, "default", st.Shape)
	require.Equal(t, FlowOneStep, st.Flow)
	require.True(t, st.ShowOn(PlacementCart))
	require.True(t, st.ShowOn(PlacementProduct))
}

func TestUpdateRejectsUnknownValues(t *testing.T) {
	svc := NewService(NewMemoryOptions(), "kp", nil)
	_, err := svc.Update(context.Background(), Settings{Enabled: "yes", Shape: "circle"})
	require.ErrorIs(t, err, ErrInvalid)

	st, err := svc.Update(context.Background(), Settings{Enabled: "yes", Shape: "pill", Placement: PlacementCart, CredentialsSecret: " klarna_test_client "})
	require.NoError(t, err)
	require.Equal(t, "klarna_test_client", st.CredentialsSecret)
	require.False(t, st.ShowOn(PlacementProduct))
}

func TestWebhookAndSigningKeyRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOptions()
	svc := NewService(store, "kp", nil)

	wh, err := svc.Webhook(ctx)
	require.NoError(t, err)
	require.Nil(t, wh)

	require.NoError(t, svc.SaveSigningKey(ctx, SigningKey{SigningKeyID: "sk_1"}))
	require.NoError(t, svc.SaveWebhook(ctx, Webhook{WebhookID: "wh_1", SigningKeyID: "sk_1"}))
	wh, err = svc.Webhook(ctx)
	require.NoError(t, err)
	require.Equal(t, "wh_1", wh.WebhookID)

	require.NoError(t, svc.DeleteWebhook(ctx))
	require.NoError(t, svc.DeleteSigningKey(ctx))
	require.False(t, store.Has(OptionWebhook))
	require.False(t, store.Has(OptionSigningKey))
}

func TestHandlerPutValidation(t *testing.T) {
	h := &Handler{Svc: NewService(NewMemoryOptions(), "kp", nil)}
	rr := httptest.NewRecorder()
	h.Put(rr, httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"kec_theme":"neon"}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.Put(rr, httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"kec_theme":"light","kec_flow":"two_step"}`)))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.Get(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Contains(t, rr.Body.String(), `"kec_flow":"two_step"`)
	require.Contains(t, rr.Body.String(), `"fields"`)
}
