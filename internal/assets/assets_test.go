package assets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kec-gateway/internal/cart"
	"github.com/noah-isme/kec-gateway/internal/catalog"
	"github.com/noah-isme/kec-gateway/internal/checkout"
	"github.com/noah-isme/kec-gateway/internal/pricing"
	"github.com/noah-isme/kec-gateway/internal/security"
	"github.com/noah-isme/kec-gateway/internal/session"
	"github.com/noah-isme/kec-gateway/internal/settings"
	"github.com/noah-isme/kec-gateway/internal/shipping"
)

type productMap map[int64]catalog.Product

func (m productMap) Product(_ context.Context, id int64) (catalog.Product, error) {
	p, ok := m[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

type staticSettings settings.Settings

func (s staticSettings) Load(context.Context) (settings.Settings, error) {
	return settings.Settings(s), nil
}

type fixedSession struct {
	id string
	st *session.State
}

func (f fixedSession) Load(context.Context) (string, *session.State, error) {
	return f.id, f.st, nil
}

var products = productMap{
	10: {ID: 10, Name: "Mug", Type: catalog.TypeSimple, Price: decimal.RequireFromString("100"), Purchasable: true},
	30: {ID: 30, Name: "Shirt", Type: catalog.TypeVariable, Price: decimal.RequireFromString("24.995"), Purchasable: true},
}

func enabled(flow, placement string) settings.Settings {
	st := settings.Defaults()
	st.Enabled = "yes"
	st.Flow = flow
	st.Placement = placement
	st.CredentialsSecret = "klarna_test_client_abc"
	st.Theme = "dark"
	return st
}

func newService(st settings.Settings) (*Service, *cart.Service, security.Nonces) {
	nonces := security.Nonces{Secret: []byte("nonce-secret"), TTL: time.Hour}
	cartSvc := &cart.Service{
		Products: products,
		Shipping: shipping.StaticCalculator{Rates: []shipping.Rate{{MethodID: "flat_rate", InstanceID: 1, Label: "Standard", Cost: decimal.RequireFromString("5")}}},
		TaxRate:  pricing.MustRate("10"),
		Currency: "SEK",
	}
	return &Service{
		Registry:      NewRegistry("https://shop.example/static/kec", "1.0.0"),
		Settings:      staticSettings(st),
		Cart:          cartSvc,
		Products:      products,
		Nonces:        nonces,
		AjaxURL:       "/api/v1/kec/ajax/",
		Currency:      "SEK",
		DefaultLocale: "sv-SE",
	}, cartSvc, nonces
}

func handles(scripts []Script) []string {
	out := make([]string, 0, len(scripts))
	for _, s := range scripts {
		out = append(out, s.Handle)
	}
	return out
}

func TestEnqueueDisabled(t *testing.T) {
	svc, _, _ := newService(settings.Defaults())
	bundle, err := svc.Enqueue(context.Background(), Request{Page: PageCart, SessionID: "s1"})
	require.NoError(t, err)
	require.Empty(t, bundle.Scripts)
	require.Empty(t, bundle.Styles)
	require.Nil(t, bundle.Params)
}

func TestEnqueueRespectsPlacement(t *testing.T) {
	svc, _, _ := newService(enabled(settings.FlowOneStep, settings.PlacementCart))
	ctx := context.Background()

	bundle, err := svc.Enqueue(ctx, Request{Page: PageProduct, ProductID: 10, SessionID: "s1"})
	require.NoError(t, err)
	require.Empty(t, bundle.Scripts)

	bundle, err = svc.Enqueue(ctx, Request{Page: PageCart, SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, []string{HandleOneStep}, handles(bundle.Scripts))
	require.Equal(t, []string{HandleCart}, handles(bundle.Styles))
	require.Equal(t, "kec_one_step_params", bundle.ParamsName)
	require.True(t, bundle.Scripts[0].Module)
}

func TestEnqueueTwoStepScripts(t *testing.T) {
	svc, _, _ := newService(enabled(settings.FlowTwoStep, settings.PlacementBoth))
	ctx := context.Background()

	bundle, err := svc.Enqueue(ctx, Request{Page: PageProduct, ProductID: 10, SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, []string{HandleTwoStep}, handles(bundle.Scripts))
	require.Empty(t, bundle.Styles)

	bundle, err = svc.Enqueue(ctx, Request{Page: PageCart, Blocks: true, SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, []string{HandleTwoStepBlock}, handles(bundle.Scripts))
}

func TestEnqueueUnknownPage(t *testing.T) {
	svc, _, _ := newService(enabled(settings.FlowOneStep, settings.PlacementBoth))
	_, err := svc.Enqueue(context.Background(), Request{Page: "checkout"})
	require.ErrorIs(t, err, ErrUnknownPage)
}

func TestParamsCart(t *testing.T) {
	st := enabled(settings.FlowTwoStep, settings.PlacementBoth)
	svc, cartSvc, nonces := newService(st)
	ctx := context.Background()

	state := &session.State{}
	require.NoError(t, cartSvc.Add(ctx, state, 10, 0, 2))
	totals, err := cartSvc.Calculate(ctx, state)
	require.NoError(t, err)

	p, err := svc.Params(ctx, st, Request{Page: PageCart, SessionID: "s1", State: state})
	require.NoError(t, err)
	require.Equal(t, "cart", p.Source)
	require.Equal(t, pricing.ToMinor(totals.Total()), p.Amount)
	require.Equal(t, "SEK", p.Currency)
	require.Equal(t, "klarna_test_client_abc", p.ClientKey)
	require.Equal(t, "dark", p.Theme)
	require.Equal(t, "sv-SE", p.Locale)
	require.True(t, p.Testmode)
	require.Equal(t, ButtonID, p.ButtonID)

	ep, ok := p.Ajax["shipping_change"]
	require.True(t, ok)
	require.Equal(t, "/api/v1/kec/ajax/"+checkout.ActionTwoStepAddressChange, ep.URL)
	require.Equal(t, "POST", ep.Method)
	require.NoError(t, nonces.Verify(ep.Nonce, checkout.ActionTwoStepAddressChange, "s1"))
	require.Error(t, nonces.Verify(ep.Nonce, checkout.ActionTwoStepAddressChange, "s2"))
	require.Contains(t, p.Ajax, "get_payload")
	require.Contains(t, p.Ajax, "finalize_callback")
}

func TestParamsProduct(t *testing.T) {
	st := enabled(settings.FlowOneStep, settings.PlacementBoth)
	st.Locale = "en-SE"
	svc, _, _ := newService(st)

	p, err := svc.Params(context.Background(), st, Request{Page: PageProduct, ProductID: 30, SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, "30", p.Source)
	require.True(t, p.IsVariation)
	require.Equal(t, pricing.Money(2500), p.Amount)
	require.Equal(t, "en-SE", p.Locale)
	require.Equal(t, "/api/v1/kec/ajax/"+checkout.ActionOneStepInitiate, p.Ajax["get_initiate_body"].URL)

	_, err = svc.Params(context.Background(), st, Request{Page: PageProduct, ProductID: 99})
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestHandlerGet(t *testing.T) {
	svc, _, _ := newService(enabled(settings.FlowOneStep, settings.PlacementBoth))
	h := &Handler{Svc: svc, Sessions: fixedSession{id: "s1", st: &session.State{}}}

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/kec/assets?page=product&product_id=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data Bundle `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "10", body.Data.Params.Source)
	require.Equal(t, pricing.Money(10000), body.Data.Params.Amount)

	rec = httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/kec/assets?page=product", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/kec/assets?page=product&product_id=99", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/kec/assets?page=account", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegistryResolvesDependencies(t *testing.T) {
	r := NewRegistry("https://shop.example/static/kec/", "1.0.0")
	scripts := r.resolve(HandleCart, HandleKlarnaPayments)
	require.Equal(t, []string{HandleKlarnaPayments, HandleCart}, handles(scripts))
	require.Equal(t, "https://shop.example/static/kec/js/kec-cart.js", scripts[1].Src)
	require.Equal(t, KlarnaLibraryURL, scripts[0].Src)
}
