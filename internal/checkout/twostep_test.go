package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kec-gateway/internal/order"
	"github.com/noah-isme/kec-gateway/internal/pricing"
)

func TestTwoStepInitiate(t *testing.T) {
	svc := testCart(testRates())
	flow, _ := testTwoStep(svc)
	qc := &Context{Session: stateWith(t, svc, 10)}

	body, err := flow.Initiate(context.Background(), qc)
	require.NoError(t, err)
	require.Equal(t, "kec_two_step_abc123", body.PaymentRequestReference)
	require.Equal(t, "https://shop.example/?kec-two-step=kec_two_step_abc123", body.CustomerInteractionConfig.ReturnURL)
	require.Equal(t, pricing.Money(11000), body.Amount)
	require.Equal(t, "kec_two_step_abc123", qc.Session.TwoStepUniqueID)
}

func TestTwoStepUniqueIDFormat(t *testing.T) {
	id := TwoStep{}.uniqueID()
	require.Regexp(t, `^kec_two_step_[0-9a-f]{13}$`, id)
}

func TestTwoStepAddressChangeCreatesAndReusesDraft(t *testing.T) {
	ctx := context.Background()
	svc := testCart(testRates())
	flow, repo := testTwoStep(svc)
	st := stateWith(t, svc, 10)
	st.Customer.UserID = 5
	st.Customer.Billing.Email = "ada@example.com"
	qc := &Context{Session: st, ClientIP: "203.0.113.9", UserAgent: "test-agent"}

	_, err := flow.Initiate(ctx, qc)
	require.NoError(t, err)
	quote, err := flow.ShippingAddressChange(ctx, qc, AddressChange{Address: stockholm, PaymentRequestID: "krn:pr:1"})
	require.NoError(t, err)
	require.Equal(t, pricing.Money(11550), quote.Amount)
	require.NotZero(t, st.TwoStepOrderID)

	o, err := repo.Get(ctx, st.TwoStepOrderID)
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, o.Status)
	require.Equal(t, order.CreatedViaKEC, o.CreatedVia)
	require.Equal(t, int64(5), o.CustomerID)
	require.Equal(t, "krn:pr:1", o.GetMeta(order.MetaPaymentRequestID))
	require.Equal(t, "kec_two_step_abc123", o.GetMeta(order.MetaUniqueID))
	require.Equal(t, "203.0.113.9", o.CustomerIP)
	require.Equal(t, "SEK", o.Currency)
	require.Equal(t, "ada@example.com", o.Billing.Email)
	require.Equal(t, "Stockholm", o.Shipping.City)
	require.Len(t, o.ItemsOf(order.ItemProduct), 1)
	require.Len(t, o.ItemsOf(order.ItemShipping), 1)
	require.Equal(t, pricing.Money(11550), pricing.ToMinor(o.Total))

	firstID := o.ID
	_, err = flow.ShippingAddressChange(ctx, qc, AddressChange{Address: stockholm, PaymentRequestID: "krn:pr:1"})
	require.NoError(t, err)
	require.Equal(t, firstID, st.TwoStepOrderID)
	require.Equal(t, 1, repo.Len())
}

func TestTwoStepDraftNotReusedAcrossAttempts(t *testing.T) {
	ctx := context.Background()
	svc := testCart(testRates())
	flow, repo := testTwoStep(svc)
	qc := &Context{Session: stateWith(t, svc, 10)}

	_, err := flow.Initiate(ctx, qc)
	require.NoError(t, err)
	_, err = flow.ShippingAddressChange(ctx, qc, AddressChange{Address: stockholm, PaymentRequestID: "krn:pr:1"})
	require.NoError(t, err)
	firstID := qc.Session.TwoStepOrderID

	flow.NewUniqueID = func() string { return "kec_two_step_def456" }
	_, err = flow.Initiate(ctx, qc)
	require.NoError(t, err)
	_, err = flow.ShippingAddressChange(ctx, qc, AddressChange{Address: stockholm, PaymentRequestID: "krn:pr:2"})
	require.NoError(t, err)

	require.NotEqual(t, firstID, qc.Session.TwoStepOrderID)
	require.Equal(t, 2, repo.Len())
	first, err := repo.Get(ctx, firstID)
	require.NoError(t, err)
	require.Equal(t, "kec_two_step_abc123", first.GetMeta(order.MetaUniqueID))
}

func TestTwoStepDraftNotReusedForOtherCustomer(t *testing.T) {
	ctx := context.Background()
	svc := testCart(testRates())
	flow, repo := testTwoStep(svc)
	qc := &Context{Session: stateWith(t, svc, 10)}

	_, err := flow.Initiate(ctx, qc)
	require.NoError(t, err)
	_, err = flow.ShippingAddressChange(ctx, qc, AddressChange{Address: stockholm})
	require.NoError(t, err)

	qc.Session.Customer.UserID = 42
	_, err = flow.ShippingAddressChange(ctx, qc, AddressChange{Address: stockholm})
	require.NoError(t, err)
	require.Equal(t, 2, repo.Len())
}

func TestTwoStepOptionChangeReplacesShipping(t *testing.T) {
	ctx := context.Background()
	svc := testCart(testRates())
	flow, repo := testTwoStep(svc)
	qc := &Context{Session: stateWith(t, svc, 10)}

	_, err := flow.Initiate(ctx, qc)
	require.NoError(t, err)
	_, err = flow.ShippingAddressChange(ctx, qc, AddressChange{Address: stockholm, PaymentRequestID: "krn:pr:1"})
	require.NoError(t, err)

	quote, err := flow.ShippingOptionChange(ctx, qc, "flat_rate:2")
	require.NoError(t, err)
	require.Equal(t, pricing.Money(12650), quote.Amount)

	o, err := repo.Get(ctx, qc.Session.TwoStepOrderID)
	require.NoError(t, err)
	lines := o.ItemsOf(order.ItemShipping)
	require.Len(t, lines, 1)
	require.Equal(t, "Express", lines[0].Name)
	require.Equal(t, 2, lines[0].InstanceID)
	require.Equal(t, pricing.Money(12650), pricing.ToMinor(o.Total))
}

func TestTwoStepOptionChangeSameRateSkipsWrite(t *testing.T) {
	ctx := context.Background()
	svc := testCart(testRates())
	flow, repo := testTwoStep(svc)
	qc := &Context{Session: stateWith(t, svc, 10)}

	_, err := flow.Initiate(ctx, qc)
	require.NoError(t, err)
	_, err = flow.ShippingAddressChange(ctx, qc, AddressChange{Address: stockholm, PaymentRequestID: "krn:pr:1"})
	require.NoError(t, err)
	_, err = flow.ShippingOptionChange(ctx, qc, "flat_rate:2")
	require.NoError(t, err)
	saves := repo.Saves

	quote, err := flow.ShippingOptionChange(ctx, qc, "flat_rate:2")
	require.NoError(t, err)
	require.Equal(t, pricing.Money(12650), quote.Amount)
	require.Equal(t, saves, repo.Saves)

	_, err = flow.ShippingOptionChange(ctx, qc, "flat_rate:1")
	require.NoError(t, err)
	require.Greater(t, repo.Saves, saves)
}

func TestTwoStepOptionChangeWithoutDraft(t *testing.T) {
	svc := testCart(testRates())
	flow, repo := testTwoStep(svc)
	qc := &Context{Session: stateWith(t, svc, 10)}

	_, err := flow.ShippingOptionChange(context.Background(), qc, "flat_rate:1")
	require.NoError(t, err)
	require.Zero(t, repo.Len())
}
