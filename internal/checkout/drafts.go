package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/kec-gateway/internal/cart"
	"github.com/noah-isme/kec-gateway/internal/order"
)

// Drafts keeps the two-step provisional order in step with the session cart.
type Drafts struct {
	Orders           order.Repository
	PricesIncludeTax bool
	Now              func() time.Time
}

func (d *Drafts) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// sessionOrder returns the draft remembered by the session when it is still pending, belongs to
// the session customer and carries the session correlation id. Otherwise nil.
func (d *Drafts) sessionOrder(ctx context.Context, qc *Context) (*order.Order, error) {
	st := qc.Session
	if st.TwoStepOrderID == 0 {
		return nil, nil
	}
	o, err := d.Orders.Get(ctx, st.TwoStepOrderID)
	if errors.Is(err, order.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load draft order: %w", err)
	}
	if o.CustomerID != qc.CustomerID() || o.Status != order.StatusPending || o.GetMeta(order.MetaUniqueID) != st.TwoStepUniqueID {
		zerolog.Ctx(ctx).Info().Int64("order_id", o.ID).Msg("session draft order not reusable, starting a new one")
		return nil, nil
	}
	return o, nil
}

// Upsert rebuilds the provisional order from the cart and stamps the payment request id and
// session correlation id on it. The order id is remembered in the session.
func (d *Drafts) Upsert(ctx context.Context, qc *Context, totals cart.Totals, paymentRequestID string) (*order.Order, error) {
	o, err := d.sessionOrder(ctx, qc)
	if err != nil {
		return nil, err
	}
	if o == nil {
		o = order.New(order.CreatedViaKEC, qc.CustomerID())
	}

	o.RemoveItems("")
	o.CustomerIP = qc.ClientIP
	o.UserAgent = qc.UserAgent
	o.SetMeta(order.MetaPaymentRequestID, paymentRequestID)
	o.SetMeta(order.MetaUniqueID, qc.Session.TwoStepUniqueID)
	o.Currency = totals.Currency
	o.PricesIncludeTax = d.PricesIncludeTax
	for _, l := range totals.Lines {
		item := order.Item{
			Type:      order.ItemProduct,
			Name:      l.Product.Name,
			ProductID: l.Product.ID,
			SKU:       l.Product.SKU,
			Quantity:  l.Quantity,
			Subtotal:  l.LineSubtotal,
			Total:     l.LineTotal,
			Tax:       l.LineTax,
		}
		if l.Product.IsVariation() {
			item.ProductID, item.VariationID = l.Product.ParentID, l.Product.ID
		}
		o.AddItem(item)
	}
	addShipping(o, totals)
	o.Billing.Merge(qc.Session.Customer.Billing)
	o.Shipping.Merge(qc.Session.Customer.Shipping)
	o.CalculateTotals()

	if err := d.persist(ctx, o); err != nil {
		return nil, err
	}
	qc.Session.TwoStepOrderID = o.ID
	return o, nil
}

// ReplaceShipping swaps the shipping lines of the session's draft order for the cart's chosen rate.
// Without a draft there is nothing to update.
func (d *Drafts) ReplaceShipping(ctx context.Context, qc *Context, totals cart.Totals) (*order.Order, error) {
	o, err := d.sessionOrder(ctx, qc)
	if err != nil || o == nil {
		return nil, err
	}
	if shippingMatches(o.ItemsOf(order.ItemShipping), totals) {
		return o, nil
	}
	o.RemoveItems(order.ItemShipping)
	addShipping(o, totals)
	o.CalculateTotals()
	if err := d.persist(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (d *Drafts) persist(ctx context.Context, o *order.Order) error {
	if o.ID == 0 {
		if err := d.Orders.Create(ctx, o); err != nil {
			return fmt.Errorf("create draft order: %w", err)
		}
		o.AddNote("Order created by Klarna Express Checkout.", d.now())
		zerolog.Ctx(ctx).Info().Int64("order_id", o.ID).Msg("draft order created")
	}
	if err := d.Orders.Save(ctx, o); err != nil {
		return fmt.Errorf("save draft order: %w", err)
	}
	return nil
}

// shippingMatches reports whether lines already hold exactly the cart's chosen rate.
func shippingMatches(lines []order.Item, totals cart.Totals) bool {
	if totals.ShippingRate == nil {
		return len(lines) == 0
	}
	if len(lines) != 1 {
		return false
	}
	rate, l := totals.ShippingRate, lines[0]
	return l.MethodID == rate.MethodID && l.InstanceID == rate.InstanceID &&
		l.Total.Equal(rate.Cost) && l.Tax.Equal(totals.ShippingTax)
}

func addShipping(o *order.Order, totals cart.Totals) {
	if totals.ShippingRate == nil {
		return
	}
	rate := *totals.ShippingRate
	o.AddItem(order.Item{
		Type:       order.ItemShipping,
		Name:       rate.Label,
		Quantity:   1,
		Subtotal:   rate.Cost,
		Total:      rate.Cost,
		Tax:        totals.ShippingTax,
		MethodID:   rate.MethodID,
		InstanceID: rate.InstanceID,
	})
}
