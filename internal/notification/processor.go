package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/noah-isme/kec-gateway/internal/order"
)

// PaymentMethodKlarna is recorded on orders settled by a completion notification.
const PaymentMethodKlarna = "klarna_payments"

// NotePaymentCompleted is recorded when the default processor settles an order.
const NotePaymentCompleted = "Payment completed with Klarna Express Checkout."

// StatusProcessor settles an order in place: it marks it processing and keeps the
// interoperability token for later capture. Saving is left to the caller.
type StatusProcessor struct {
	Now func() time.Time
}

// ProcessOrder implements OrderProcessor.
func (p StatusProcessor) ProcessOrder(_ context.Context, o *order.Order, interoperabilityToken, _ string, _ json.RawMessage) error {
	if o.Status.Terminal() || o.Status == order.StatusProcessing {
		return nil
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	o.Status = order.StatusProcessing
	o.PaymentMethod = PaymentMethodKlarna
	if interoperabilityToken != "" {
		o.SetMeta(order.MetaAuthorization, interoperabilityToken)
	}
	o.AddNote(NotePaymentCompleted, now())
	return nil
}
