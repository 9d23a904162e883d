package checkout

import (
	"context"

	"github.com/noah-isme/kec-gateway/internal/cart"
	"github.com/noah-isme/kec-gateway/internal/customer"
	"github.com/noah-isme/kec-gateway/internal/pricing"
	"github.com/noah-isme/kec-gateway/internal/session"
)

// Flow names, also used as metric labels.
const (
	FlowOneStep = "one_step"
	FlowTwoStep = "two_step"
)

// CustomerProfileScopes are the profile fields the payment widget collects.
var CustomerProfileScopes = []string{
	"profile:name",
	"profile:email",
	"profile:phone",
	"profile:locale",
	"profile:billing_address",
	"profile:country",
}

// CartCalculator prices the session cart.
type CartCalculator interface {
	Calculate(ctx context.Context, st *session.State) (cart.Totals, error)
}

// Context carries everything a quote computation reads: the session state it may mutate and
// the client the request came from.
type Context struct {
	Session   *session.State
	ClientIP  string
	UserAgent string
}

// CustomerID is the storefront user owning the session, 0 for guests.
func (qc *Context) CustomerID() int64 {
	return qc.Session.Customer.UserID
}

// LineItem is one line of the purchase data sent to Klarna. Product lines carry
// lineItemReference, shipping lines carry shippingReference.
type LineItem struct {
	Name              string        `json:"name"`
	LineItemReference string        `json:"lineItemReference,omitempty"`
	ShippingReference string        `json:"shippingReference,omitempty"`
	Quantity          int           `json:"quantity"`
	TotalAmount       pricing.Money `json:"totalAmount"`
	TotalTaxAmount    pricing.Money `json:"totalTaxAmount"`
	ImageURL          string        `json:"imageUrl,omitempty"`
	ProductIdentifier string        `json:"productIdentifier,omitempty"`
}

// ShippingOption is one selectable shipping method.
type ShippingOption struct {
	ShippingOptionReference string        `json:"shippingOptionReference"`
	Amount                  pricing.Money `json:"amount"`
	DisplayName             string        `json:"displayName"`
}

// ShippingQuote answers a shipping address change.
type ShippingQuote struct {
	Amount                          pricing.Money    `json:"amount"`
	Currency                        string           `json:"currency"`
	LineItems                       []LineItem       `json:"lineItems"`
	SelectedShippingOptionReference string           `json:"selectedShippingOptionReference,omitempty"`
	ShippingOptions                 []ShippingOption `json:"shippingOptions"`
}

// OptionQuote answers a shipping option change.
type OptionQuote struct {
	Amount    pricing.Money `json:"amount"`
	LineItems []LineItem    `json:"lineItems"`
}

// ShippingConfig tells the widget whether the shopper may edit the shipping address.
type ShippingConfig struct {
	Mode string `json:"mode"`
}

// InteractionConfig holds the two-step return URL.
type InteractionConfig struct {
	ReturnURL string `json:"returnUrl"`
}

// PurchaseData carries the line items of a payment request.
type PurchaseData struct {
	LineItems []LineItem `json:"lineItems"`
}

// InitiateBody is the payment request body handed to the client script.
type InitiateBody struct {
	CollectCustomerProfile    []string           `json:"collectCustomerProfile"`
	ShippingConfig            ShippingConfig     `json:"shippingConfig"`
	PaymentRequestReference   string             `json:"paymentRequestReference,omitempty"`
	CustomerInteractionConfig *InteractionConfig `json:"customerInteractionConfig,omitempty"`
	Amount                    pricing.Money      `json:"amount"`
	Currency                  string             `json:"currency"`
	SupplementaryPurchaseData PurchaseData       `json:"supplementaryPurchaseData"`
}

// AddressChange is the coarse address reported by the widget plus the payment identifiers.
type AddressChange struct {
	Address          customer.Partial
	PaymentRequestID string
	PaymentToken     string
}

// Flow computes the quotes of one checkout variant.
type Flow interface {
	Name() string
	Initiate(ctx context.Context, qc *Context) (InitiateBody, error)
	ShippingAddressChange(ctx context.Context, qc *Context, change AddressChange) (ShippingQuote, error)
	ShippingOptionChange(ctx context.Context, qc *Context, reference string) (OptionQuote, error)
}
