package order

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/kec-gateway/internal/customer"
)

// CreatedViaKEC marks orders created by the express checkout.
const CreatedViaKEC = "klarna_express_checkout"

// Meta keys stamped on express checkout orders.
const (
	MetaPaymentRequestID = "_kec_payment_request_id"
	MetaUniqueID         = "_kec_unique_id"
	MetaRedirectURL      = "_kec_redirect_url"
	MetaAuthorization    = "_kec_authorization_token"
)

// Status is the order lifecycle state.
type Status string

// Order statuses.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusOnHold     Status = "on-hold"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusOnHold, StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// ErrNotFound is returned when no order matches.
var ErrNotFound = errors.New("order not found")

// ItemType distinguishes product lines from shipping lines.
type ItemType string

// Item types.
const (
	ItemProduct  ItemType = "line_item"
	ItemShipping ItemType = "shipping"
)

// Item is one order line.
type Item struct {
	Type        ItemType        `json:"type"`
	Name        string          `json:"name"`
	ProductID   int64           `json:"product_id,omitempty"`
	VariationID int64           `json:"variation_id,omitempty"`
	SKU         string          `json:"sku,omitempty"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Total       decimal.Decimal `json:"total"`
	Tax         decimal.Decimal `json:"total_tax"`
	MethodID    string          `json:"method_id,omitempty"`
	InstanceID  int             `json:"instance_id,omitempty"`
}

// Note is an order note visible to store staff.
type Note struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Order is a store order.
type Order struct {
	ID               int64             `json:"id"`
	Key              string            `json:"order_key"`
	Status           Status            `json:"status"`
	CreatedVia       string            `json:"created_via"`
	CustomerID       int64             `json:"customer_id"`
	Currency         string            `json:"currency"`
	PricesIncludeTax bool              `json:"prices_include_tax"`
	Billing          customer.Address  `json:"billing"`
	Shipping         customer.Address  `json:"shipping"`
	CustomerIP       string            `json:"customer_ip_address,omitempty"`
	UserAgent        string            `json:"customer_user_agent,omitempty"`
	PaymentMethod    string            `json:"payment_method,omitempty"`
	Items            []Item            `json:"line_items"`
	Meta             map[string]string `json:"meta_data"`
	Notes            []Note            `json:"notes,omitempty"`
	ShippingTotal    decimal.Decimal   `json:"shipping_total"`
	ShippingTax      decimal.Decimal   `json:"shipping_tax"`
	CartTax          decimal.Decimal   `json:"cart_tax"`
	Total            decimal.Decimal   `json:"total"`
	CreatedAt        time.Time         `json:"date_created"`
	UpdatedAt        time.Time         `json:"date_modified"`
}

// New returns a pending order created via the given channel.
func New(createdVia string, customerID int64) *Order {
	return &Order{
		Key:        "wc_order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:13],
		Status:     StatusPending,
		CreatedVia: createdVia,
		CustomerID: customerID,
		Meta:       map[string]string{},
	}
}

// GetMeta returns a meta value or "".
func (o *Order) GetMeta(key string) string {
	if o.Meta == nil {
		return ""
	}
	return o.Meta[key]
}

// SetMeta stores a meta value. An empty value deletes the key.
func (o *Order) SetMeta(key, value string) {
	if o.Meta == nil {
		o.Meta = map[string]string{}
	}
	if value == "" {
		delete(o.Meta, key)
		return
	}
	o.Meta[key] = value
}

// RemoveItems drops every item of the given type. An empty type drops everything.
func (o *Order) RemoveItems(t ItemType) {
	kept := o.Items[:0]
	for _, it := range o.Items {
		if t != "" && it.Type != t {
			kept = append(kept, it)
		}
	}
	o.Items = kept
}

// AddItem appends an item.
func (o *Order) AddItem(it Item) {
	o.Items = append(o.Items, it)
}

// ItemsOf returns the items of one type.
func (o *Order) ItemsOf(t ItemType) []Item {
	var out []Item
	for _, it := range o.Items {
		if it.Type == t {
			out = append(out, it)
		}
	}
	return out
}

// CalculateTotals recomputes tax and totals from the items.
func (o *Order) CalculateTotals() {
	o.CartTax, o.ShippingTotal, o.ShippingTax = decimal.Zero, decimal.Zero, decimal.Zero
	total := decimal.Zero
	for _, it := range o.Items {
		switch it.Type {
		case ItemShipping:
			o.ShippingTotal = o.ShippingTotal.Add(it.Total)
			o.ShippingTax = o.ShippingTax.Add(it.Tax)
		default:
			o.CartTax = o.CartTax.Add(it.Tax)
		}
		total = total.Add(it.Total).Add(it.Tax)
	}
	o.Total = total
}

// AddNote records a staff-visible note.
func (o *Order) AddNote(content string, at time.Time) {
	o.Notes = append(o.Notes, Note{Content: content, CreatedAt: at})
}

// ReceivedURL is the thank-you page of the order.
func (o *Order) ReceivedURL(baseURL string) string {
	q := url.Values{}
	q.Set("key", o.Key)
	return fmt.Sprintf("%s/checkout/order-received/%s/?%s", strings.TrimRight(baseURL, "/"), strconv.FormatInt(o.ID, 10), q.Encode())
}
