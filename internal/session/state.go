package session

import (
	"github.com/noah-isme/kec-gateway/internal/customer"
)

// CartItem is one line of the session cart.
type CartItem struct {
	Key         string `json:"key"`
	ProductID   int64  `json:"product_id"`
	VariationID int64  `json:"variation_id,omitempty"`
	Quantity    int    `json:"quantity"`
}

// Notice is a message shown to the shopper on the next page view.
type Notice struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// State is everything the storefront remembers about one shopper between requests.
type State struct {
	Cart                  []CartItem                 `json:"cart"`
	Customer              customer.Customer          `json:"customer"`
	ChosenShippingMethods []string                   `json:"chosen_shipping_methods,omitempty"`
	TwoStepUniqueID       string                     `json:"kec_two_step_unique_id,omitempty"`
	TwoStepOrderID        int64                      `json:"kec_two_step_order_id,omitempty"`
	ClientToken           string                     `json:"kec_client_token,omitempty"`
	KlarnaAddress         *customer.CollectedAddress `json:"kec_klarna_address,omitempty"`
	Notices               []Notice                   `json:"notices,omitempty"`
}

// ChosenShippingMethod returns the first remembered shipping method, if any.
func (s *State) ChosenShippingMethod() string {
	if s == nil || len(s.ChosenShippingMethods) == 0 {
		return ""
	}
	return s.ChosenShippingMethods[0]
}

// ClearTwoStep forgets the two-step correlation id and draft order.
func (s *State) ClearTwoStep() {
	s.TwoStepUniqueID = ""
	s.TwoStepOrderID = 0
}

// AddNotice queues a notice for the shopper.
func (s *State) AddNotice(kind, message string) {
	s.Notices = append(s.Notices, Notice{Type: kind, Message: message})
}

// TakeNotices returns and clears the queued notices.
func (s *State) TakeNotices() []Notice {
	out := s.Notices
	s.Notices = nil
	return out
}
