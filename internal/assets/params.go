package assets

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/noah-isme/kec-gateway/internal/cart"
	"github.com/noah-isme/kec-gateway/internal/catalog"
	"github.com/noah-isme/kec-gateway/internal/checkout"
	"github.com/noah-isme/kec-gateway/internal/pricing"
	"github.com/noah-isme/kec-gateway/internal/session"
	"github.com/noah-isme/kec-gateway/internal/settings"
)

// Pages the button can be placed on.
const (
	PageCart    = "cart"
	PageProduct = "product"
)

// ButtonID is the element the client scripts mount the button into.
const ButtonID = "kec-pay-button"

// ErrUnknownPage is returned for pages other than cart and product.
var ErrUnknownPage = errors.New("assets: unknown page")

// SettingsSource loads the express checkout settings.
type SettingsSource interface {
	Load(ctx context.Context) (settings.Settings, error)
}

// CartTotals prices the session cart.
type CartTotals interface {
	Calculate(ctx context.Context, st *session.State) (cart.Totals, error)
}

// ProductSource looks up a catalog product.
type ProductSource interface {
	Product(ctx context.Context, id int64) (catalog.Product, error)
}

// NonceIssuer issues per-action anti-forgery tokens.
type NonceIssuer interface {
	Issue(action, subject string) (string, error)
}

// Endpoint is one AJAX action as seen by the client.
type Endpoint struct {
	URL    string `json:"url"`
	Nonce  string `json:"nonce"`
	Method string `json:"method"`
}

// Params is the object the client scripts read their configuration from.
type Params struct {
	Ajax        map[string]Endpoint `json:"ajax"`
	ClientKey   string              `json:"client_key"`
	ClientID    string              `json:"client_id"`
	Theme       string              `json:"theme"`
	Shape       string              `json:"shape"`
	Locale      string              `json:"locale,omitempty"`
	Testmode    bool                `json:"testmode"`
	Currency    string              `json:"currency"`
	Amount      pricing.Money       `json:"amount"`
	Source      string              `json:"source"`
	IsVariation bool                `json:"is_variation"`
	ButtonID    string              `json:"button_id"`
}

// Request identifies the page being rendered.
type Request struct {
	Page      string
	ProductID int64
	Blocks    bool
	SessionID string
	State     *session.State
}

// Service computes the assets and parameters for a page.
type Service struct {
	Registry *Registry
	Settings SettingsSource
	Cart     CartTotals
	Products ProductSource
	Nonces   NonceIssuer
	// AjaxURL is the prefix the action name is appended to.
	AjaxURL       string
	Currency      string
	DefaultLocale string
}

// flowActions maps the client's endpoint names to the actions of each flow.
var flowActions = map[string]map[string]string{
	settings.FlowOneStep: {
		"get_initiate_body":      checkout.ActionOneStepInitiate,
		"shipping_change":        checkout.ActionOneStepAddressChange,
		"shipping_option_change": checkout.ActionOneStepOptionChange,
	},
	settings.FlowTwoStep: {
		"get_initiate_body":      checkout.ActionTwoStepInitiate,
		"shipping_change":        checkout.ActionTwoStepAddressChange,
		"shipping_option_change": checkout.ActionTwoStepOptionChange,
	},
}

var sharedActions = map[string]string{
	"get_payload":       checkout.ActionGetPayload,
	"set_cart":          checkout.ActionSetCart,
	"auth_callback":     checkout.ActionAuthCallback,
	"finalize_callback": checkout.ActionFinalizeCallback,
}

// Params computes the client parameters for req under the given settings.
func (s *Service) Params(ctx context.Context, st settings.Settings, req Request) (Params, error) {
	p := Params{
		Ajax:      map[string]Endpoint{},
		ClientKey: st.CredentialsSecret,
		ClientID:  st.CredentialsSecret,
		Theme:     st.Theme,
		Shape:     st.Shape,
		Locale:    st.Locale,
		Testmode:  st.IsTestmode(),
		Currency:  s.Currency,
		ButtonID:  ButtonID,
	}
	if p.Locale == "" {
		p.Locale = s.DefaultLocale
	}

	actions := flowActions[st.Flow]
	if actions == nil {
		actions = flowActions[settings.FlowOneStep]
	}
	for name, action := range sharedActions {
		if err := s.addEndpoint(p.Ajax, name, action, req.SessionID); err != nil {
			return Params{}, err
		}
	}
	for name, action := range actions {
		if err := s.addEndpoint(p.Ajax, name, action, req.SessionID); err != nil {
			return Params{}, err
		}
	}

	switch req.Page {
	case PageCart:
		p.Source = "cart"
		state := req.State
		if state == nil {
			state = &session.State{}
		}
		totals, err := s.Cart.Calculate(ctx, state)
		if err != nil {
			return Params{}, fmt.Errorf("price cart: %w", err)
		}
		p.Amount = pricing.ToMinor(totals.Total())
		if totals.Currency != "" {
			p.Currency = totals.Currency
		}
	case PageProduct:
		product, err := s.Products.Product(ctx, req.ProductID)
		if err != nil {
			return Params{}, err
		}
		p.Source = strconv.FormatInt(product.ID, 10)
		p.IsVariation = product.HasVariations()
		p.Amount = pricing.ToMinor(product.Price)
	default:
		return Params{}, fmt.Errorf("%w: %q", ErrUnknownPage, req.Page)
	}
	return p, nil
}

func (s *Service) addEndpoint(dst map[string]Endpoint, name, action, subject string) error {
	nonce, err := s.Nonces.Issue(action, subject)
	if err != nil {
		return fmt.Errorf("issue nonce %s: %w", action, err)
	}
	dst[name] = Endpoint{URL: s.AjaxURL + action, Nonce: nonce, Method: "POST"}
	return nil
}

// Bundle is everything a page needs to render the button.
type Bundle struct {
	Scripts    []Script `json:"scripts"`
	Styles     []Script `json:"styles"`
	ParamsName string   `json:"params_name,omitempty"`
	Params     *Params  `json:"params,omitempty"`
}

// Enqueue returns the scripts, styles and parameters for req. A disabled button or a page
// outside the configured placement yields an empty bundle.
func (s *Service) Enqueue(ctx context.Context, req Request) (Bundle, error) {
	out := Bundle{Scripts: []Script{}, Styles: []Script{}}
	if req.Page != PageCart && req.Page != PageProduct {
		return out, fmt.Errorf("%w: %q", ErrUnknownPage, req.Page)
	}
	st, err := s.Settings.Load(ctx)
	if err != nil {
		return out, fmt.Errorf("load settings: %w", err)
	}
	if !st.IsEnabled() || !st.ShowOn(req.Page) {
		return out, nil
	}

	params, err := s.Params(ctx, st, req)
	if err != nil {
		return out, err
	}

	handle := HandleOneStep
	if st.Flow == settings.FlowTwoStep {
		handle = HandleTwoStep
		if req.Blocks {
			handle = HandleTwoStepBlock
		}
	}
	if req.Page == PageCart {
		if style, ok := s.Registry.Style(HandleCart); ok {
			out.Styles = append(out.Styles, style)
		}
	}
	out.Scripts = s.Registry.resolve(handle)
	out.ParamsName = paramsName(handle)
	out.Params = &params
	return out, nil
}

func paramsName(handle string) string {
	switch handle {
	case HandleOneStep:
		return "kec_one_step_params"
	case HandleCart:
		return "kec_cart_params"
	default:
		return "@klarna/" + handle
	}
}
