package settings

// Field describes one admin form control.
type Field struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Type        string            `json:"type"`
	Label       string            `json:"label,omitempty"`
	Description string            `json:"description,omitempty"`
	Options     map[string]string `json:"options,omitempty"`
	Default     string            `json:"default,omitempty"`
}

// Fields lists the admin form for the express checkout section.
func Fields() []Field {
	return []Field{
		{ID: "kec_enabled", Title: "Enable/Disable", Type: "checkbox", Label: "Enable Klarna Express Checkout", Default: "no"},
		{ID: "kec_credentials_secret", Title: "Client identifier", Type: "text",
			Description: "The client identifier from the Klarna merchant portal."},
		{ID: "kec_theme", Title: "Theme", Type: "select", Description: "Select the theme for the Klarna Express Checkout.",
			Options: map[string]string{"default": "Default", "dark": "Dark", "light": "Light"}, Default: "default"},
		{ID: "kec_shape", Title: "Shape", Type: "select", Description: "Select the shape for the Klarna Express Checkout.",
			Options: map[string]string{"default": "Default", "rect": "Rectangular", "pill": "Pill"}, Default: "default"},
		{ID: "kec_placement", Title: "Placement", Type: "select",
			Options: map[string]string{PlacementCart: "Cart page", PlacementProduct: "Product pages", PlacementBoth: "Cart and product pages"}, Default: PlacementBoth},
		{ID: "kec_flow", Title: "Flow", Type: "select",
			Options: map[string]string{FlowOneStep: "One step", FlowTwoStep: "Two step"}, Default: FlowOneStep},
		{ID: "testmode", Title: "Test mode", Type: "checkbox", Label: "Use the Klarna playground", Default: "yes"},
		{ID: "kec_acquiring_partner", Title: "Acquiring partner", Type: "text",
			Description: "Key of the acquiring partner that completes express checkout orders."},
	}
}
