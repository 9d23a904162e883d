// Package assets decides which client scripts a storefront page loads and computes the
// parameters handed to them.
package assets

import "strings"

// KlarnaLibraryURL is the Klarna Payments client library.
const KlarnaLibraryURL = "https://x.klarnacdn.net/kp/lib/v1/api.js"

// Script and style handles.
const (
	HandleKlarnaPayments = "klarnapayments"
	HandleCart           = "kec-cart"
	HandleOneStep        = "kec-one-step"
	HandleTwoStep        = "kec-two-step"
	HandleTwoStepBlock   = "kec-two-step-block"
)

// Script describes a registered script or stylesheet.
type Script struct {
	Handle   string   `json:"handle"`
	Src      string   `json:"src"`
	Deps     []string `json:"deps"`
	Version  string   `json:"version,omitempty"`
	InFooter bool     `json:"in_footer"`
	Module   bool     `json:"module"`
}

// Registry holds the registered scripts and styles.
type Registry struct {
	scripts map[string]Script
	styles  map[string]Script
}

// NewRegistry registers the express checkout assets served from baseURL.
func NewRegistry(baseURL, version string) *Registry {
	base := strings.TrimRight(baseURL, "/")
	r := &Registry{scripts: map[string]Script{}, styles: map[string]Script{}}

	r.styles[HandleCart] = Script{Handle: HandleCart, Src: base + "/css/kec-cart.css", Deps: []string{}, Version: version}

	r.scripts[HandleKlarnaPayments] = Script{Handle: HandleKlarnaPayments, Src: KlarnaLibraryURL, Deps: []string{}, InFooter: true}
	r.scripts[HandleCart] = Script{Handle: HandleCart, Src: base + "/js/kec-cart.js", Deps: []string{HandleKlarnaPayments}, Version: version, InFooter: true}
	r.scripts[HandleOneStep] = Script{Handle: HandleOneStep, Src: base + "/js/kec-one-step.js", Deps: []string{"jquery"}, Version: version, InFooter: true, Module: true}
	r.scripts[HandleTwoStep] = Script{Handle: HandleTwoStep, Src: base + "/js/kec-two-step.js", Deps: []string{"jquery"}, Version: version, InFooter: true, Module: true}
	r.scripts[HandleTwoStepBlock] = Script{
		Handle:   HandleTwoStepBlock,
		Src:      base + "/js/kec-two-step-block.js",
		Deps:     []string{"wp-element", "wp-i18n", "wp-blocks", "wc-blocks-registry", "jquery"},
		Version:  version,
		InFooter: true,
	}
	return r
}

// Script returns a registered script.
func (r *Registry) Script(handle string) (Script, bool) {
	s, ok := r.scripts[handle]
	return s, ok
}

// Style returns a registered stylesheet.
func (r *Registry) Style(handle string) (Script, bool) {
	s, ok := r.styles[handle]
	return s, ok
}

// resolve returns handles with their registered dependencies first, each once.
func (r *Registry) resolve(handles ...string) []Script {
	var out []Script
	seen := map[string]bool{}
	var visit func(h string)
	visit = func(h string) {
		if seen[h] {
			return
		}
		seen[h] = true
		s, ok := r.scripts[h]
		if !ok {
			return
		}
		for _, d := range s.Deps {
			visit(d)
		}
		out = append(out, s)
	}
	for _, h := range handles {
		visit(h)
	}
	return out
}
