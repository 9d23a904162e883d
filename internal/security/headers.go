package security

import (
	"net/http"
	"strconv"
	"strings"
)

// KlarnaScriptOrigins are the hosts the express checkout button loads code and frames from.
var KlarnaScriptOrigins = []string{"https://x.klarnacdn.net", "https://js.klarna.com", "https://*.klarna.com"}

// Headers configures common security headers for HTTP responses.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	// ScriptOrigins are appended to script-src, connect-src and frame-src.
	ScriptOrigins []string
}

// Middleware attaches standard security headers to each response.
func (h Headers) Middleware(next http.Handler) http.Handler {
	csp := h.contentSecurityPolicy()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Enable {
			next.ServeHTTP(w, r)
			return
		}
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "SAMEORIGIN")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		headers.Set("Permissions-Policy", "geolocation=(), microphone=()")
		headers.Set("Content-Security-Policy", csp)
		if h.EnableHSTS && r.TLS != nil {
			maxAge := h.HSTSMaxAge
			if maxAge <= 0 {
				maxAge = 31536000
			}
			value := "max-age=" + strconv.Itoa(maxAge)
			if h.HSTSIncludeSubdomains {
				value += "; includeSubDomains"
			}
			headers.Set("Strict-Transport-Security", value)
		}
		next.ServeHTTP(w, r)
	})
}

func (h Headers) contentSecurityPolicy() string {
	extra := strings.Join(h.ScriptOrigins, " ")
	with := func(base string) string {
		if extra == "" {
			return base
		}
		return base + " " + extra
	}
	return strings.Join([]string{
		"default-src 'self'",
		with("script-src 'self'"),
		with("connect-src 'self'"),
		with("frame-src 'self'"),
		"img-src 'self' data: https:",
		"frame-ancestors 'self'",
	}, "; ")
}
