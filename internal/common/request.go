package common

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// ClientIP returns the caller address. The first valid X-Forwarded-For hop wins, then
// X-Real-IP, then RemoteAddr without its port.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := net.ParseIP(strings.TrimSpace(hop)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// Digest hashes parts with SHA-256 and returns lowercase hex. Parts are NUL separated so
// ("a", "bc") and ("ab", "c") differ.
func Digest(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Page is a parsed page/limit query.
type Page struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Count   int `json:"count"`
}

// Offset is the number of rows to skip.
func (p Page) Offset() int { return (p.Page - 1) * p.PerPage }

// ParsePage reads ?page and ?limit. A limit above max falls back to def.
func ParsePage(r *http.Request, def, max int) Page {
	p := Page{Page: 1, PerPage: def}
	q := r.URL.Query()
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 && (max <= 0 || n <= max) {
		p.PerPage = n
	}
	return p
}
