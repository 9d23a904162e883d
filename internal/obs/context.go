package obs

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RequestInfo carries request attributes that are only known once inner
// handlers have run. Outer middleware reads it after next returns.
type RequestInfo struct {
	Route     string
	SessionID string
}

type requestInfoKey struct{}

// Annotate installs an empty RequestInfo on the request context.
func Annotate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if infoFrom(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), requestInfoKey{}, &RequestInfo{})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func infoFrom(ctx context.Context) *RequestInfo {
	if ctx == nil {
		return nil
	}
	info, _ := ctx.Value(requestInfoKey{}).(*RequestInfo)
	return info
}

// WithSessionID records the storefront session id. When Annotate already ran
// the id is written through so outer middleware can see it.
func WithSessionID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if info := infoFrom(ctx); info != nil {
		info.SessionID = id
		return ctx
	}
	return context.WithValue(ctx, requestInfoKey{}, &RequestInfo{SessionID: id})
}

// SessionIDFromContext returns the storefront session id, if any.
func SessionIDFromContext(ctx context.Context) string {
	if info := infoFrom(ctx); info != nil {
		return info.SessionID
	}
	return ""
}

// WithRoutePattern pins the route label, overriding chi's matched pattern.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if info := infoFrom(ctx); info != nil {
		info.Route = pattern
		return ctx
	}
	return context.WithValue(ctx, requestInfoKey{}, &RequestInfo{Route: pattern})
}

// RoutePatternFromContext returns the pinned route or chi's matched pattern.
func RoutePatternFromContext(ctx context.Context) string {
	if info := infoFrom(ctx); info != nil && info.Route != "" {
		return info.Route
	}
	if rc := chi.RouteContext(ctx); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

func routeLabel(r *http.Request, fallback string) string {
	if route := RoutePatternFromContext(r.Context()); route != "" {
		return route
	}
	return fallback
}
