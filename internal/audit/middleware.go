package audit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HTTPRecorder turns handled admin requests into audit entries.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
}

// Route describes the entry produced for one admin route.
type Route struct {
	Action       string
	ResourceType string
	// IDParam names the chi URL parameter holding the resource id.
	IDParam string
	// Metadata is called after the handler with the response status.
	Metadata func(r *http.Request, status int) map[string]any
}

// Middleware records one entry per request once the wrapped handler returns.
func (rec HTTPRecorder) Middleware(route Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rec.Service == nil || !rec.Service.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			var resourceID string
			if route.IDParam != "" {
				resourceID = chi.URLParam(r, route.IDParam)
			}
			var metadata []byte
			if route.Metadata != nil {
				if m := route.Metadata(r, status); len(m) > 0 {
					metadata, _ = json.Marshal(m)
				}
			}
			err := rec.Service.Record(r.Context(), AdminActor(r), route.Action, route.ResourceType, resourceID, r, status, metadata)
			if err != nil && rec.OnError != nil {
				rec.OnError(err)
			}
		})
	}
}

// AdminActor identifies the operator from the basic-auth credentials the admin API requires.
func AdminActor(r *http.Request) Actor {
	if user, _, ok := r.BasicAuth(); ok && user != "" {
		return Actor{Kind: ActorKindAdmin, Name: user}
	}
	return Actor{Kind: ActorKindAnonymous}
}
