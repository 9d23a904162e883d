package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kec-gateway/internal/obs"
)

// ErrNoSession is returned when a request carries no session id.
var ErrNoSession = errors.New("no session")

const cookieValueKey = "sid"

type idKey struct{}

// WithID stores a session id on the context.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// IDFromContext returns the session id placed by the middleware.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(idKey{}).(string)
	return id, ok && id != ""
}

// CookieOptions controls the session cookie.
type CookieOptions struct {
	Name     string
	Secret   string
	Domain   string
	MaxAge   int
	Secure   bool
	SameSite http.SameSite
}

// Manager issues signed session cookies and loads state from the backing store.
type Manager struct {
	cookies sessions.Store
	name    string
	store   Store
}

// NewManager constructs a session manager using a gorilla cookie store for the id cookie.
func NewManager(store Store, opts CookieOptions) *Manager {
	cookieStore := sessions.NewCookieStore([]byte(opts.Secret))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		Domain:   opts.Domain,
		MaxAge:   opts.MaxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	}
	name := opts.Name
	if name == "" {
		name = "kec_session"
	}
	return &Manager{cookies: cookieStore, name: name, store: store}
}

// Middleware guarantees every request carries a session id, issuing a cookie when needed.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.cookies.Get(r, m.name)
		if err != nil {
			zerolog.Ctx(r.Context()).Debug().Err(err).Msg("session cookie rejected, issuing a new one")
		}
		id, _ := sess.Values[cookieValueKey].(string)
		if id == "" {
			id = uuid.NewString()
			sess.Values[cookieValueKey] = id
			if err := sess.Save(r, w); err != nil {
				zerolog.Ctx(r.Context()).Error().Err(err).Msg("session cookie save failed")
			}
		}
		ctx := obs.WithSessionID(WithID(r.Context(), id), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Load returns the state of the session attached to ctx.
func (m *Manager) Load(ctx context.Context) (string, *State, error) {
	id, ok := IDFromContext(ctx)
	if !ok {
		return "", nil, ErrNoSession
	}
	st, err := m.store.Load(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return id, st, nil
}

// Save persists state for id.
func (m *Manager) Save(ctx context.Context, id string, st *State) error {
	return m.store.Save(ctx, id, st)
}

// Update loads the session attached to ctx, applies fn and saves the result when fn succeeds.
func (m *Manager) Update(ctx context.Context, fn func(*State) error) error {
	id, st, err := m.Load(ctx)
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	return m.store.Save(ctx, id, st)
}
