package checkout

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/kec-gateway/internal/obs"
	"github.com/noah-isme/kec-gateway/internal/order"
	"github.com/noah-isme/kec-gateway/internal/resilience"
	"github.com/noah-isme/kec-gateway/internal/session"
)

// NoticeOrderFailed is shown when the returning shopper's order cannot be matched.
const NoticeOrderFailed = "Your order could not be processed"

// SessionUpdater applies a mutation to the request's session state.
type SessionUpdater interface {
	Update(ctx context.Context, fn func(*session.State) error) error
}

// ReturnHandler redirects a shopper returning from the two-step widget to the page the completion
// notification chose for their order.
type ReturnHandler struct {
	Sessions      SessionUpdater
	Orders        order.Repository
	Window        time.Duration
	Wait          resilience.PollConfig
	PublicBaseURL string
	CartURL       string
	// AllowedHosts lists external hosts a stored redirect may point to, besides the shop itself.
	AllowedHosts []string
	Now          func() time.Time
}

// safeDestination returns dest when it stays on the shop or an allowed host,
// and fallback otherwise.
func (h *ReturnHandler) safeDestination(dest, fallback string) string {
	u, err := url.Parse(dest)
	if err != nil || (u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https") {
		return fallback
	}
	if u.Host == "" {
		if u.Scheme == "" && strings.HasPrefix(u.Path, "/") && !strings.HasPrefix(dest, "//") {
			return dest
		}
		return fallback
	}
	host := strings.ToLower(u.Hostname())
	if base, err := url.Parse(h.PublicBaseURL); err == nil && strings.EqualFold(base.Hostname(), host) {
		return dest
	}
	for _, allowed := range h.AllowedHosts {
		if strings.EqualFold(strings.TrimSpace(allowed), host) {
			return dest
		}
	}
	return fallback
}

func (h *ReturnHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// ServeHTTP handles GET /kec/two-step/return?kec-two-step=<id>.
func (h *ReturnHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	id := strings.TrimSpace(r.URL.Query().Get(ReturnQueryParam))

	o, err := order.FindByCorrelation(ctx, h.Orders, order.MetaUniqueID, id, h.now().Add(-h.Window))
	if err != nil {
		logger.Warn().Err(err).Str("unique_id", id).Msg("two-step return without a matching order")
		obs.IncRedirect("not_found")
		h.finish(w, r, NoticeOrderFailed, h.CartURL)
		return
	}

	dest, source := h.waitForRedirect(ctx, o)
	obs.IncRedirect(source)
	logger.Info().Int64("order_id", o.ID).Str("source", source).Msg("two-step return redirect")
	h.finish(w, r, "", dest)
}

// waitForRedirect polls the order for the URL stored by the completion notification.
func (h *ReturnHandler) waitForRedirect(ctx context.Context, o *order.Order) (string, string) {
	if u := o.GetMeta(order.MetaRedirectURL); u != "" {
		return h.checked(ctx, o, u)
	}
	var dest string
	err := resilience.Poll(ctx, h.Wait, func(ctx context.Context) (bool, error) {
		fresh, err := h.Orders.Get(ctx, o.ID)
		if err != nil {
			return false, err
		}
		dest = fresh.GetMeta(order.MetaRedirectURL)
		return dest != "", nil
	})
	if err == nil && dest != "" {
		return h.checked(ctx, o, dest)
	}
	if err != nil && !errors.Is(err, resilience.ErrBudgetExhausted) {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("order_id", o.ID).Msg("wait for redirect url")
	}
	return o.ReceivedURL(h.PublicBaseURL), "fallback"
}

func (h *ReturnHandler) checked(ctx context.Context, o *order.Order, dest string) (string, string) {
	fallback := o.ReceivedURL(h.PublicBaseURL)
	if safe := h.safeDestination(dest, fallback); safe != dest {
		zerolog.Ctx(ctx).Warn().Int64("order_id", o.ID).Str("redirect_url", dest).Msg("stored redirect url points off-site")
		return safe, "rejected"
	}
	return dest, "notification"
}

func (h *ReturnHandler) finish(w http.ResponseWriter, r *http.Request, notice, dest string) {
	err := h.Sessions.Update(r.Context(), func(st *session.State) error {
		st.ClearTwoStep()
		if notice != "" {
			st.AddNotice("error", notice)
		}
		return nil
	})
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("clear two-step session")
	}
	http.Redirect(w, r, dest, http.StatusFound)
}
