package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the breaker refuses a call.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	}
	return "unknown"
}

// BreakerConfig tunes a Breaker.
type BreakerConfig struct {
	// Target labels metrics and logs, e.g. "klarna".
	Target string
	// Window is the number of most recent outcomes considered.
	Window int
	// MinRequests must be observed in the window before the breaker may open.
	MinRequests int
	// FailureRatio opens the breaker when reached.
	FailureRatio float64
	// OpenFor is the cool-off before a single probe is let through.
	OpenFor time.Duration
	Logger  *zerolog.Logger
	Now     func() time.Time
}

// Breaker guards one remote dependency. It opens on the failure ratio of a sliding
// window of outcomes and, after the cool-off, lets exactly one probe through.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	outcomes []bool
	next     int
	filled   int
	openedAt time.Time
	probing  bool
}

// NewBreaker builds a breaker, filling unset config with defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MinRequests <= 0 {
		cfg.MinRequests = 5
	}
	if cfg.Window < cfg.MinRequests {
		cfg.Window = cfg.MinRequests * 2
	}
	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		cfg.FailureRatio = 0.5
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Target = strings.TrimSpace(cfg.Target)
	if cfg.Target == "" {
		cfg.Target = "default"
	}
	b := &Breaker{cfg: cfg, outcomes: make([]bool, cfg.Window)}
	setStateGauge(cfg.Target, Closed)
	return b
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.OpenFor {
			return false
		}
		b.transition(ctx, HalfOpen)
		b.probing = true
		return true
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return true
}

// Report records the outcome of an allowed call.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.probing = false
		if success {
			b.transition(ctx, Closed)
		} else {
			b.transition(ctx, Open)
		}
		return
	}

	b.outcomes[b.next] = success
	b.next = (b.next + 1) % len(b.outcomes)
	if b.filled < len(b.outcomes) {
		b.filled++
	}
	if b.filled < b.cfg.MinRequests {
		return
	}
	failures := 0
	for i := 0; i < b.filled; i++ {
		if !b.outcomes[i] {
			failures++
		}
	}
	if float64(failures)/float64(b.filled) >= b.cfg.FailureRatio {
		b.transition(ctx, Open)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(ctx context.Context, to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	switch to {
	case Open:
		b.openedAt = b.cfg.Now()
	case Closed:
		b.filled, b.next = 0, 0
	}
	setStateGauge(b.cfg.Target, to)
	countTransition(b.cfg.Target, from, to)

	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled && b.cfg.Logger != nil {
		logger = b.cfg.Logger
	}
	evt := logger.Warn()
	if to == Closed {
		evt = logger.Info()
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Str("target", b.cfg.Target).Str("from_state", from.String()).Str("to_state", to.String()).Msg("breaker transition")
}
