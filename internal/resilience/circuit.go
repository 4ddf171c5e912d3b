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

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker position.
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
	default:
		return "unknown"
	}
}

// Settings tunes a Breaker. Zero values fall back to the defaults noted per field.
type Settings struct {
	Target       string        // metric and log label, "default" when empty
	MinRequests  int           // outcomes needed before the ratio is judged, default 1
	FailureRatio float64       // failures/total that trips the breaker, default 0.5
	OpenFor      time.Duration // cool-off before a probe is let through, default 30s
	Window       time.Duration // counts are dropped when a window elapses, default 60s
	Logger       zerolog.Logger
	Now          func() time.Time
}

// Breaker trips when the failure ratio inside the current counting window
// reaches the threshold. While half-open exactly one probe is in flight; its
// outcome closes or reopens the breaker.
type Breaker struct {
	cfg Settings

	mu          sync.Mutex
	state       State
	failures    int
	total       int
	windowStart time.Time
	openedAt    time.Time
	probing     bool
}

// NewBreaker constructs a closed breaker.
func NewBreaker(s Settings) *Breaker {
	if s.MinRequests <= 0 {
		s.MinRequests = 1
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.5
	}
	if s.FailureRatio > 1 {
		s.FailureRatio = 1
	}
	if s.OpenFor <= 0 {
		s.OpenFor = 30 * time.Second
	}
	if s.Window <= 0 {
		s.Window = time.Minute
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	s.Target = strings.TrimSpace(s.Target)
	if s.Target == "" {
		s.Target = "default"
	}
	b := &Breaker{cfg: s, windowStart: s.Now()}
	setStateGauge(s.Target, Closed)
	return b
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a request may go out. After the cool-off an open
// breaker turns half-open and admits a single probe. A nil breaker allows everything.
func (b *Breaker) Allow(ctx context.Context) bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.OpenFor {
			return false
		}
		b.moveLocked(ctx, HalfOpen)
		b.probing = true
		return true
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// Report records the outcome of a request admitted by Allow.
func (b *Breaker) Report(ctx context.Context, success bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.probing = false
		if success {
			b.moveLocked(ctx, Closed)
		} else {
			b.moveLocked(ctx, Open)
		}
		return
	}

	now := b.cfg.Now()
	if now.Sub(b.windowStart) >= b.cfg.Window {
		b.failures, b.total, b.windowStart = 0, 0, now
	}
	b.total++
	if !success {
		b.failures++
	}
	if b.total >= b.cfg.MinRequests && float64(b.failures)/float64(b.total) >= b.cfg.FailureRatio {
		b.moveLocked(ctx, Open)
	}
}

func (b *Breaker) moveLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	now := b.cfg.Now()
	if next == Open {
		b.openedAt = now
	}
	b.failures, b.total, b.windowStart = 0, 0, now

	setStateGauge(b.cfg.Target, next)
	BreakerTransitions.WithLabelValues(b.cfg.Target, prev.String(), next.String()).Inc()
	if next == Open {
		BreakerOpenedTotal.WithLabelValues(b.cfg.Target).Inc()
	}

	logger := b.cfg.Logger
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		logger = *l
	}
	evt := logger.Info()
	if next == Open {
		evt = logger.Warn()
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Str("collaborator", b.cfg.Target).
		Str("from_state", prev.String()).
		Str("to_state", next.String()).
		Msg("collaborator_breaker_transition")
}

// Target returns the collaborator label.
func (b *Breaker) Target() string {
	if b == nil {
		return "default"
	}
	return b.cfg.Target
}
