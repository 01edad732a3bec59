// Package resilience provides retry and circuit breaker primitives for the
// outbound HTTP transport.
package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed lets requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects requests until the cool-down elapses.
	CircuitOpen
	// CircuitHalfOpen lets one probe through to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a host's breaker rejects a request.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerConfig controls when a host breaker opens and how long it stays open.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int

	// ResetTimeout is how long the breaker stays open before allowing a probe.
	ResetTimeout time.Duration
}

// DefaultBreakerConfig returns the breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, ResetTimeout: time.Minute}
}

// NewBreakerConfig builds a BreakerConfig from configuration values.
func NewBreakerConfig(failures int, reset time.Duration) BreakerConfig {
	cfg := DefaultBreakerConfig()
	if failures > 0 {
		cfg.FailureThreshold = failures
	}
	if reset > 0 {
		cfg.ResetTimeout = reset
	}
	return cfg
}

// Breaker is a consecutive-failure circuit breaker for one remote host.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	probing  bool

	nowFunc func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	return &Breaker{name: name, cfg: cfg, nowFunc: time.Now}
}

// Allow reports whether a request may proceed. In half-open state only one
// probe is admitted at a time.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitOpen:
		if b.nowFunc().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		b.transition(CircuitHalfOpen)
		b.probing = true
		return nil
	case CircuitHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// Success records a healthy response.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	if b.state != CircuitClosed {
		b.transition(CircuitClosed)
	}
}

// Failure records a failed or throttled response.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.probing = false
	switch {
	case b.state == CircuitHalfOpen,
		b.state == CircuitClosed && b.failures >= b.cfg.FailureThreshold:
		b.openedAt = b.nowFunc()
		b.transition(CircuitOpen)
	}
}

// Release returns an admitted probe without recording an outcome, for
// requests abandoned by the caller.
func (b *Breaker) Release() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

// State returns the current state, reporting half-open once the cool-down
// has elapsed.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CircuitOpen && b.nowFunc().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) transition(to CircuitState) {
	from := b.state
	b.state = to
	zap.L().Debug("circuit breaker transition",
		zap.String("host", b.name),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
}

// HostBreakers hands out one Breaker per remote host.
type HostBreakers struct {
	cfg      BreakerConfig
	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewHostBreakers creates an empty registry.
func NewHostBreakers(cfg BreakerConfig) *HostBreakers {
	return &HostBreakers{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// For returns the breaker for host, creating it on first use.
func (h *HostBreakers) For(host string) *Breaker {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.breakers[host]
	if !ok {
		b = NewBreaker(host, h.cfg)
		h.breakers[host] = b
	}
	return b
}

// Open lists the hosts whose breaker currently rejects requests.
func (h *HostBreakers) Open() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for host, b := range h.breakers {
		if b.State() == CircuitOpen {
			out = append(out, host)
		}
	}
	return out
}
