package infra

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// CircuitBreaker guards the terminal's calls to the register backend. After
// FailureThreshold consecutive failures it opens and fails fast, so the
// operator gets an immediate "sin conexión" instead of a stack of timeouts.
// Once OpenTimeout elapses a single trial call is let through (half-open); the
// rest keep failing fast until the trial call settles.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu        sync.Mutex
	state     CBState
	fallos    int
	exitos    int
	abiertoEn time.Time
	sondeando bool
}

type CBState int

const (
	CBClosed CBState = iota
	CBOpen
	CBHalfOpen
)

func (s CBState) String() string {
	switch s {
	case CBClosed:
		return "closed"
	case CBOpen:
		return "open"
	case CBHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling fn while the breaker is open or
// a half-open trial call is already in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int           // consecutive failures to trip open
	SuccessThreshold int           // consecutive trial successes to close
	OpenTimeout      time.Duration // time open before probing
}

// DefaultCBConfig suits the backend gateway.
func DefaultCBConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{Name: name, FailureThreshold: 5, SuccessThreshold: 1, OpenTimeout: 10 * time.Second}
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCBConfig(cfg.Name)
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

func (cb *CircuitBreaker) State() CBState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.vencerApertura()
	return cb.state
}

// Execute runs fn unless the breaker rejects the call. Only errors returned by
// fn count as failures, and a cancelled context never does: the operator
// walking away says nothing about the backend.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	sonda, err := cb.permitir()
	if err != nil {
		return err
	}

	err = fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if sonda {
		cb.sondeando = false
	}
	switch {
	case err == nil:
		cb.registrarExito()
	case errors.Is(err, context.Canceled):
	default:
		cb.registrarFallo()
	}
	return err
}

func (cb *CircuitBreaker) permitir() (sonda bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.vencerApertura()
	switch cb.state {
	case CBOpen:
		return false, ErrCircuitOpen
	case CBHalfOpen:
		if cb.sondeando {
			return false, ErrCircuitOpen
		}
		cb.sondeando = true
		return true, nil
	}
	return false, nil
}

// vencerApertura moves open to half-open once the timeout elapsed. Caller holds mu.
func (cb *CircuitBreaker) vencerApertura() {
	if cb.state == CBOpen && cb.now().Sub(cb.abiertoEn) >= cb.cfg.OpenTimeout {
		cb.cambiar(CBHalfOpen)
	}
}

func (cb *CircuitBreaker) registrarFallo() {
	cb.fallos++
	if cb.state == CBHalfOpen || cb.fallos >= cb.cfg.FailureThreshold {
		cb.abiertoEn = cb.now()
		cb.cambiar(CBOpen)
	}
}

func (cb *CircuitBreaker) registrarExito() {
	cb.fallos = 0
	if cb.state != CBHalfOpen {
		return
	}
	cb.exitos++
	if cb.exitos >= cb.cfg.SuccessThreshold {
		cb.cambiar(CBClosed)
	}
}

func (cb *CircuitBreaker) cambiar(to CBState) {
	if cb.state == to {
		return
	}
	log.Warn().Str("breaker", cb.cfg.Name).Str("from", cb.state.String()).Str("to", to.String()).Msg("circuit breaker: cambio de estado")
	cb.state = to
	cb.fallos = 0
	cb.exitos = 0
}
