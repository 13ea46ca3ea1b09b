package armlink

import (
	"context"
	"sync"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
)

// defaultStepInterval is the cadence of the background stepping loop. Blocking
// waits depend on it staying small.
const defaultStepInterval = 2 * time.Millisecond

// Session owns a backend for the lifetime of an arm connection. When the
// backend is steppable, the session also owns the background stepping loop
// and the manual-step/continuous mode flag; backends that advance on their
// own (real hardware) are always continuous.
type Session struct {
	backend      Backend
	stepper      Stepper // nil when the backend advances on its own
	logger       logging.Logger
	stepInterval time.Duration

	mu         sync.Mutex
	manualStep bool
	workers    *utils.StoppableWorkers
}

// NewSession wraps the backend. A stepInterval of 0 uses the default. The
// session starts in continuous mode: if the backend is steppable, the
// background loop is running on return.
func NewSession(backend Backend, stepInterval time.Duration, logger logging.Logger) *Session {
	if stepInterval <= 0 {
		stepInterval = defaultStepInterval
	}
	s := &Session{
		backend:      backend,
		logger:       logger,
		stepInterval: stepInterval,
	}
	if stepper, ok := backend.(Stepper); ok {
		s.stepper = stepper
		s.startLocked()
	}
	return s
}

// Backend returns the owned backend.
func (s *Session) Backend() Backend {
	return s.backend
}

// ManualStepMode reports whether background stepping is disabled, so state
// only advances on explicit Step calls.
func (s *Session) ManualStepMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manualStep
}

// SetRealtime turns the background stepping loop on or off. Turning it off
// puts the session in manual-step mode. Backends that are not steppable run
// continuously and cannot be switched.
func (s *Session) SetRealtime(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stepper == nil {
		if !on {
			return ErrUnsupported
		}
		return nil
	}
	if on {
		s.manualStep = false
		s.startLocked()
	} else {
		s.manualStep = true
		s.stopLocked()
	}
	return nil
}

// Step advances a steppable backend by dt. Only valid in manual-step mode;
// in continuous mode the background loop owns stepping.
func (s *Session) Step(dt time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stepper == nil || !s.manualStep {
		return ErrManualStepMode
	}
	s.stepper.Step(dt)
	return nil
}

func (s *Session) startLocked() {
	if s.workers != nil {
		return
	}
	interval := s.stepInterval
	s.workers = utils.NewStoppableWorkerWithTicker(interval, func(ctx context.Context) {
		s.stepper.Step(interval)
	})
}

func (s *Session) stopLocked() {
	if s.workers == nil {
		return
	}
	s.workers.Stop()
	s.workers = nil
}

// Close stops the stepping loop and closes the backend.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	return s.backend.Close(ctx)
}
