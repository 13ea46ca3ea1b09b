package armlink

import (
	"sync"

	"github.com/pkg/errors"
)

// ControlMode is the actuation regime a joint is currently in. Joints start
// in ModePosition; ModeTorque is only entered through an explicit transition.
type ControlMode int

const (
	ModePosition ControlMode = iota
	ModeVelocity
	ModeTorque
)

func (m ControlMode) String() string {
	switch m {
	case ModePosition:
		return "position"
	case ModeVelocity:
		return "velocity"
	case ModeTorque:
		return "torque"
	default:
		return "unknown"
	}
}

// modeTracker keeps the per-joint control mode. Only the Arm's explicit
// transition operations mutate it.
type modeTracker struct {
	mu    sync.RWMutex
	names []string
	index map[string]int
	modes []ControlMode
}

func newModeTracker(names []string) *modeTracker {
	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}
	return &modeTracker{
		names: names,
		index: index,
		modes: make([]ControlMode, len(names)),
	}
}

// indexOf resolves a joint name to its canonical index.
func (t *modeTracker) indexOf(name string) (int, error) {
	idx, ok := t.index[name]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownJoint, "%q", name)
	}
	return idx, nil
}

// set flips the mode for the given joint indices, or all joints when none
// are given.
func (t *modeTracker) set(mode ControlMode, joints ...int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(joints) == 0 {
		for i := range t.modes {
			t.modes[i] = mode
		}
		return
	}
	for _, idx := range joints {
		t.modes[idx] = mode
	}
}

func (t *modeTracker) mode(joint int) ControlMode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.modes[joint]
}

// inTorqueMode reports whether every addressed joint (all joints when none
// are given) is in torque mode.
func (t *modeTracker) inTorqueMode(joints ...int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(joints) == 0 {
		for _, m := range t.modes {
			if m != ModeTorque {
				return false
			}
		}
		return true
	}
	for _, idx := range joints {
		if t.modes[idx] != ModeTorque {
			return false
		}
	}
	return true
}

// assertTorque fails with ErrModeViolation unless every addressed joint is
// in torque mode. Called before every torque actuation request.
func (t *modeTracker) assertTorque(joints ...int) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	check := func(idx int) error {
		if t.modes[idx] != ModeTorque {
			return errors.Wrapf(ErrModeViolation, "joint %q is in %s mode; call EnableTorqueControl first",
				t.names[idx], t.modes[idx])
		}
		return nil
	}
	if len(joints) == 0 {
		for idx := range t.modes {
			if err := check(idx); err != nil {
				return err
			}
		}
		return nil
	}
	for _, idx := range joints {
		if err := check(idx); err != nil {
			return err
		}
	}
	return nil
}
