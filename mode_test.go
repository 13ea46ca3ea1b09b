package armlink

import (
	"testing"

	"github.com/pkg/errors"
)

func TestModeTracker(t *testing.T) {
	names := []string{"base", "shoulder", "elbow"}

	t.Run("joints start in position mode", func(t *testing.T) {
		tracker := newModeTracker(names)
		for i := range names {
			if m := tracker.mode(i); m != ModePosition {
				t.Errorf("joint %d starts in %s mode, want position", i, m)
			}
		}
		if tracker.inTorqueMode() {
			t.Error("fresh tracker must not report torque mode")
		}
	})

	t.Run("set all and set subset", func(t *testing.T) {
		tracker := newModeTracker(names)
		tracker.set(ModeTorque)
		if !tracker.inTorqueMode() {
			t.Error("expected all joints in torque mode")
		}

		tracker.set(ModeVelocity, 1)
		if tracker.inTorqueMode() {
			t.Error("mixed modes must not report all-torque")
		}
		if !tracker.inTorqueMode(0, 2) {
			t.Error("untouched joints should remain in torque mode")
		}
		if tracker.mode(1) != ModeVelocity {
			t.Errorf("joint 1 in %s mode, want velocity", tracker.mode(1))
		}
	})

	t.Run("assertTorque names the offending joint", func(t *testing.T) {
		tracker := newModeTracker(names)
		tracker.set(ModeTorque, 0, 2)

		if err := tracker.assertTorque(0, 2); err != nil {
			t.Errorf("expected assert to pass, got %v", err)
		}
		err := tracker.assertTorque()
		if !errors.Is(err, ErrModeViolation) {
			t.Fatalf("expected ErrModeViolation, got %v", err)
		}
	})

	t.Run("unknown joint name", func(t *testing.T) {
		tracker := newModeTracker(names)
		if _, err := tracker.indexOf("wrist"); !errors.Is(err, ErrUnknownJoint) {
			t.Errorf("expected ErrUnknownJoint, got %v", err)
		}
		idx, err := tracker.indexOf("elbow")
		if err != nil || idx != 2 {
			t.Errorf("indexOf(elbow) = %d, %v", idx, err)
		}
	})
}

func TestControlModeString(t *testing.T) {
	cases := map[ControlMode]string{
		ModePosition:    "position",
		ModeVelocity:    "velocity",
		ModeTorque:      "torque",
		ControlMode(99): "unknown",
	}
	for mode, want := range cases {
		if got := mode.String(); got != want {
			t.Errorf("ControlMode(%d).String() = %q, want %q", mode, got, want)
		}
	}
}
