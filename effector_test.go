package armlink

import (
	"context"
	"testing"

	"go.viam.com/rdk/logging"
)

func TestGripper(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(4) // three arm joints plus the gripper
	logger := logging.NewTestLogger(t)
	session := NewSession(backend, 0, logger)
	t.Cleanup(func() { session.Close(ctx) })

	gripper := NewGripper("jaw", 3, 0.8, 0.0, 5, session, logger)
	if gripper.TorqueModeEnabled() {
		t.Error("position-servo gripper must not report torque mode")
	}

	t.Run("open and close command the gripper joint", func(t *testing.T) {
		if err := gripper.Open(ctx); err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		cmd := backend.callsOf("position")[0]
		if cmd.joints[0] != 3 || cmd.values[0] != 0.8 {
			t.Errorf("open commanded joint %d to %f", cmd.joints[0], cmd.values[0])
		}

		if err := gripper.Close(ctx); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		pos, err := gripper.Position(ctx)
		if err != nil || pos != 0 {
			t.Errorf("Position = %f, %v after close", pos, err)
		}
	})

	t.Run("fractional opening interpolates", func(t *testing.T) {
		if err := gripper.SetFraction(ctx, 0.5); err != nil {
			t.Fatalf("SetFraction failed: %v", err)
		}
		pos, err := gripper.Position(ctx)
		if err != nil || pos != 0.4 {
			t.Errorf("Position = %f, %v at half open", pos, err)
		}

		if err := gripper.SetFraction(ctx, 1.5); err == nil {
			t.Error("expected error for fraction above 1")
		}
	})
}
