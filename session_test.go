package armlink

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

func TestSession(t *testing.T) {
	ctx := context.Background()

	t.Run("continuous mode steps in the background", func(t *testing.T) {
		sim := newTestSim(t)
		session := NewSession(sim, time.Millisecond, logging.NewTestLogger(t))
		defer session.Close(ctx)

		if session.ManualStepMode() {
			t.Fatal("session must start in continuous mode")
		}
		if err := sim.CommandJointVelocities(ctx, []int{0}, []float64{1.0}, []float64{150}); err != nil {
			t.Fatalf("command failed: %v", err)
		}

		deadline := time.Now().Add(2 * time.Second)
		for {
			positions, err := sim.JointPositions(ctx)
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}
			if positions[0] > 0.01 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("background loop never advanced the simulation")
			}
			time.Sleep(5 * time.Millisecond)
		}
	})

	t.Run("manual mode steps only on request", func(t *testing.T) {
		sim := newTestSim(t)
		session := NewSession(sim, time.Millisecond, logging.NewTestLogger(t))
		defer session.Close(ctx)

		if err := session.SetRealtime(false); err != nil {
			t.Fatalf("SetRealtime failed: %v", err)
		}
		if !session.ManualStepMode() {
			t.Fatal("expected manual-step mode")
		}

		if err := sim.CommandJointVelocities(ctx, []int{0}, []float64{1.0}, []float64{150}); err != nil {
			t.Fatalf("command failed: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
		positions, _ := sim.JointPositions(ctx)
		if positions[0] != 0 {
			t.Fatalf("state advanced without Step: %f", positions[0])
		}

		if err := session.Step(100 * time.Millisecond); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		positions, _ = sim.JointPositions(ctx)
		if positions[0] == 0 {
			t.Error("manual Step did not advance the simulation")
		}

		// Back to continuous: explicit stepping is refused again.
		if err := session.SetRealtime(true); err != nil {
			t.Fatalf("SetRealtime failed: %v", err)
		}
		if err := session.Step(time.Millisecond); !errors.Is(err, ErrManualStepMode) {
			t.Errorf("expected ErrManualStepMode in continuous mode, got %v", err)
		}
	})

	t.Run("non-steppable backends are always continuous", func(t *testing.T) {
		backend := newFakeBackend(3)
		session := NewSession(backend, 0, logging.NewTestLogger(t))
		defer session.Close(ctx)

		if err := session.SetRealtime(false); !errors.Is(err, ErrUnsupported) {
			t.Errorf("expected ErrUnsupported, got %v", err)
		}
		if err := session.SetRealtime(true); err != nil {
			t.Errorf("enabling realtime on a continuous backend must be a no-op, got %v", err)
		}
		if err := session.Step(time.Millisecond); !errors.Is(err, ErrManualStepMode) {
			t.Errorf("expected ErrManualStepMode, got %v", err)
		}
	})
}
