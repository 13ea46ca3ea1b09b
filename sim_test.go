package armlink

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func newTestSim(t *testing.T) *SimBackend {
	t.Helper()
	model, err := UR5eModel()
	require.NoError(t, err, "embedded UR5e model must parse")
	return NewSimBackend(model, 2.0, logging.NewTestLogger(t))
}

func stepFor(sim *SimBackend, total, dt time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += dt {
		sim.Step(dt)
	}
}

func TestSimBackend(t *testing.T) {
	ctx := context.Background()
	dt := 2 * time.Millisecond

	t.Run("position command tracks at bounded rate", func(t *testing.T) {
		sim := newTestSim(t)
		target := []float64{0.5, 0, 0, 0, 0, 0}
		require.NoError(t, sim.CommandJointPositions(ctx, []int{0, 1, 2, 3, 4, 5}, target, make([]float64, 6)))

		// One step cannot cover 0.5 rad at 2 rad/s.
		sim.Step(dt)
		positions, err := sim.JointPositions(ctx)
		require.NoError(t, err)
		assert.Greater(t, positions[0], 0.0)
		assert.Less(t, positions[0], 0.5)

		stepFor(sim, 500*time.Millisecond, dt)
		positions, err = sim.JointPositions(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, positions[0], 1e-9)

		velocities, err := sim.JointVelocities(ctx)
		require.NoError(t, err)
		assert.Zero(t, velocities[0], "velocity must settle at the target")
	})

	t.Run("velocity command integrates", func(t *testing.T) {
		sim := newTestSim(t)
		require.NoError(t, sim.CommandJointVelocities(ctx, []int{2}, []float64{1.0}, []float64{150}))

		stepFor(sim, 100*time.Millisecond, dt)
		positions, err := sim.JointPositions(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 0.1, positions[2], 1e-9)

		velocities, err := sim.JointVelocities(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, velocities[2], 1e-9)
	})

	t.Run("torque command accelerates", func(t *testing.T) {
		sim := newTestSim(t)
		require.NoError(t, sim.CommandJointTorques(ctx, []int{1}, []float64{2.0}))

		stepFor(sim, 100*time.Millisecond, dt)
		velocities, err := sim.JointVelocities(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 0.2, velocities[1], 1e-9, "v = tau/I * t")

		applied, err := sim.JointTorques(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2.0, applied[1])
	})

	t.Run("reset overwrites state and cancels the command", func(t *testing.T) {
		sim := newTestSim(t)
		require.NoError(t, sim.CommandJointVelocities(ctx, []int{0}, []float64{1.0}, []float64{150}))
		stepFor(sim, 50*time.Millisecond, dt)

		require.NoError(t, sim.ResetJointState(ctx, 0, -1.2, 0))
		positions, err := sim.JointPositions(ctx)
		require.NoError(t, err)
		assert.Equal(t, -1.2, positions[0])

		// The old velocity command must not keep integrating.
		stepFor(sim, 50*time.Millisecond, dt)
		positions, err = sim.JointPositions(ctx)
		require.NoError(t, err)
		assert.Equal(t, -1.2, positions[0])
	})

	t.Run("rejects bad indices and shapes", func(t *testing.T) {
		sim := newTestSim(t)
		assert.Error(t, sim.CommandJointPositions(ctx, []int{9}, []float64{0}, []float64{0}))
		assert.Error(t, sim.CommandJointPositions(ctx, []int{0, 1}, []float64{0}, []float64{0, 0}))
		assert.Error(t, sim.ResetJointState(ctx, -1, 0, 0))
	})

	t.Run("forward kinematics reflects joint motion", func(t *testing.T) {
		sim := newTestSim(t)
		home, err := sim.EndEffectorPose(ctx)
		require.NoError(t, err)

		require.NoError(t, sim.CommandJointPositions(ctx,
			[]int{0, 1, 2, 3, 4, 5}, []float64{0, -math.Pi / 2, 0, 0, 0, 0}, make([]float64, 6)))
		stepFor(sim, 2*time.Second, dt)

		moved, err := sim.EndEffectorPose(ctx)
		require.NoError(t, err)
		assert.Greater(t, moved.Point().Sub(home.Point()).Norm(), 100.0,
			"folding the shoulder must move the end effector by a visible amount")
	})
}
