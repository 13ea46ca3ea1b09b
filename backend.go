package armlink

import (
	"context"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"
)

// Sentinel errors for the motion layer. Validation and mode failures are
// returned before any actuation command is issued; a convergence timeout is
// never an error, only a false settled flag.
var (
	ErrInvalidGoal    = errors.New("invalid joint target")
	ErrUnknownJoint   = errors.New("unknown joint name")
	ErrModeViolation  = errors.New("joint is not in torque control mode")
	ErrInvalidStep    = errors.New("interpolation step must be positive")
	ErrManualStepMode = errors.New("operation requires continuous stepping")
	ErrUnsupported    = errors.New("not supported by this backend")
)

// Backend is the actuation and state surface the motion layer drives. It is
// satisfied by the built-in kinematic simulator and by the feetech serial
// bus binding; tests supply recording fakes.
//
// Joint indices follow the canonical joint ordering of the arm profile.
// Readers return one value per actuated joint in that ordering. Command
// methods address a subset of joints by index; targets and maxTorques are
// parallel to the joints slice.
type Backend interface {
	JointPositions(ctx context.Context) ([]float64, error)
	JointVelocities(ctx context.Context) ([]float64, error)
	JointTorques(ctx context.Context) ([]float64, error)

	CommandJointPositions(ctx context.Context, joints []int, targets, maxTorques []float64) error
	CommandJointVelocities(ctx context.Context, joints []int, targets, maxTorques []float64) error
	CommandJointTorques(ctx context.Context, joints []int, torques []float64) error

	// ResetJointState overwrites a joint's position and velocity directly,
	// bypassing actuation. Backends without that capability return
	// ErrUnsupported.
	ResetJointState(ctx context.Context, joint int, position, velocity float64) error

	EndEffectorPose(ctx context.Context) (spatialmath.Pose, error)
	EndEffectorVelocity(ctx context.Context) (linear, angular r3.Vector, err error)

	// InverseKinematics solves for the full kinematic chain; the caller
	// truncates the solution to the arm's DOF. A nil orientation keeps the
	// current end-effector orientation.
	InverseKinematics(ctx context.Context, position r3.Vector, orientation spatialmath.Orientation) ([]float64, error)

	Close(ctx context.Context) error
}

// Stepper is implemented by backends whose state only advances on request.
// The session drives Step from its background loop in continuous mode, or
// the owner calls it directly in manual-step mode.
type Stepper interface {
	Step(dt time.Duration)
}
