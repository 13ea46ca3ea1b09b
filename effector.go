package armlink

import (
	"context"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// EndEffector is a tool mounted past the arm's last joint. Its joints extend
// the arm's joint list but are actuated through its own methods.
type EndEffector interface {
	// JointNames lists the effector's joints, appended after the arm's in
	// the full chain ordering.
	JointNames() []string
	// TorqueModeEnabled reports whether the effector's own joints are under
	// torque control. The arm never flips effector modes itself.
	TorqueModeEnabled() bool
}

// Gripper is a single-joint parallel gripper driven through the arm's
// backend. Open and closed are joint positions in radians.
type Gripper struct {
	name      string
	joint     int
	openPos   float64
	closedPos float64
	maxTorque float64
	session   *Session
	logger    logging.Logger
}

// NewGripper binds a gripper to a backend joint index. The joint index is in
// the backend's full-chain ordering, past the arm's own joints.
func NewGripper(name string, joint int, openPos, closedPos, maxTorque float64, session *Session, logger logging.Logger) *Gripper {
	return &Gripper{
		name:      name,
		joint:     joint,
		openPos:   openPos,
		closedPos: closedPos,
		maxTorque: maxTorque,
		session:   session,
		logger:    logger,
	}
}

func (g *Gripper) JointNames() []string {
	return []string{g.name}
}

// TorqueModeEnabled is always false: the gripper joint is a position device.
func (g *Gripper) TorqueModeEnabled() bool {
	return false
}

// Open moves the gripper to its fully open position.
func (g *Gripper) Open(ctx context.Context) error {
	return g.moveTo(ctx, g.openPos)
}

// Close moves the gripper to its fully closed position.
func (g *Gripper) Close(ctx context.Context) error {
	return g.moveTo(ctx, g.closedPos)
}

// SetFraction moves the gripper to a point between closed (0) and open (1).
func (g *Gripper) SetFraction(ctx context.Context, fraction float64) error {
	if fraction < 0 || fraction > 1 {
		return errors.Errorf("gripper fraction %.3f out of range [0, 1]", fraction)
	}
	return g.moveTo(ctx, g.closedPos+fraction*(g.openPos-g.closedPos))
}

func (g *Gripper) moveTo(ctx context.Context, target float64) error {
	err := g.session.Backend().CommandJointPositions(ctx,
		[]int{g.joint}, []float64{target}, []float64{g.maxTorque})
	return errors.Wrap(err, "gripper command failed")
}

// Position reads the gripper joint position.
func (g *Gripper) Position(ctx context.Context) (float64, error) {
	positions, err := g.session.Backend().JointPositions(ctx)
	if err != nil {
		return 0, err
	}
	if g.joint >= len(positions) {
		return 0, errors.Errorf("backend reports %d joints, gripper is joint %d", len(positions), g.joint)
	}
	return positions[g.joint], nil
}
