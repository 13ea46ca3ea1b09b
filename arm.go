// Package armlink is a robot-arm motion-control layer. It commands joint
// positions, velocities, and torques against a pluggable backend (a kinematic
// simulator or a serial servo bus), waits for goal convergence with a
// timeout, guards torque-mode transitions, and decomposes straight-line
// end-effector moves into joint-space waypoints.
package armlink

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
)

// MoveOptions tunes a joint-position command.
type MoveOptions struct {
	// NoWait returns as soon as the command is issued instead of blocking
	// until convergence or timeout.
	NoWait bool
	// IgnorePhysics overwrites joint state directly (zero velocity first,
	// then a hard reset) instead of actuating toward it. Best used before
	// the simulation is running.
	IgnorePhysics bool
}

// Arm sequences motion primitives for a single arm session. It owns the
// per-joint control-mode state; the session's backend is its only actuation
// path.
type Arm struct {
	cfg      *Config
	logger   logging.Logger
	session  *Session
	modes    *modeTracker
	waiter   goalWaiter
	effector EndEffector

	allJoints []int
	moveLock  sync.Mutex
	isMoving  atomic.Bool
}

// NewArm validates the profile and binds it to a session.
func NewArm(cfg *Config, session *Session, logger logging.Logger) (*Arm, error) {
	if cfg == nil {
		cfg = DefaultUR5eConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = cfg.Logger
	}
	cfg.Logger = logger

	all := make([]int, len(cfg.JointNames))
	for i := range all {
		all[i] = i
	}
	a := &Arm{
		cfg:       cfg,
		logger:    logger,
		session:   session,
		modes:     newModeTracker(cfg.JointNames),
		waiter:    newGoalWaiter(clock.New(), cfg.PollInterval),
		allJoints: all,
	}
	logger.Infof("arm initialized with %d joints: %v", a.DOF(), cfg.JointNames)
	return a, nil
}

// AttachEndEffector composes an end-effector capability into the arm. Its
// joints are reported through FullJointNames but are never actuated by the
// arm's own commands.
func (a *Arm) AttachEndEffector(e EndEffector) {
	a.effector = e
}

// DOF is the number of actuated arm joints.
func (a *Arm) DOF() int {
	return len(a.cfg.JointNames)
}

// JointNames returns the canonical joint ordering.
func (a *Arm) JointNames() []string {
	return append([]string{}, a.cfg.JointNames...)
}

// FullJointNames is the arm ordering followed by the attached end-effector's
// joints, if any.
func (a *Arm) FullJointNames() []string {
	names := a.JointNames()
	if a.effector != nil {
		names = append(names, a.effector.JointNames()...)
	}
	return names
}

// IsMoving reports whether a blocking move is in flight.
func (a *Arm) IsMoving() bool {
	return a.isMoving.Load()
}

func (a *Arm) validateFullGoal(values []float64) error {
	if len(values) != a.DOF() {
		return errors.Wrapf(ErrInvalidGoal, "expected %d values, got %d", a.DOF(), len(values))
	}
	return nil
}

// clampToLimits bounds position targets to the configured joint limits,
// warning like a servo driver would rather than failing.
func (a *Arm) clampToLimits(joints []int, targets []float64) []float64 {
	if len(a.cfg.JointLimits) == 0 {
		return targets
	}
	clamped := append([]float64{}, targets...)
	for i, idx := range joints {
		lim := a.cfg.JointLimits[idx]
		if clamped[i] < lim[0] {
			a.logger.Warnf("joint %s target %.3f rad below limit %.3f rad, clamping", a.cfg.JointNames[idx], clamped[i], lim[0])
			clamped[i] = lim[0]
		} else if clamped[i] > lim[1] {
			a.logger.Warnf("joint %s target %.3f rad above limit %.3f rad, clamping", a.cfg.JointNames[idx], clamped[i], lim[1])
			clamped[i] = lim[1]
		}
	}
	return clamped
}

// MoveToJointPositions moves every arm joint to the given targets (canonical
// ordering, exactly DOF entries). Unless opts request otherwise it blocks
// until the goal converges or the configured timeout elapses; the returned
// flag reports whether the goal was reached by the time the call exits. A
// command issued without waiting reports true once accepted.
func (a *Arm) MoveToJointPositions(ctx context.Context, targets []float64, opts MoveOptions) (bool, error) {
	if err := a.validateFullGoal(targets); err != nil {
		return false, err
	}
	return a.moveJoints(ctx, a.allJoints, targets, opts)
}

// MoveJointToPosition moves a single named joint.
func (a *Arm) MoveJointToPosition(ctx context.Context, joint string, target float64, opts MoveOptions) (bool, error) {
	idx, err := a.modes.indexOf(joint)
	if err != nil {
		return false, err
	}
	return a.moveJoints(ctx, []int{idx}, []float64{target}, opts)
}

func (a *Arm) moveJoints(ctx context.Context, joints []int, targets []float64, opts MoveOptions) (bool, error) {
	a.moveLock.Lock()
	defer a.moveLock.Unlock()
	a.isMoving.Store(true)
	defer a.isMoving.Store(false)

	backend := a.session.Backend()
	maxTorques := a.torquesFor(joints)

	if opts.IgnorePhysics {
		// Put the joints under a zero-velocity command first so the reset
		// holds instead of snapping back to the previous setpoint.
		if err := backend.CommandJointVelocities(ctx, joints, make([]float64, len(joints)), maxTorques); err != nil {
			return false, errors.Wrap(err, "failed to still joints before reset")
		}
		for i, idx := range joints {
			if err := backend.ResetJointState(ctx, idx, targets[i], 0); err != nil {
				return false, errors.Wrapf(err, "failed to reset joint %s", a.cfg.JointNames[idx])
			}
		}
		return true, nil
	}

	targets = a.clampToLimits(joints, targets)
	if err := backend.CommandJointPositions(ctx, joints, targets, maxTorques); err != nil {
		return false, errors.Wrap(err, "position command failed")
	}
	if opts.NoWait || a.session.ManualStepMode() {
		return true, nil
	}
	return a.waiter.wait(ctx, targets,
		a.jointReader(backend.JointPositions, joints),
		a.jointReader(backend.JointVelocities, joints),
		a.cfg.Timeout, a.cfg.MaxJointError, a.cfg.MaxJointVelError)
}

// SetJointVelocities commands every arm joint's velocity. With wait set the
// call blocks until the measured velocities converge or time out; otherwise
// acceptance of the command is the reported outcome.
func (a *Arm) SetJointVelocities(ctx context.Context, targets []float64, wait bool) (bool, error) {
	if err := a.validateFullGoal(targets); err != nil {
		return false, err
	}
	return a.setVelocities(ctx, a.allJoints, targets, wait)
}

// SetJointVelocity commands a single named joint's velocity.
func (a *Arm) SetJointVelocity(ctx context.Context, joint string, target float64, wait bool) (bool, error) {
	idx, err := a.modes.indexOf(joint)
	if err != nil {
		return false, err
	}
	return a.setVelocities(ctx, []int{idx}, []float64{target}, wait)
}

func (a *Arm) setVelocities(ctx context.Context, joints []int, targets []float64, wait bool) (bool, error) {
	backend := a.session.Backend()
	if err := backend.CommandJointVelocities(ctx, joints, targets, a.torquesFor(joints)); err != nil {
		return false, errors.Wrap(err, "velocity command failed")
	}
	if !wait || a.session.ManualStepMode() {
		return true, nil
	}
	return a.waiter.wait(ctx, targets,
		a.jointReader(backend.JointVelocities, joints),
		nil,
		a.cfg.Timeout, a.cfg.MaxJointVelError, 0)
}

// SetJointTorques applies torques to every arm joint. The joints must all be
// in torque control mode. Torque commands are fire-and-forget per simulation
// step, so there is no convergence outcome: a nil error means applied.
func (a *Arm) SetJointTorques(ctx context.Context, torques []float64) error {
	if err := a.modes.assertTorque(); err != nil {
		return err
	}
	if err := a.validateFullGoal(torques); err != nil {
		return err
	}
	return errors.Wrap(a.session.Backend().CommandJointTorques(ctx, a.allJoints, torques), "torque command failed")
}

// SetJointTorque applies a torque to a single named joint.
func (a *Arm) SetJointTorque(ctx context.Context, joint string, torque float64) error {
	idx, err := a.modes.indexOf(joint)
	if err != nil {
		return err
	}
	if err := a.modes.assertTorque(idx); err != nil {
		return err
	}
	return errors.Wrap(a.session.Backend().CommandJointTorques(ctx, []int{idx}, []float64{torque}), "torque command failed")
}

// EnableTorqueControl switches the named joints (all when none are given)
// into torque control mode. The joints are first stabilized with a
// zero-velocity, zero-force command so the handoff starts from rest.
func (a *Arm) EnableTorqueControl(ctx context.Context, joints ...string) error {
	idxs, err := a.resolve(joints)
	if err != nil {
		return err
	}
	zeros := make([]float64, len(idxs))
	if err := a.session.Backend().CommandJointVelocities(ctx, idxs, zeros, zeros); err != nil {
		return errors.Wrap(err, "failed to stabilize joints for torque control")
	}
	a.modes.set(ModeTorque, idxs...)
	return nil
}

// DisableTorqueControl returns the named joints (all when none are given) to
// velocity control with a zero-velocity command at full holding torque.
func (a *Arm) DisableTorqueControl(ctx context.Context, joints ...string) error {
	idxs, err := a.resolve(joints)
	if err != nil {
		return err
	}
	zeros := make([]float64, len(idxs))
	if err := a.session.Backend().CommandJointVelocities(ctx, idxs, zeros, a.torquesFor(idxs)); err != nil {
		return errors.Wrap(err, "failed to exit torque control")
	}
	a.modes.set(ModeVelocity, idxs...)
	return nil
}

// InTorqueMode reports whether every named joint (all when none are given)
// is in torque control mode. Unknown names report false.
func (a *Arm) InTorqueMode(joints ...string) bool {
	idxs, err := a.resolve(joints)
	if err != nil {
		return false
	}
	return a.modes.inTorqueMode(idxs...)
}

// GoHome moves the arm to the configured home position.
func (a *Arm) GoHome(ctx context.Context, ignorePhysics bool) (bool, error) {
	return a.MoveToJointPositions(ctx, a.cfg.HomePosition, MoveOptions{IgnorePhysics: ignorePhysics})
}

// Stop commands zero velocity on every joint and drops any torque mode.
func (a *Arm) Stop(ctx context.Context) error {
	a.isMoving.Store(false)
	if err := a.DisableTorqueControl(ctx); err != nil {
		return err
	}
	a.logger.Info("arm stopped")
	return nil
}

// MoveToPose moves the end effector to the given pose via inverse
// kinematics. A nil position keeps the current end-effector position; a nil
// orientation keeps the current orientation.
func (a *Arm) MoveToPose(ctx context.Context, position *r3.Vector, orientation spatialmath.Orientation, opts MoveOptions) (bool, error) {
	backend := a.session.Backend()
	if position == nil {
		pose, err := backend.EndEffectorPose(ctx)
		if err != nil {
			return false, err
		}
		point := pose.Point()
		position = &point
	}
	solution, err := backend.InverseKinematics(ctx, *position, orientation)
	if err != nil {
		return false, err
	}
	return a.MoveToJointPositions(ctx, a.truncateToDOF(solution), opts)
}

// MoveLinear moves the end effector along delta in a straight line without
// changing its orientation, interpolating a waypoint every step millimeters.
// It requires continuous stepping: in manual-step mode nothing is actuated
// and ErrManualStepMode is returned.
//
// Backend failures abort the sequence; a convergence timeout on an
// intermediate waypoint does not, and the returned flag is the final
// waypoint's outcome.
func (a *Arm) MoveLinear(ctx context.Context, delta r3.Vector, step float64) (bool, error) {
	if a.session.ManualStepMode() {
		return false, errors.Wrap(ErrManualStepMode, "linear end-effector motion")
	}
	backend := a.session.Backend()
	pose, err := backend.EndEffectorPose(ctx)
	if err != nil {
		return false, err
	}
	orientation := pose.Orientation()

	waypoints, err := linearPath(pose.Point(), delta, step)
	if err != nil {
		return false, err
	}

	// Solve the whole path up front so an unreachable waypoint fails before
	// the arm starts moving.
	jointTargets := make([][]float64, 0, len(waypoints))
	for _, wp := range waypoints {
		solution, err := backend.InverseKinematics(ctx, wp, orientation)
		if err != nil {
			return false, err
		}
		jointTargets = append(jointTargets, a.truncateToDOF(solution))
	}

	settled := false
	for i, target := range jointTargets {
		settled, err = a.MoveToJointPositions(ctx, target, MoveOptions{})
		if err != nil {
			return false, errors.Wrapf(err, "waypoint %d/%d", i+1, len(jointTargets))
		}
	}
	return settled, nil
}

// JointPositions returns the current joint positions in canonical order.
func (a *Arm) JointPositions(ctx context.Context) ([]float64, error) {
	return a.session.Backend().JointPositions(ctx)
}

// JointPosition returns a single named joint's position.
func (a *Arm) JointPosition(ctx context.Context, joint string) (float64, error) {
	return a.readJoint(ctx, joint, a.session.Backend().JointPositions)
}

// JointVelocities returns the current joint velocities in canonical order.
func (a *Arm) JointVelocities(ctx context.Context) ([]float64, error) {
	return a.session.Backend().JointVelocities(ctx)
}

// JointVelocity returns a single named joint's velocity.
func (a *Arm) JointVelocity(ctx context.Context, joint string) (float64, error) {
	return a.readJoint(ctx, joint, a.session.Backend().JointVelocities)
}

// JointTorques returns the torques applied during the last actuation step.
// Not meaningful while in torque control mode, where the applied torque is
// whatever was commanded.
func (a *Arm) JointTorques(ctx context.Context) ([]float64, error) {
	return a.session.Backend().JointTorques(ctx)
}

// EndEffectorPose returns the current end-effector pose.
func (a *Arm) EndEffectorPose(ctx context.Context) (spatialmath.Pose, error) {
	return a.session.Backend().EndEffectorPose(ctx)
}

// EndEffectorVelocity returns the end effector's linear and angular velocity.
func (a *Arm) EndEffectorVelocity(ctx context.Context) (r3.Vector, r3.Vector, error) {
	return a.session.Backend().EndEffectorVelocity(ctx)
}

func (a *Arm) readJoint(ctx context.Context, joint string, read stateReader) (float64, error) {
	idx, err := a.modes.indexOf(joint)
	if err != nil {
		return 0, err
	}
	values, err := read(ctx)
	if err != nil {
		return 0, err
	}
	if idx >= len(values) {
		return 0, errors.Errorf("backend returned %d joint values, need index %d", len(values), idx)
	}
	return values[idx], nil
}

// jointReader adapts a whole-arm reader to the addressed joint subset.
func (a *Arm) jointReader(read stateReader, joints []int) stateReader {
	return func(ctx context.Context) ([]float64, error) {
		values, err := read(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(joints))
		for i, idx := range joints {
			if idx >= len(values) {
				return nil, errors.Errorf("backend returned %d joint values, need index %d", len(values), idx)
			}
			out[i] = values[idx]
		}
		return out, nil
	}
}

func (a *Arm) torquesFor(joints []int) []float64 {
	out := make([]float64, len(joints))
	for i, idx := range joints {
		out[i] = a.cfg.MaxTorques[idx]
	}
	return out
}

func (a *Arm) resolve(joints []string) ([]int, error) {
	if len(joints) == 0 {
		return a.allJoints, nil
	}
	idxs := make([]int, len(joints))
	for i, name := range joints {
		idx, err := a.modes.indexOf(name)
		if err != nil {
			return nil, err
		}
		idxs[i] = idx
	}
	return idxs, nil
}

// truncateToDOF trims a full-chain IK solution (arm plus any end-effector
// joints) to the arm's own joints.
func (a *Arm) truncateToDOF(solution []float64) []float64 {
	if len(solution) <= a.DOF() {
		return solution
	}
	return solution[:a.DOF()]
}
