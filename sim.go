package armlink

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/spatialmath"
)

type simCommandKind int

const (
	cmdNone simCommandKind = iota
	cmdPosition
	cmdVelocity
	cmdTorque
)

// simCommand is the last actuation request issued for a joint. It stays in
// effect across steps until replaced, the way a motor controller holds its
// setpoint.
type simCommand struct {
	kind      simCommandKind
	target    float64 // rad (position) or rad/s (velocity)
	maxTorque float64
	torque    float64 // torque mode only
}

// SimBackend is a deterministic, physics-free arm backend. Joints track
// position targets at a bounded rate, integrate velocity targets, and
// integrate torque commands; state advances only when Step is called, either
// manually or from a session's background loop.
type SimBackend struct {
	kin        frameKinematics
	logger     logging.Logger
	trackSpeed float64 // rad/s toward position targets
	inertia    float64 // kg·m² per joint for torque integration

	mu        sync.Mutex
	positions []float64
	velocities []float64
	applied   []float64
	commands  []simCommand
	eePos     r3.Vector
	eeVel     r3.Vector
}

// NewSimBackend builds a simulated backend over the given kinematic model.
// A trackSpeed of 0 defaults to 1 rad/s.
func NewSimBackend(model referenceframe.Model, trackSpeed float64, logger logging.Logger) *SimBackend {
	if trackSpeed <= 0 {
		trackSpeed = 1.0
	}
	dof := len(model.DoF())
	s := &SimBackend{
		kin:        frameKinematics{model: model, logger: logger},
		logger:     logger,
		trackSpeed: trackSpeed,
		inertia:    1.0,
		positions:  make([]float64, dof),
		velocities: make([]float64, dof),
		applied:    make([]float64, dof),
		commands:   make([]simCommand, dof),
	}
	if pose, err := s.kin.endEffectorPose(s.positions); err == nil {
		s.eePos = pose.Point()
	}
	return s
}

// Step advances the simulated joints by dt according to each joint's active
// command.
func (s *SimBackend) Step(dt time.Duration) {
	secs := dt.Seconds()
	if secs <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	const epsilon = 1e-9
	for i, cmd := range s.commands {
		switch cmd.kind {
		case cmdPosition:
			diff := cmd.target - s.positions[i]
			travel := s.trackSpeed * secs
			if travel > math.Abs(diff)-epsilon {
				s.positions[i] = cmd.target
				s.velocities[i] = 0
				s.applied[i] = 0
			} else {
				step := math.Copysign(travel, diff)
				s.positions[i] += step
				s.velocities[i] = step / secs
				s.applied[i] = cmd.maxTorque
			}
		case cmdVelocity:
			s.positions[i] += cmd.target * secs
			s.velocities[i] = cmd.target
			s.applied[i] = cmd.maxTorque
		case cmdTorque:
			s.velocities[i] += cmd.torque / s.inertia * secs
			s.positions[i] += s.velocities[i] * secs
			s.applied[i] = cmd.torque
		default:
			s.velocities[i] = 0
			s.applied[i] = 0
		}
	}

	if pose, err := s.kin.endEffectorPose(s.positions); err == nil {
		point := pose.Point()
		s.eeVel = point.Sub(s.eePos).Mul(1 / secs)
		s.eePos = point
	} else {
		s.logger.Debugw("end-effector pose update failed", "error", err)
	}
}

func (s *SimBackend) JointPositions(ctx context.Context) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.positions))
	copy(out, s.positions)
	return out, nil
}

func (s *SimBackend) JointVelocities(ctx context.Context) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.velocities))
	copy(out, s.velocities)
	return out, nil
}

func (s *SimBackend) JointTorques(ctx context.Context) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.applied))
	copy(out, s.applied)
	return out, nil
}

func (s *SimBackend) CommandJointPositions(ctx context.Context, joints []int, targets, maxTorques []float64) error {
	return s.setCommands(joints, targets, maxTorques, cmdPosition)
}

func (s *SimBackend) CommandJointVelocities(ctx context.Context, joints []int, targets, maxTorques []float64) error {
	return s.setCommands(joints, targets, maxTorques, cmdVelocity)
}

func (s *SimBackend) CommandJointTorques(ctx context.Context, joints []int, torques []float64) error {
	if len(joints) != len(torques) {
		return errors.Errorf("got %d joints and %d torques", len(joints), len(torques))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, idx := range joints {
		if err := s.checkIndex(idx); err != nil {
			return err
		}
		s.commands[idx] = simCommand{kind: cmdTorque, torque: torques[i]}
	}
	return nil
}

func (s *SimBackend) setCommands(joints []int, targets, maxTorques []float64, kind simCommandKind) error {
	if len(joints) != len(targets) || len(joints) != len(maxTorques) {
		return errors.Errorf("got %d joints, %d targets, %d max torques", len(joints), len(targets), len(maxTorques))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, idx := range joints {
		if err := s.checkIndex(idx); err != nil {
			return err
		}
		s.commands[idx] = simCommand{kind: kind, target: targets[i], maxTorque: maxTorques[i]}
	}
	return nil
}

func (s *SimBackend) checkIndex(idx int) error {
	if idx < 0 || idx >= len(s.positions) {
		return errors.Errorf("joint index %d out of range [0, %d)", idx, len(s.positions))
	}
	return nil
}

// ResetJointState overwrites a joint's state and clears its active command,
// the simulated equivalent of a hard physics reset.
func (s *SimBackend) ResetJointState(ctx context.Context, joint int, position, velocity float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIndex(joint); err != nil {
		return err
	}
	s.positions[joint] = position
	s.velocities[joint] = velocity
	s.applied[joint] = 0
	s.commands[joint] = simCommand{}
	if pose, err := s.kin.endEffectorPose(s.positions); err == nil {
		s.eePos = pose.Point()
		s.eeVel = r3.Vector{}
	}
	return nil
}

func (s *SimBackend) EndEffectorPose(ctx context.Context) (spatialmath.Pose, error) {
	s.mu.Lock()
	positions := make([]float64, len(s.positions))
	copy(positions, s.positions)
	s.mu.Unlock()
	return s.kin.endEffectorPose(positions)
}

func (s *SimBackend) EndEffectorVelocity(ctx context.Context) (r3.Vector, r3.Vector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Angular velocity is not modeled; the linear part is the finite
	// difference across the last step.
	return s.eeVel, r3.Vector{}, nil
}

func (s *SimBackend) InverseKinematics(ctx context.Context, position r3.Vector, orientation spatialmath.Orientation) ([]float64, error) {
	s.mu.Lock()
	seed := make([]float64, len(s.positions))
	copy(seed, s.positions)
	s.mu.Unlock()
	return s.kin.inverseKinematics(ctx, position, orientation, seed)
}

func (s *SimBackend) Close(ctx context.Context) error {
	return nil
}
