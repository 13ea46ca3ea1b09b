package armlink

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/spatialmath"
)

const (
	defaultBaudrate = 1_000_000

	// STS servos report positions as 12-bit counts centered at 2048.
	servoCenterTicks = 2048
	servoTicksPerRev = 4096
)

// SerialConfig describes a Feetech STS servo bus.
type SerialConfig struct {
	// Port is the serial device path, e.g. /dev/ttyUSB0.
	Port string `json:"port"`
	// Baudrate defaults to 1M, the STS factory setting.
	Baudrate int `json:"baudrate,omitempty"`
	// ServoIDs lists the bus ID of each joint in canonical joint order.
	ServoIDs []int `json:"servo_ids"`
}

// Validate fills defaults and rejects unusable configs.
func (c *SerialConfig) Validate() error {
	if c.Port == "" {
		return errors.New("serial port is required")
	}
	if c.Baudrate == 0 {
		c.Baudrate = defaultBaudrate
	}
	if len(c.ServoIDs) == 0 {
		return errors.New("at least one servo ID is required")
	}
	seen := map[int]bool{}
	for _, id := range c.ServoIDs {
		if id < 1 || id > 253 {
			return errors.Errorf("servo ID %d out of range [1, 253]", id)
		}
		if seen[id] {
			return errors.Errorf("duplicate servo ID %d", id)
		}
		seen[id] = true
	}
	return nil
}

// SerialBackend drives Feetech STS servos over a serial bus. The servos are
// position devices: they accept position setpoints and a torque on/off
// switch, so velocity commands are limited to the zero-velocity forms the
// arm layer uses for stopping and torque-mode transitions, and true torque
// commands are unsupported.
type SerialBackend struct {
	cfg    SerialConfig
	bus    *feetech.Bus
	group  *feetech.ServoGroup
	kin    *frameKinematics // nil without a kinematic model
	logger logging.Logger

	mu            sync.Mutex
	lastPositions []float64
	lastRead      time.Time
}

// NewSerialBackend opens the bus and binds the configured servos. The model
// is optional: without one, end-effector pose and inverse kinematics report
// ErrUnsupported.
func NewSerialBackend(cfg SerialConfig, model referenceframe.Model, logger logging.Logger) (*SerialBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: cfg.Baudrate,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial bus on %s", cfg.Port)
	}
	b := &SerialBackend{
		cfg:    cfg,
		bus:    bus,
		group:  feetech.NewServoGroupByIDs(bus, cfg.ServoIDs...),
		logger: logger,
	}
	if model != nil {
		if len(model.DoF()) != len(cfg.ServoIDs) {
			bus.Close()
			return nil, errors.Errorf("model has %d DoF but config names %d servos", len(model.DoF()), len(cfg.ServoIDs))
		}
		b.kin = &frameKinematics{model: model, logger: logger}
	}
	logger.Infof("serial backend on %s at %d baud, servo IDs %v", cfg.Port, cfg.Baudrate, cfg.ServoIDs)
	return b, nil
}

func ticksToRadians(ticks int) float64 {
	return float64(ticks-servoCenterTicks) * (2 * math.Pi / servoTicksPerRev)
}

func radiansToTicks(rad float64) int {
	ticks := servoCenterTicks + int(math.Round(rad*servoTicksPerRev/(2*math.Pi)))
	if ticks < 0 {
		ticks = 0
	} else if ticks >= servoTicksPerRev {
		ticks = servoTicksPerRev - 1
	}
	return ticks
}

func (b *SerialBackend) readPositions(ctx context.Context) ([]float64, error) {
	raw, err := b.group.Positions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read servo positions")
	}
	out := make([]float64, len(b.cfg.ServoIDs))
	for i, id := range b.cfg.ServoIDs {
		ticks, ok := raw[id]
		if !ok {
			return nil, errors.Errorf("servo %d missing from bus response", id)
		}
		out[i] = ticksToRadians(ticks)
	}
	return out, nil
}

func (b *SerialBackend) JointPositions(ctx context.Context) ([]float64, error) {
	positions, err := b.readPositions(ctx)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.lastPositions = positions
	b.lastRead = time.Now()
	b.mu.Unlock()
	return positions, nil
}

// JointVelocities estimates velocities by differencing consecutive position
// reads. The first read after startup reports zeros.
func (b *SerialBackend) JointVelocities(ctx context.Context) ([]float64, error) {
	b.mu.Lock()
	prev := b.lastPositions
	prevTime := b.lastRead
	b.mu.Unlock()

	positions, err := b.JointPositions(ctx)
	if err != nil {
		return nil, err
	}
	velocities := make([]float64, len(positions))
	if prev == nil {
		return velocities, nil
	}
	dt := time.Since(prevTime).Seconds()
	if dt <= 0 {
		return velocities, nil
	}
	for i := range positions {
		velocities[i] = (positions[i] - prev[i]) / dt
	}
	return velocities, nil
}

func (b *SerialBackend) JointTorques(ctx context.Context) ([]float64, error) {
	return nil, errors.Wrap(ErrUnsupported, "servo bus does not report applied torque")
}

func (b *SerialBackend) checkJoints(joints []int, values ...[]float64) error {
	for _, v := range values {
		if len(v) != len(joints) {
			return errors.Errorf("got %d joints and %d values", len(joints), len(v))
		}
	}
	for _, idx := range joints {
		if idx < 0 || idx >= len(b.cfg.ServoIDs) {
			return errors.Errorf("joint index %d out of range [0, %d)", idx, len(b.cfg.ServoIDs))
		}
	}
	return nil
}

func (b *SerialBackend) CommandJointPositions(ctx context.Context, joints []int, targets, maxTorques []float64) error {
	if err := b.checkJoints(joints, targets, maxTorques); err != nil {
		return err
	}
	setpoints := make(feetech.PositionMap, len(joints))
	for i, idx := range joints {
		setpoints[b.cfg.ServoIDs[idx]] = radiansToTicks(targets[i])
	}
	return errors.Wrap(b.group.SetPositions(ctx, setpoints), "failed to write servo positions")
}

// CommandJointVelocities supports the two zero-velocity forms used by the
// control layer: zero max torque releases the servos (torque off), nonzero
// max torque holds the current position under power. Nonzero velocity
// targets are unsupported on position-mode servos.
func (b *SerialBackend) CommandJointVelocities(ctx context.Context, joints []int, targets, maxTorques []float64) error {
	if err := b.checkJoints(joints, targets, maxTorques); err != nil {
		return err
	}
	free := true
	for i, target := range targets {
		if target != 0 {
			return errors.Wrap(ErrUnsupported, "servo bus only accepts zero-velocity commands")
		}
		if maxTorques[i] != 0 {
			free = false
		}
	}
	if free {
		return errors.Wrap(b.group.DisableAll(ctx), "failed to release servos")
	}
	if err := b.group.EnableAll(ctx); err != nil {
		return errors.Wrap(err, "failed to enable servos")
	}
	positions, err := b.readPositions(ctx)
	if err != nil {
		return err
	}
	hold := make([]float64, len(joints))
	for i, idx := range joints {
		hold[i] = positions[idx]
	}
	return b.CommandJointPositions(ctx, joints, hold, maxTorques)
}

func (b *SerialBackend) CommandJointTorques(ctx context.Context, joints []int, torques []float64) error {
	return errors.Wrap(ErrUnsupported, "servo bus does not accept torque commands")
}

func (b *SerialBackend) ResetJointState(ctx context.Context, joint int, position, velocity float64) error {
	return errors.Wrap(ErrUnsupported, "cannot overwrite physical joint state")
}

func (b *SerialBackend) EndEffectorPose(ctx context.Context) (spatialmath.Pose, error) {
	if b.kin == nil {
		return nil, errors.Wrap(ErrUnsupported, "no kinematic model configured")
	}
	positions, err := b.JointPositions(ctx)
	if err != nil {
		return nil, err
	}
	return b.kin.endEffectorPose(positions)
}

func (b *SerialBackend) EndEffectorVelocity(ctx context.Context) (r3.Vector, r3.Vector, error) {
	return r3.Vector{}, r3.Vector{}, errors.Wrap(ErrUnsupported, "servo bus does not report end-effector velocity")
}

func (b *SerialBackend) InverseKinematics(ctx context.Context, position r3.Vector, orientation spatialmath.Orientation) ([]float64, error) {
	if b.kin == nil {
		return nil, errors.Wrap(ErrUnsupported, "no kinematic model configured")
	}
	seed, err := b.JointPositions(ctx)
	if err != nil {
		return nil, err
	}
	return b.kin.inverseKinematics(ctx, position, orientation, seed)
}

// Close releases the servos before dropping the bus so the arm does not
// fight its last setpoint unpowered.
func (b *SerialBackend) Close(ctx context.Context) error {
	if err := b.group.DisableAll(ctx); err != nil {
		b.logger.Warnf("failed to release servos on close: %v", err)
	}
	return b.bus.Close()
}
