package armlink

import (
	"encoding/json"
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// Config describes an arm profile: its canonical joint ordering, home
// position, actuation limits, and the tolerances used by blocking waits.
type Config struct {
	JointNames   []string  `json:"joint_names,omitempty"`
	HomePosition []float64 `json:"home_position,omitempty"` // radians, one per joint
	MaxTorques   []float64 `json:"max_torques,omitempty"`   // Nm, one per joint

	// JointLimits are [min, max] pairs in radians, one per joint. Targets
	// outside a joint's limits are clamped with a warning.
	JointLimits [][2]float64 `json:"joint_limits,omitempty"`

	// EndEffectorJoint names the joint whose child link is treated as the
	// end-effector reference frame.
	EndEffectorJoint string `json:"end_effector_joint,omitempty"`

	Timeout          time.Duration `json:"timeout,omitempty"`             // blocking wait limit (default: 10s)
	MaxJointError    float64       `json:"max_joint_error,omitempty"`     // rad (default: 0.01)
	MaxJointVelError float64       `json:"max_joint_vel_error,omitempty"` // rad/s (default: 0.05)
	PollInterval     time.Duration `json:"poll_interval,omitempty"`       // wait poll cadence (default: 2ms)

	// Internal logger (not from JSON)
	Logger logging.Logger `json:"-"`
}

// ur5eJointNames is the canonical ordering for the bundled UR5e profile.
var ur5eJointNames = []string{
	"shoulder_pan_joint",
	"shoulder_lift_joint",
	"elbow_joint",
	"wrist_1_joint",
	"wrist_2_joint",
	"wrist_3_joint",
}

// DefaultUR5eConfig returns the profile for a UR5e: six joints, the usual
// elbow-up home pose, and the vendor torque ratings.
func DefaultUR5eConfig() *Config {
	limits := make([][2]float64, len(ur5eJointNames))
	for i := range limits {
		limits[i] = [2]float64{-2 * math.Pi, 2 * math.Pi}
	}
	return &Config{
		JointNames:       append([]string{}, ur5eJointNames...),
		HomePosition:     []float64{0, -1.66, -1.92, -1.57, 1.57, 0},
		MaxTorques:       []float64{150, 150, 150, 28, 28, 28},
		JointLimits:      limits,
		EndEffectorJoint: "wrist_3_joint",
	}
}

// Validate fills defaults and rejects inconsistent profiles.
func (cfg *Config) Validate() error {
	if len(cfg.JointNames) == 0 {
		return errors.New("joint_names must not be empty")
	}
	seen := make(map[string]struct{}, len(cfg.JointNames))
	for _, name := range cfg.JointNames {
		if name == "" {
			return errors.New("joint names must not be empty strings")
		}
		if _, dup := seen[name]; dup {
			return errors.Errorf("duplicate joint name %q", name)
		}
		seen[name] = struct{}{}
	}

	dof := len(cfg.JointNames)
	if len(cfg.HomePosition) == 0 {
		cfg.HomePosition = make([]float64, dof)
	}
	if len(cfg.HomePosition) != dof {
		return errors.Errorf("home_position has %d entries, expected %d", len(cfg.HomePosition), dof)
	}
	if len(cfg.MaxTorques) == 0 {
		cfg.MaxTorques = make([]float64, dof)
		for i := range cfg.MaxTorques {
			cfg.MaxTorques[i] = 50
		}
	}
	if len(cfg.MaxTorques) != dof {
		return errors.Errorf("max_torques has %d entries, expected %d", len(cfg.MaxTorques), dof)
	}
	if len(cfg.JointLimits) != 0 && len(cfg.JointLimits) != dof {
		return errors.Errorf("joint_limits has %d entries, expected %d", len(cfg.JointLimits), dof)
	}
	for i, lim := range cfg.JointLimits {
		if lim[0] > lim[1] {
			return errors.Errorf("joint_limits[%d]: min %.3f above max %.3f", i, lim[0], lim[1])
		}
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxJointError == 0 {
		cfg.MaxJointError = 0.01
	}
	if cfg.MaxJointError < 0 {
		return errors.Errorf("max_joint_error must be positive, got %f", cfg.MaxJointError)
	}
	if cfg.MaxJointVelError == 0 {
		cfg.MaxJointVelError = 0.05
	}
	if cfg.MaxJointVelError < 0 {
		return errors.Errorf("max_joint_vel_error must be positive, got %f", cfg.MaxJointVelError)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Millisecond
	}
	if cfg.PollInterval < 0 || cfg.PollInterval > 5*time.Millisecond {
		return errors.Errorf("poll_interval must be in (0, 5ms], got %v", cfg.PollInterval)
	}
	return nil
}

// LoadConfig reads an arm profile from a JSON file and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read arm profile")
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse arm profile")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the profile to a JSON file.
func (cfg *Config) Save(path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal arm profile")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write arm profile")
	}
	return nil
}
