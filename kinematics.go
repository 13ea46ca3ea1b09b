package armlink

import (
	"context"
	_ "embed"
	"encoding/json"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/motionplan/armplanning"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/spatialmath"
)

//go:embed ur5e.json
var ur5eModelJSON []byte

// UR5eModel parses the embedded UR5e kinematic model.
func UR5eModel() (referenceframe.Model, error) {
	return ParseModelJSON(ur5eModelJSON, "ur5e")
}

// ParseModelJSON builds a kinematic model from raw model JSON.
func ParseModelJSON(data []byte, name string) (referenceframe.Model, error) {
	m := &referenceframe.ModelConfigJSON{
		OriginalFile: &referenceframe.ModelFile{
			Bytes:     data,
			Extension: "json",
		},
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal kinematic model json")
	}
	return m.ParseConfig(name)
}

// frameKinematics bundles forward and inverse kinematics over a
// referenceframe model. Both backends share it.
type frameKinematics struct {
	model  referenceframe.Model
	logger logging.Logger
}

func (k frameKinematics) dof() int {
	return len(k.model.DoF())
}

// endEffectorPose computes the pose of the model's tip for the given joint
// positions.
func (k frameKinematics) endEffectorPose(positions []float64) (spatialmath.Pose, error) {
	pose, err := referenceframe.ComputeOOBPosition(k.model, floatsToInputs(positions))
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute end-effector pose")
	}
	return pose, nil
}

// inverseKinematics solves for joint positions that reach the given
// end-effector position. A nil orientation holds the orientation implied by
// the seed configuration.
func (k frameKinematics) inverseKinematics(
	ctx context.Context,
	position r3.Vector,
	orientation spatialmath.Orientation,
	seed []float64,
) ([]float64, error) {
	if orientation == nil {
		current, err := k.endEffectorPose(seed)
		if err != nil {
			return nil, err
		}
		orientation = current.Orientation()
	}
	goal := spatialmath.NewPose(position, orientation)
	plan, err := armplanning.PlanFrameMotion(ctx, k.logger, goal, k.model, floatsToInputs(seed), nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "inverse kinematics failed")
	}
	return inputsToFloats(plan[len(plan)-1]), nil
}

func floatsToInputs(values []float64) []referenceframe.Input {
	inputs := make([]referenceframe.Input, len(values))
	for i, v := range values {
		inputs[i] = referenceframe.Input(v)
	}
	return inputs
}

func inputsToFloats(inputs []referenceframe.Input) []float64 {
	values := make([]float64, len(inputs))
	for i, inp := range inputs {
		values[i] = float64(inp)
	}
	return values
}
