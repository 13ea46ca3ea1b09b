package armlink

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// linearPath interpolates a straight-line end-effector displacement into
// waypoints spaced at most step apart. The last waypoint is always the exact
// endpoint, and the result is never empty: a zero displacement yields a
// single waypoint equal to origin.
func linearPath(origin, delta r3.Vector, step float64) ([]r3.Vector, error) {
	if step <= 0 {
		return nil, errors.Wrapf(ErrInvalidStep, "got %f", step)
	}
	dist := delta.Norm()
	if dist == 0 {
		return []r3.Vector{origin}, nil
	}
	n := int(math.Ceil(dist / step))
	waypoints := make([]r3.Vector, 0, n)
	for i := 1; i <= n; i++ {
		waypoints = append(waypoints, origin.Add(delta.Mul(float64(i)/float64(n))))
	}
	return waypoints, nil
}
