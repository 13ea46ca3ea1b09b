package armlink

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

func TestLinearPath(t *testing.T) {
	t.Run("interpolates evenly spaced waypoints", func(t *testing.T) {
		path, err := linearPath(r3.Vector{}, r3.Vector{X: 0.02}, 0.005)
		if err != nil {
			t.Fatalf("linearPath failed: %v", err)
		}
		if len(path) != 4 {
			t.Fatalf("expected 4 waypoints, got %d", len(path))
		}
		last := path[len(path)-1]
		if last.X != 0.02 || last.Y != 0 || last.Z != 0 {
			t.Errorf("last waypoint %v is not the exact endpoint", last)
		}
		for i, wp := range path {
			want := 0.005 * float64(i+1)
			if math.Abs(wp.X-want) > 1e-12 {
				t.Errorf("waypoint %d at x=%f, want %f", i, wp.X, want)
			}
		}
	})

	t.Run("offsets from a nonzero origin", func(t *testing.T) {
		origin := r3.Vector{X: 1, Y: 2, Z: 3}
		path, err := linearPath(origin, r3.Vector{Y: 0.01, Z: 0.01}, 0.004)
		if err != nil {
			t.Fatalf("linearPath failed: %v", err)
		}
		last := path[len(path)-1]
		want := origin.Add(r3.Vector{Y: 0.01, Z: 0.01})
		if last.Sub(want).Norm() > 1e-12 {
			t.Errorf("last waypoint %v, want %v", last, want)
		}
		// ~14.1mm of travel at 4mm steps needs 4 waypoints.
		if len(path) != 4 {
			t.Errorf("expected 4 waypoints, got %d", len(path))
		}
	})

	t.Run("zero displacement yields the origin", func(t *testing.T) {
		origin := r3.Vector{X: 0.5}
		path, err := linearPath(origin, r3.Vector{}, 0.005)
		if err != nil {
			t.Fatalf("linearPath failed: %v", err)
		}
		if len(path) != 1 || path[0] != origin {
			t.Errorf("expected single origin waypoint, got %v", path)
		}
	})

	t.Run("rejects non-positive step", func(t *testing.T) {
		for _, step := range []float64{0, -0.01} {
			if _, err := linearPath(r3.Vector{}, r3.Vector{X: 1}, step); !errors.Is(err, ErrInvalidStep) {
				t.Errorf("step %f: expected ErrInvalidStep, got %v", step, err)
			}
		}
	})
}
