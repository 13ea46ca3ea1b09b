package armlink

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// stateReader samples the tracked joint values, one per addressed joint.
type stateReader func(ctx context.Context) ([]float64, error)

// goalWaiter blocks until a joint goal is reached within tolerance or a
// timeout elapses. The clock is injectable so tests can drive a mock.
type goalWaiter struct {
	clock    clock.Clock
	interval time.Duration
}

func newGoalWaiter(c clock.Clock, interval time.Duration) goalWaiter {
	if c == nil {
		c = clock.New()
	}
	if interval <= 0 {
		interval = 2 * time.Millisecond
	}
	return goalWaiter{clock: c, interval: interval}
}

// wait polls read until every element of the sample is within maxErr of the
// target, returning (true, nil) on convergence and (false, nil) on timeout.
// A timeout is an outcome, not an error; errors are reserved for failed
// reads and context cancellation.
//
// When readDerv is supplied (position waits), the goal additionally counts
// as reached only once every derivative is within maxDerv of zero, so a
// joint swinging through the target is not reported as settled.
func (w goalWaiter) wait(
	ctx context.Context,
	target []float64,
	read stateReader,
	readDerv stateReader,
	timeout time.Duration,
	maxErr, maxDerv float64,
) (bool, error) {
	deadline := w.clock.Now().Add(timeout)
	ticker := w.clock.Ticker(w.interval)
	defer ticker.Stop()

	for {
		reached, err := w.goalReached(ctx, target, read, readDerv, maxErr, maxDerv)
		if err != nil {
			return false, err
		}
		if reached {
			return true, nil
		}
		if !w.clock.Now().Before(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, errors.Wrap(ctx.Err(), "wait for joint goal canceled")
		case <-ticker.C:
		}
	}
}

func (w goalWaiter) goalReached(
	ctx context.Context,
	target []float64,
	read stateReader,
	readDerv stateReader,
	maxErr, maxDerv float64,
) (bool, error) {
	current, err := read(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to sample joint state")
	}
	if len(current) != len(target) {
		return false, errors.Errorf("joint state has %d values, goal has %d", len(current), len(target))
	}
	for i := range target {
		if math.Abs(current[i]-target[i]) > maxErr {
			return false, nil
		}
	}
	if readDerv == nil {
		return true, nil
	}
	derv, err := readDerv(ctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to sample joint derivative")
	}
	if len(derv) != len(target) {
		return false, errors.Errorf("joint derivative has %d values, goal has %d", len(derv), len(target))
	}
	for i := range derv {
		if math.Abs(derv[i]) > maxDerv {
			return false, nil
		}
	}
	return true, nil
}
