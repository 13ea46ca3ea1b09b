package armlink

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerialConfigValidate(t *testing.T) {
	t.Run("fills defaults", func(t *testing.T) {
		cfg := SerialConfig{Port: "/dev/ttyUSB0", ServoIDs: []int{1, 2, 3}}
		assert.NoError(t, cfg.Validate())
		assert.Equal(t, defaultBaudrate, cfg.Baudrate)
	})

	t.Run("rejects bad configs", func(t *testing.T) {
		cases := map[string]SerialConfig{
			"no port":      {ServoIDs: []int{1}},
			"no servos":    {Port: "/dev/ttyUSB0"},
			"id too low":   {Port: "/dev/ttyUSB0", ServoIDs: []int{0}},
			"id too high":  {Port: "/dev/ttyUSB0", ServoIDs: []int{254}},
			"duplicate id": {Port: "/dev/ttyUSB0", ServoIDs: []int{1, 1}},
		}
		for name, cfg := range cases {
			assert.Error(t, cfg.Validate(), name)
		}
	})
}

func TestTickConversion(t *testing.T) {
	t.Run("center is zero radians", func(t *testing.T) {
		assert.Zero(t, ticksToRadians(servoCenterTicks))
		assert.Equal(t, servoCenterTicks, radiansToTicks(0))
	})

	t.Run("quarter turn", func(t *testing.T) {
		assert.InDelta(t, math.Pi/2, ticksToRadians(servoCenterTicks+1024), 1e-9)
		assert.Equal(t, servoCenterTicks+1024, radiansToTicks(math.Pi/2))
	})

	t.Run("round trips within one tick", func(t *testing.T) {
		for _, rad := range []float64{-math.Pi, -1.234, -0.001, 0.5, math.Pi - 0.01} {
			got := ticksToRadians(radiansToTicks(rad))
			assert.InDelta(t, rad, got, 2*math.Pi/servoTicksPerRev)
		}
	})

	t.Run("clamps to the encoder range", func(t *testing.T) {
		assert.Equal(t, servoTicksPerRev-1, radiansToTicks(100))
		assert.Equal(t, 0, radiansToTicks(-100))
	})
}
