package dh5

import (
	"fmt"
	"math"
)

// ratioToPosition maps a stroke ratio in [0,1] onto an absolute position
// register value for an axis with the given calibrated maximum.
func ratioToPosition(r float64, max uint16) uint16 {
	return uint16(math.Round(r * float64(max)))
}

// positionToRatio is the inverse of ratioToPosition. It round-trips within
// one register unit.
func positionToRatio(pos, max uint16) float64 {
	if max == 0 {
		return 0
	}
	return float64(pos) / float64(max)
}

// percent scales a ratio to the controller's percent registers.
func percent(r float64) uint16 {
	return uint16(math.Round(r * 100))
}

func checkAxis(axis int) error {
	if axis < 1 || axis > AxisCount {
		return fmt.Errorf("axis %d not in 1..%d: %w", axis, AxisCount, ErrOutOfRange)
	}
	return nil
}

func checkRatio(name string, r, lo float64) error {
	if r < lo || r > 1 {
		return fmt.Errorf("%s %g not in [%g,1]: %w", name, r, lo, ErrOutOfRange)
	}
	return nil
}

func checkCount(name string, n int) error {
	if n != AxisCount {
		return fmt.Errorf("need %d %s, got %d: %w", AxisCount, name, n, ErrOutOfRange)
	}
	return nil
}

// axisReg resolves the register address of a per-axis block entry.
func axisReg(base uint16, axis int) uint16 {
	return base + uint16(axis-1)
}
