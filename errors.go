package dh5

import "errors"

var (
	// ErrNotConnected is returned when an operation is attempted before
	// Open succeeded or after Close.
	ErrNotConnected = errors.New("dh5: not connected")

	// ErrOutOfRange is returned when an axis index, mode, ratio or value
	// count falls outside its allowed range. Nothing is written to the bus.
	ErrOutOfRange = errors.New("dh5: value out of range")

	// ErrNotCalibrated is returned by ratio-based positioning before the
	// stroke has been calibrated or set.
	ErrNotCalibrated = errors.New("dh5: stroke not calibrated")

	// ErrAxisFault is returned when the controller reports a fault state
	// for one or more axes.
	ErrAxisFault = errors.New("dh5: axis fault")
)
