// Copyright (c) 2026 OpenHand Robotics. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package dh5

// AxisState is the initialization state of a single axis as reported in
// the packed status word.
type AxisState uint8

const (
	NotInitialized AxisState = 0
	Initialized    AxisState = 1
	Initializing   AxisState = 2
	Faulted        AxisState = 3
)

func (s AxisState) String() string {
	switch s {
	case NotInitialized:
		return "not_initialized"
	case Initialized:
		return "initialized"
	case Initializing:
		return "initializing"
	case Faulted:
		return "fault"
	}
	return "unknown"
}

const axisStateBits = 2

// DecodeInitStatus unpacks the status word into per-axis states. Axis 1
// occupies the two least significant bits, axis 6 bits 10-11.
func DecodeInitStatus(word uint16) [AxisCount]AxisState {
	var states [AxisCount]AxisState
	for i := range states {
		states[i] = AxisState(word >> (axisStateBits * i) & 0b11)
	}
	return states
}

// AllInitialized reports whether every axis has finished initialization.
func AllInitialized(states [AxisCount]AxisState) bool {
	for _, s := range states {
		if s != Initialized {
			return false
		}
	}
	return true
}

// faultedAxes returns the 1-based indices of axes in the fault state.
func faultedAxes(states [AxisCount]AxisState) []int {
	var axes []int
	for i, s := range states {
		if s == Faulted {
			axes = append(axes, i+1)
		}
	}
	return axes
}
