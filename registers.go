// Copyright (c) 2026 OpenHand Robotics. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package dh5

// AxisCount is the number of independently actuated axes on the DH5.
const AxisCount = 6

// Holding register map of the DH5 controller. Per-axis blocks are
// contiguous, axis 1 first. Addresses beyond the command page were taken
// from the controller datasheet; a correction only touches this file.
const (
	// RegReturnToZero triggers initialization. The low byte carries the
	// mode, the high byte selects a single axis (0 means all axes).
	RegReturnToZero uint16 = 0x0100

	// RegPositionBase is the first of six target position registers.
	RegPositionBase uint16 = 0x0101

	// RegSpeedBase is the first of six speed registers, in percent (10-100).
	RegSpeedBase uint16 = 0x0107

	// RegForceBase is the first of six force registers, in percent (20-100).
	RegForceBase uint16 = 0x010D

	// RegInitStatus packs six 2-bit axis initialization states.
	RegInitStatus uint16 = 0x0200

	// RegFeedbackBase is the first of six actual position registers.
	RegFeedbackBase uint16 = 0x0201

	// RegCurrentBase is the first of six motor current registers, in mA.
	RegCurrentBase uint16 = 0x0207

	RegSaveParams uint16 = 0x0300
	RegClearFault uint16 = 0x0301
	RegAgingTest  uint16 = 0x0302
)

// Modbus function codes used against the controller. The actual framing is
// owned by the modbus client library; these are kept for reference and for
// interpreting bus captures.
const (
	FuncReadHoldingRegisters   = 0x03
	FuncWriteSingleRegister    = 0x06
	FuncWriteMultipleRegisters = 0x10
)

// Mode selects what an initialization run drives the axes towards.
type Mode uint16

const (
	// ModeClose homes every selected axis to the fully closed stop.
	ModeClose Mode = 1
	// ModeOpen homes every selected axis to the fully open stop.
	ModeOpen Mode = 2
	// ModeFindStroke sweeps the full travel to measure the total stroke.
	ModeFindStroke Mode = 3
)

func (m Mode) valid() bool {
	return m >= ModeClose && m <= ModeFindStroke
}

func (m Mode) String() string {
	switch m {
	case ModeClose:
		return "close"
	case ModeOpen:
		return "open"
	case ModeFindStroke:
		return "find-stroke"
	}
	return "unknown"
}
