// Copyright (c) 2026 OpenHand Robotics. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package dh5 is a Modbus RTU client for the DH5 six-axis gripper
// controller. It maps the controller's holding registers onto typed
// operations (initialize, position, speed, force, status, fault reset)
// and converts between physical ratios and raw register values. Serial
// transport, RTU framing, CRC and retries are delegated to
// github.com/goburrow/modbus.
package dh5

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

const defaultPollInterval = 250 * time.Millisecond

// Config holds the serial line parameters of a DH5 controller.
type Config struct {
	Port     string        // e.g. "/dev/ttyUSB0"
	BaudRate int           // default 115200
	DataBits int           // default 8
	Parity   string        // "N", "E", "O"; default "N"
	StopBits int           // default 1
	SlaveID  byte          // Modbus unit id, default 1
	Timeout  time.Duration // response timeout, default 1s
}

// DefaultConfig returns the controller's factory serial settings for port.
func DefaultConfig(port string) Config {
	return Config{
		Port:     port,
		BaudRate: 115200,
		DataBits: 8,
		Parity:   "N",
		StopBits: 1,
		SlaveID:  1,
		Timeout:  time.Second,
	}
}

func (c *Config) fixup() {
	if c.BaudRate == 0 {
		c.BaudRate = 115200
	}
	if c.DataBits == 0 {
		c.DataBits = 8
	}
	if c.Parity == "" {
		c.Parity = "N"
	}
	if c.StopBits == 0 {
		c.StopBits = 1
	}
	if c.SlaveID == 0 {
		c.SlaveID = 1
	}
	if c.Timeout == 0 {
		c.Timeout = time.Second
	}
}

// Client is the subset of the modbus client the gripper needs. It is
// satisfied by modbus.Client from github.com/goburrow/modbus.
type Client interface {
	ReadHoldingRegisters(address, quantity uint16) (results []byte, err error)
	WriteSingleRegister(address, value uint16) (results []byte, err error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) (results []byte, err error)
}

// Gripper drives a single DH5 controller. Methods are safe for concurrent
// use; bus transactions are serialized.
type Gripper struct {
	cfg Config

	mu      sync.Mutex
	handler *modbus.RTUClientHandler // nil when the client is externally owned
	client  Client

	maxPositions [AxisCount]uint16
	calibrated   bool
}

// New returns a Gripper for the given serial configuration. Open must be
// called before any bus operation.
func New(cfg Config) *Gripper {
	cfg.fixup()
	return &Gripper{cfg: cfg}
}

// NewWithClient wraps an existing modbus client (for example a TCP client
// or a test fake). The caller keeps ownership of the underlying
// connection; Close is a no-op.
func NewWithClient(client Client) *Gripper {
	return &Gripper{client: client}
}

// Open opens the serial port and connects the RTU client. Opening an
// already open gripper is a no-op.
func (g *Gripper) Open() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return nil
	}

	h := modbus.NewRTUClientHandler(g.cfg.Port)
	h.BaudRate = g.cfg.BaudRate
	h.DataBits = g.cfg.DataBits
	h.Parity = g.cfg.Parity
	h.StopBits = g.cfg.StopBits
	h.SlaveId = g.cfg.SlaveID
	h.Timeout = g.cfg.Timeout
	if err := h.Connect(); err != nil {
		return fmt.Errorf("dh5: open %s: %w", g.cfg.Port, err)
	}

	g.handler = h
	g.client = modbus.NewClient(h)
	slog.Debug("dh5 connected", "port", g.cfg.Port, "baud", g.cfg.BaudRate, "slave", g.cfg.SlaveID)
	return nil
}

// Close closes the serial port if this gripper owns it.
func (g *Gripper) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.handler == nil {
		g.client = nil
		return nil
	}
	err := g.handler.Close()
	g.handler = nil
	g.client = nil
	return err
}

// Connected reports whether the gripper has an attached client.
func (g *Gripper) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.client != nil
}

// transact runs fn with the client while holding the bus lock.
func (g *Gripper) transact(fn func(Client) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return ErrNotConnected
	}
	return fn(g.client)
}

// readRegs reads quantity holding registers starting at address and
// decodes the big-endian response.
func (g *Gripper) readRegs(address, quantity uint16) ([]uint16, error) {
	var values []uint16
	err := g.transact(func(c Client) error {
		resp, err := c.ReadHoldingRegisters(address, quantity)
		if err != nil {
			return fmt.Errorf("dh5: read %#04x+%d: %w", address, quantity, err)
		}
		if len(resp) < int(quantity)*2 {
			return fmt.Errorf("dh5: read %#04x: short response (%d bytes)", address, len(resp))
		}
		values = make([]uint16, quantity)
		for i := range values {
			values[i] = uint16(resp[2*i])<<8 | uint16(resp[2*i+1])
		}
		slog.Debug("dh5 read", "addr", fmt.Sprintf("%#04x", address), "values", values)
		return nil
	})
	return values, err
}

func (g *Gripper) writeReg(address, value uint16) error {
	return g.transact(func(c Client) error {
		if _, err := c.WriteSingleRegister(address, value); err != nil {
			return fmt.Errorf("dh5: write %#04x=%d: %w", address, value, err)
		}
		slog.Debug("dh5 write", "addr", fmt.Sprintf("%#04x", address), "value", value)
		return nil
	})
}

func (g *Gripper) writeRegs(address uint16, values []uint16) error {
	return g.transact(func(c Client) error {
		buf := make([]byte, 2*len(values))
		for i, v := range values {
			buf[2*i] = byte(v >> 8)
			buf[2*i+1] = byte(v)
		}
		if _, err := c.WriteMultipleRegisters(address, uint16(len(values)), buf); err != nil {
			return fmt.Errorf("dh5: write %#04x (%s): %w", address, hex.EncodeToString(buf), err)
		}
		slog.Debug("dh5 write block", "addr", fmt.Sprintf("%#04x", address), "values", values)
		return nil
	})
}

// Initialize starts an initialization run on all axes.
func (g *Gripper) Initialize(mode Mode) error {
	if !mode.valid() {
		return fmt.Errorf("mode %d not in 1..3: %w", mode, ErrOutOfRange)
	}
	return g.writeReg(RegReturnToZero, uint16(mode))
}

// InitializeAxis starts an initialization run on a single axis.
func (g *Gripper) InitializeAxis(axis int, mode Mode) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	if !mode.valid() {
		return fmt.Errorf("mode %d not in 1..3: %w", mode, ErrOutOfRange)
	}
	return g.writeReg(RegReturnToZero, uint16(axis)<<8|uint16(mode))
}

// InitStatus reads and decodes the packed initialization status word.
func (g *Gripper) InitStatus() ([AxisCount]AxisState, error) {
	var states [AxisCount]AxisState
	values, err := g.readRegs(RegInitStatus, 1)
	if err != nil {
		return states, err
	}
	return DecodeInitStatus(values[0]), nil
}

// WaitInitialized polls the status word until every axis reports
// initialized, an axis faults, or ctx is done.
func (g *Gripper) WaitInitialized(ctx context.Context) error {
	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()

	for {
		states, err := g.InitStatus()
		if err != nil {
			return err
		}
		if axes := faultedAxes(states); len(axes) > 0 {
			return fmt.Errorf("axes %v: %w", axes, ErrAxisFault)
		}
		if AllInitialized(states) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("dh5: waiting for initialization: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// SetAllPositions writes target positions for all six axes in one
// transaction.
func (g *Gripper) SetAllPositions(positions []uint16) error {
	if err := checkCount("positions", len(positions)); err != nil {
		return err
	}
	return g.writeRegs(RegPositionBase, positions)
}

// SetAxisPosition writes the target position of one axis.
func (g *Gripper) SetAxisPosition(axis int, position uint16) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	return g.writeReg(axisReg(RegPositionBase, axis), position)
}

// Positions reads the actual position of all six axes.
func (g *Gripper) Positions() ([]uint16, error) {
	return g.readRegs(RegFeedbackBase, AxisCount)
}

// AxisPosition reads the actual position of one axis.
func (g *Gripper) AxisPosition(axis int) (uint16, error) {
	if err := checkAxis(axis); err != nil {
		return 0, err
	}
	values, err := g.readRegs(axisReg(RegFeedbackBase, axis), 1)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// SetAllSpeeds writes the speed of all six axes as ratios in [0.1, 1].
func (g *Gripper) SetAllSpeeds(speeds []float64) error {
	if err := checkCount("speeds", len(speeds)); err != nil {
		return err
	}
	regs := make([]uint16, AxisCount)
	for i, s := range speeds {
		if err := checkRatio("speed", s, 0.1); err != nil {
			return err
		}
		regs[i] = percent(s)
	}
	return g.writeRegs(RegSpeedBase, regs)
}

// SetAxisSpeed writes the speed of one axis as a ratio in [0.1, 1].
func (g *Gripper) SetAxisSpeed(axis int, speed float64) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	if err := checkRatio("speed", speed, 0.1); err != nil {
		return err
	}
	return g.writeReg(axisReg(RegSpeedBase, axis), percent(speed))
}

// AxisSpeed reads the speed of one axis as a ratio.
func (g *Gripper) AxisSpeed(axis int) (float64, error) {
	if err := checkAxis(axis); err != nil {
		return 0, err
	}
	values, err := g.readRegs(axisReg(RegSpeedBase, axis), 1)
	if err != nil {
		return 0, err
	}
	return float64(values[0]) / 100, nil
}

// SetAllForces writes the gripping force of all six axes as ratios in
// [0.2, 1].
func (g *Gripper) SetAllForces(forces []float64) error {
	if err := checkCount("forces", len(forces)); err != nil {
		return err
	}
	regs := make([]uint16, AxisCount)
	for i, f := range forces {
		if err := checkRatio("force", f, 0.2); err != nil {
			return err
		}
		regs[i] = percent(f)
	}
	return g.writeRegs(RegForceBase, regs)
}

// SetAxisForce writes the gripping force of one axis as a ratio in [0.2, 1].
func (g *Gripper) SetAxisForce(axis int, force float64) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	if err := checkRatio("force", force, 0.2); err != nil {
		return err
	}
	return g.writeReg(axisReg(RegForceBase, axis), percent(force))
}

// AxisForce reads the gripping force of one axis as a ratio.
func (g *Gripper) AxisForce(axis int) (float64, error) {
	if err := checkAxis(axis); err != nil {
		return 0, err
	}
	values, err := g.readRegs(axisReg(RegForceBase, axis), 1)
	if err != nil {
		return 0, err
	}
	return float64(values[0]) / 100, nil
}

// AxisCurrent reads the motor current of one axis in milliamps.
func (g *Gripper) AxisCurrent(axis int) (uint16, error) {
	if err := checkAxis(axis); err != nil {
		return 0, err
	}
	values, err := g.readRegs(axisReg(RegCurrentBase, axis), 1)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// Calibrate measures the total stroke of every axis: it runs a
// find-stroke initialization, waits for it to finish, and records the
// resulting positions as the per-axis maxima used by ratio positioning.
func (g *Gripper) Calibrate(ctx context.Context) error {
	if err := g.Initialize(ModeFindStroke); err != nil {
		return err
	}
	if err := g.WaitInitialized(ctx); err != nil {
		return err
	}
	positions, err := g.Positions()
	if err != nil {
		return err
	}

	g.mu.Lock()
	copy(g.maxPositions[:], positions)
	g.calibrated = true
	g.mu.Unlock()

	slog.Info("dh5 stroke calibrated", "max_positions", positions)
	return nil
}

// MaxPositions returns the calibrated per-axis maxima, or nil before
// calibration.
func (g *Gripper) MaxPositions() []uint16 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.calibrated {
		return nil
	}
	out := make([]uint16, AxisCount)
	copy(out, g.maxPositions[:])
	return out
}

// SetMaxPositions installs known stroke maxima without running a
// calibration sweep, for controllers whose stroke is already known.
func (g *Gripper) SetMaxPositions(max []uint16) error {
	if err := checkCount("max positions", len(max)); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	copy(g.maxPositions[:], max)
	g.calibrated = true
	return nil
}

// SetAllPositionsByRatio moves all axes to stroke ratios in [0, 1].
// Requires a calibrated stroke.
func (g *Gripper) SetAllPositionsByRatio(ratios []float64) error {
	if err := checkCount("ratios", len(ratios)); err != nil {
		return err
	}
	g.mu.Lock()
	calibrated := g.calibrated
	max := g.maxPositions
	g.mu.Unlock()
	if !calibrated {
		return ErrNotCalibrated
	}

	positions := make([]uint16, AxisCount)
	for i, r := range ratios {
		if err := checkRatio("ratio", r, 0); err != nil {
			return err
		}
		positions[i] = ratioToPosition(r, max[i])
	}
	return g.writeRegs(RegPositionBase, positions)
}

// SetAxisPositionByRatio moves one axis to a stroke ratio in [0, 1].
func (g *Gripper) SetAxisPositionByRatio(axis int, ratio float64) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	if err := checkRatio("ratio", ratio, 0); err != nil {
		return err
	}
	g.mu.Lock()
	calibrated := g.calibrated
	max := g.maxPositions[axis-1]
	g.mu.Unlock()
	if !calibrated {
		return ErrNotCalibrated
	}
	return g.writeReg(axisReg(RegPositionBase, axis), ratioToPosition(ratio, max))
}

// AxisRatio reads the actual position of one axis as a stroke ratio.
func (g *Gripper) AxisRatio(axis int) (float64, error) {
	if err := checkAxis(axis); err != nil {
		return 0, err
	}
	g.mu.Lock()
	calibrated := g.calibrated
	max := g.maxPositions[axis-1]
	g.mu.Unlock()
	if !calibrated {
		return 0, ErrNotCalibrated
	}
	pos, err := g.AxisPosition(axis)
	if err != nil {
		return 0, err
	}
	return positionToRatio(pos, max), nil
}

// ResetFaults clears latched fault states on the controller.
func (g *Gripper) ResetFaults() error {
	return g.writeReg(RegClearFault, 1)
}

// AgingTest starts (1) or stops (0) the controller's aging test cycle.
func (g *Gripper) AgingTest(flag int) error {
	if flag != 0 && flag != 1 {
		return fmt.Errorf("aging flag %d not in {0,1}: %w", flag, ErrOutOfRange)
	}
	return g.writeReg(RegAgingTest, uint16(flag))
}

// SaveParams persists the current parameter set to the controller's
// non-volatile memory.
func (g *Gripper) SaveParams() error {
	return g.writeReg(RegSaveParams, 1)
}
