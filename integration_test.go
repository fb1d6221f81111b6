package dh5_test

import (
	"context"
	"testing"
	"time"

	"github.com/goburrow/modbus"
	"github.com/tbrandon/mbserver"

	"github.com/openhand/dh5"
)

// Drives a Gripper against a real Modbus slave simulator over TCP, so the
// whole request path down to the wire encoding of the client library is
// exercised. The register map semantics are the same over RTU; only the
// framing differs, and that is owned by the client library.
func TestGripperAgainstSimulator(t *testing.T) {
	srv := mbserver.NewServer()
	if err := srv.ListenTCP("127.0.0.1:33586"); err != nil {
		t.Fatalf("failed to start slave simulator: %v", err)
	}
	defer srv.Close()

	// Pre-populate controller state.
	srv.HoldingRegisters[dh5.RegInitStatus] = 0b010101010101
	feedback := []uint16{480, 495, 502, 488, 510, 476}
	for i, v := range feedback {
		srv.HoldingRegisters[int(dh5.RegFeedbackBase)+i] = v
	}
	current := []uint16{120, 130, 110, 140, 125, 135}
	for i, v := range current {
		srv.HoldingRegisters[int(dh5.RegCurrentBase)+i] = v
	}

	handler := modbus.NewTCPClientHandler("127.0.0.1:33586")
	handler.Timeout = 1 * time.Second
	handler.SlaveId = 1
	if err := handler.Connect(); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer handler.Close()

	raw := modbus.NewClient(handler)
	g := dh5.NewWithClient(raw)

	readReg := func(addr uint16) uint16 {
		t.Helper()
		results, err := raw.ReadHoldingRegisters(addr, 1)
		if err != nil {
			t.Fatalf("ReadHoldingRegisters(%#04x) failed: %v", addr, err)
		}
		return uint16(results[0])<<8 | uint16(results[1])
	}

	t.Log("Testing initialization status decode")
	states, err := g.InitStatus()
	if err != nil {
		t.Fatalf("InitStatus failed: %v", err)
	}
	if !dh5.AllInitialized(states) {
		t.Errorf("expected all axes initialized, got %v", states)
	}

	t.Log("Testing feedback position read")
	positions, err := g.Positions()
	if err != nil {
		t.Fatalf("Positions failed: %v", err)
	}
	for i := range feedback {
		if positions[i] != feedback[i] {
			t.Errorf("axis %d: position %d, want %d", i+1, positions[i], feedback[i])
		}
	}

	t.Log("Testing init command write")
	if err := g.Initialize(dh5.ModeOpen); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if v := readReg(dh5.RegReturnToZero); v != 2 {
		t.Errorf("init register = %d, want 2", v)
	}

	t.Log("Testing target position block write")
	targets := []uint16{100, 150, 200, 250, 300, 350}
	if err := g.SetAllPositions(targets); err != nil {
		t.Fatalf("SetAllPositions failed: %v", err)
	}
	for i, want := range targets {
		if v := readReg(dh5.RegPositionBase + uint16(i)); v != want {
			t.Errorf("target axis %d = %d, want %d", i+1, v, want)
		}
	}

	t.Log("Testing speed write scaling")
	if err := g.SetAllSpeeds([]float64{0.3, 0.3, 0.3, 0.3, 0.3, 0.3}); err != nil {
		t.Fatalf("SetAllSpeeds failed: %v", err)
	}
	if v := readReg(dh5.RegSpeedBase); v != 30 {
		t.Errorf("speed register = %d, want 30", v)
	}

	t.Log("Testing motor current read")
	mA, err := g.AxisCurrent(2)
	if err != nil {
		t.Fatalf("AxisCurrent failed: %v", err)
	}
	if mA != current[1] {
		t.Errorf("axis 2 current = %d, want %d", mA, current[1])
	}

	t.Log("Testing calibration and ratio positioning")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.Calibrate(ctx); err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	maxes := g.MaxPositions()
	for i := range feedback {
		if maxes[i] != feedback[i] {
			t.Errorf("axis %d: max %d, want %d", i+1, maxes[i], feedback[i])
		}
	}

	if err := g.SetAllPositionsByRatio([]float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}); err != nil {
		t.Fatalf("SetAllPositionsByRatio failed: %v", err)
	}
	if v := readReg(dh5.RegPositionBase); v != 240 { // round(0.5*480)
		t.Errorf("ratio target axis 1 = %d, want 240", v)
	}

	t.Log("Testing command page")
	if err := g.ResetFaults(); err != nil {
		t.Fatalf("ResetFaults failed: %v", err)
	}
	if v := readReg(dh5.RegClearFault); v != 1 {
		t.Errorf("clear-fault register = %d, want 1", v)
	}
	if err := g.SaveParams(); err != nil {
		t.Fatalf("SaveParams failed: %v", err)
	}
	if v := readReg(dh5.RegSaveParams); v != 1 {
		t.Errorf("save register = %d, want 1", v)
	}
}
