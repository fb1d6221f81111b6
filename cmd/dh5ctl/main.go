// Copyright (c) 2026 OpenHand Robotics. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// dh5ctl is a command line tool for exercising a DH5 gripper controller
// over Modbus RTU.
//
// Usage:
//
//	dh5ctl [flags] <command> [args]
//
// Commands:
//
//	status                    print per-axis initialization state
//	init [close|open|stroke]  initialize all axes (default open)
//	wait                      block until all axes are initialized
//	positions                 print actual positions of all axes
//	set-pos p1 .. p6          write target positions
//	set-speed s1 .. s6        write speeds as ratios in [0.1,1]
//	set-force f1 .. f6        write forces as ratios in [0.2,1]
//	current                   print motor current of all axes
//	calibrate                 measure total stroke, print maxima
//	grip r                    move all axes to stroke ratio r in [0,1]
//	reset-faults              clear latched faults
//	aging 0|1                 stop/start the aging test cycle
//	save                      persist parameters to flash
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/openhand/dh5"
	"github.com/openhand/dh5/internal/config"
)

func main() {
	configFile := pflag.StringP("config", "c", "", "Path to config file")
	pflag.StringP("port", "p", "/dev/ttyUSB0", "Serial port device name")
	pflag.IntP("baud", "b", 115200, "Serial port speed")
	pflag.String("parity", "N", "Serial parity (N, E, O)")
	pflag.Int("slave-id", 1, "Modbus unit id of the controller")
	pflag.DurationP("timeout", "W", time.Second, "Response wait time")
	axis := pflag.IntP("axis", "a", 0, "Restrict command to one axis (1-6, 0 = all)")
	wait := pflag.DurationP("wait", "w", 30*time.Second, "Deadline for wait/calibrate")
	pflag.StringP("log-level", "v", "info", "Log verbosity level (debug, info, warn, error)")
	pflag.StringP("log-file", "L", "", "Log file name ('-' for logging to STDOUT only)")
	pflag.Parse()

	// Local overrides, the same DH5_* variables config.Load reads.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFile, pflag.CommandLine)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g := dh5.New(dh5.Config{
		Port:     cfg.Serial.Port,
		BaudRate: cfg.Serial.BaudRate,
		DataBits: cfg.Serial.DataBits,
		Parity:   cfg.Serial.Parity,
		StopBits: cfg.Serial.StopBits,
		SlaveID:  byte(cfg.Serial.SlaveID),
		Timeout:  cfg.Serial.Timeout,
	})
	if err := g.Open(); err != nil {
		slog.Error("Failed to open controller", "port", cfg.Serial.Port, "err", err)
		os.Exit(1)
	}
	defer g.Close()

	if err := run(ctx, g, pflag.Arg(0), pflag.Args()[1:], *axis, *wait); err != nil {
		slog.Error("Command failed", "command", pflag.Arg(0), "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, g *dh5.Gripper, command string, args []string, axis int, wait time.Duration) error {
	switch command {
	case "status":
		states, err := g.InitStatus()
		if err != nil {
			return err
		}
		for i, s := range states {
			fmt.Printf("axis %d: %s\n", i+1, s)
		}
		return nil

	case "init":
		mode := dh5.ModeOpen
		if len(args) > 0 {
			m, err := parseMode(args[0])
			if err != nil {
				return err
			}
			mode = m
		}
		if axis != 0 {
			return g.InitializeAxis(axis, mode)
		}
		return g.Initialize(mode)

	case "wait":
		ctx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		return g.WaitInitialized(ctx)

	case "positions":
		positions, err := g.Positions()
		if err != nil {
			return err
		}
		for i, p := range positions {
			fmt.Printf("axis %d: %d\n", i+1, p)
		}
		return nil

	case "set-pos":
		if axis != 0 {
			if len(args) != 1 {
				return fmt.Errorf("set-pos with --axis takes one position")
			}
			p, err := strconv.ParseUint(args[0], 10, 16)
			if err != nil {
				return fmt.Errorf("bad position %q: %w", args[0], err)
			}
			return g.SetAxisPosition(axis, uint16(p))
		}
		positions, err := parseUint16s(args)
		if err != nil {
			return err
		}
		return g.SetAllPositions(positions)

	case "set-speed":
		speeds, err := parseFloats(args)
		if err != nil {
			return err
		}
		return g.SetAllSpeeds(speeds)

	case "set-force":
		forces, err := parseFloats(args)
		if err != nil {
			return err
		}
		return g.SetAllForces(forces)

	case "current":
		for i := 1; i <= dh5.AxisCount; i++ {
			mA, err := g.AxisCurrent(i)
			if err != nil {
				return err
			}
			fmt.Printf("axis %d: %d mA\n", i, mA)
		}
		return nil

	case "calibrate":
		ctx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		if err := g.Calibrate(ctx); err != nil {
			return err
		}
		for i, m := range g.MaxPositions() {
			fmt.Printf("axis %d: max %d\n", i+1, m)
		}
		return nil

	case "grip":
		if len(args) != 1 {
			return fmt.Errorf("grip takes one ratio")
		}
		r, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("bad ratio %q: %w", args[0], err)
		}
		if g.MaxPositions() == nil {
			ctx, cancel := context.WithTimeout(ctx, wait)
			defer cancel()
			slog.Info("Stroke not calibrated, calibrating first")
			if err := g.Calibrate(ctx); err != nil {
				return err
			}
		}
		if axis != 0 {
			return g.SetAxisPositionByRatio(axis, r)
		}
		ratios := make([]float64, dh5.AxisCount)
		for i := range ratios {
			ratios[i] = r
		}
		return g.SetAllPositionsByRatio(ratios)

	case "reset-faults":
		return g.ResetFaults()

	case "aging":
		if len(args) != 1 {
			return fmt.Errorf("aging takes 0 or 1")
		}
		flag, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad aging flag %q: %w", args[0], err)
		}
		return g.AgingTest(flag)

	case "save":
		return g.SaveParams()
	}

	return fmt.Errorf("unknown command %q", command)
}

func parseMode(s string) (dh5.Mode, error) {
	switch s {
	case "close", "1":
		return dh5.ModeClose, nil
	case "open", "2":
		return dh5.ModeOpen, nil
	case "stroke", "3":
		return dh5.ModeFindStroke, nil
	}
	return 0, fmt.Errorf("unknown init mode %q", s)
}

func parseUint16s(args []string) ([]uint16, error) {
	out := make([]uint16, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseUint(a, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("bad value %q: %w", a, err)
		}
		out = append(out, uint16(v))
	}
	return out, nil
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("bad value %q: %w", a, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stdout: %v\n", err)
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
