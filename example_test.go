package dh5_test

import (
	"context"
	"log"
	"time"

	"github.com/openhand/dh5"
)

func ExampleGripper() {
	g := dh5.New(dh5.DefaultConfig("/dev/ttyUSB0"))
	if err := g.Open(); err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	// Home all axes to the open stop and wait for completion.
	if err := g.Initialize(dh5.ModeOpen); err != nil {
		log.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := g.WaitInitialized(ctx); err != nil {
		log.Fatal(err)
	}

	// Measure the stroke, then close the hand halfway at low force.
	if err := g.Calibrate(ctx); err != nil {
		log.Fatal(err)
	}
	if err := g.SetAllForces([]float64{0.3, 0.3, 0.3, 0.3, 0.3, 0.3}); err != nil {
		log.Fatal(err)
	}
	if err := g.SetAllPositionsByRatio([]float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}); err != nil {
		log.Fatal(err)
	}
}
