// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Guided offset calibration for the ADXL345: the device lies flat and the
// OFSX/OFSY/OFSZ registers are programmed so it reads (0, 0, 1g). The result
// is stored as JSON under ./calibration/.
//
// Run:
//
//	go run ./cmd/calibration
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/etch_sketch/internal/app"
	"github.com/relabs-tech/etch_sketch/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to configuration file")
	outDir := flag.String("out", "calibration", "directory for the calibration result")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunCalibration(ctx, cfg, os.Stdin, os.Stdout, *outDir); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
