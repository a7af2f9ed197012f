// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/etch_sketch/internal/app"
	"github.com/relabs-tech/etch_sketch/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to configuration file")
	simulate := flag.Bool("simulate", false, "run with simulated peripherals")
	flag.Parse()

	log.Println("starting etch-sketch (encoder + pot + accel -> round display)")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *simulate {
		cfg.Simulate = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunSketch(ctx, cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
