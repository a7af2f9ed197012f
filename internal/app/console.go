// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/relabs-tech/etch_sketch/internal/config"
	"github.com/relabs-tech/etch_sketch/internal/sketch"
	"github.com/relabs-tech/etch_sketch/internal/telemetry"
)

// RunConsole prints every published plot and clear to out until ctx is done.
func RunConsole(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if cfg.MQTTBroker == "" {
		return errors.New("console: MQTT_BROKER is required")
	}

	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	var mu sync.Mutex
	show := func(e sketch.Event) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(out, formatEvent(e))
	}
	if err := telemetry.Subscribe(client, telemetry.Topics{Plot: cfg.TopicPlot, Clear: cfg.TopicClear}, show); err != nil {
		client.Disconnect(250)
		return err
	}

	<-ctx.Done()

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func formatEvent(e sketch.Event) string {
	ts := e.Time.Format("15:04:05.000")
	switch e.Kind {
	case sketch.KindPlot:
		return fmt.Sprintf("%s [PLOT ] angle=%3d radius=%4.2f -> (%3d,%3d) color=0x%04X",
			ts, e.Angle, e.Radius, e.X, e.Y, e.Color)
	case sketch.KindClear:
		return fmt.Sprintf("%s [CLEAR] z=%6.2f m/s² color=0x%04X", ts, e.AccelZ, e.Color)
	default:
		return fmt.Sprintf("%s [%s]", ts, e.Kind)
	}
}
