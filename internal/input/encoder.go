// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package input

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// edgeTimeout bounds each wait so Close is noticed.
const edgeTimeout = 100 * time.Millisecond

// Encoder reads a rotary encoder on two GPIO inputs. Edge handling runs on
// internal goroutines; callers only see CurrentAngle.
type Encoder struct {
	clk, dt gpio.PinIn

	mu      sync.Mutex // guards dec and counter
	dec     Quadrature
	counter *Counter

	value atomic.Int32

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewEncoder configures clk and dt as pull-up inputs with both-edge
// detection and starts watching them.
func NewEncoder(clk, dt gpio.PinIn, counter *Counter) (*Encoder, error) {
	for _, p := range []gpio.PinIn{clk, dt} {
		if err := p.In(gpio.PullUp, gpio.BothEdges); err != nil {
			return nil, fmt.Errorf("input: configure encoder pin %s: %w", p, err)
		}
	}
	e := newEncoder(clk, dt, counter)
	e.wg.Add(2)
	go e.watch(clk)
	go e.watch(dt)
	log.Printf("encoder: watching clk=%s dt=%s", clk, dt)
	return e, nil
}

func newEncoder(clk, dt gpio.PinIn, counter *Counter) *Encoder {
	e := &Encoder{
		clk:     clk,
		dt:      dt,
		counter: counter,
		done:    make(chan struct{}),
	}
	e.value.Store(int32(counter.Value()))
	return e
}

func (e *Encoder) watch(p gpio.PinIn) {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			return
		default:
		}
		if p.WaitForEdge(edgeTimeout) {
			e.sample()
		}
	}
}

// sample reads both pins and advances the counter on a completed detent.
func (e *Encoder) sample() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if step := e.dec.Update(e.clk.Read(), e.dt.Read()); step != 0 {
		e.value.Store(int32(e.counter.Step(step)))
	}
}

// CurrentAngle returns the latest bounded counter value.
func (e *Encoder) CurrentAngle() int {
	return int(e.value.Load())
}

// Close stops the edge watchers and releases the pins.
func (e *Encoder) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.done)
		e.wg.Wait()
		for _, p := range []gpio.PinIn{e.clk, e.dt} {
			if herr := p.Halt(); herr != nil && err == nil {
				err = fmt.Errorf("input: halt encoder pin %s: %w", p, herr)
			}
		}
	})
	return err
}
