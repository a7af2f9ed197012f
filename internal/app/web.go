// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/etch_sketch/internal/config"
	"github.com/relabs-tech/etch_sketch/internal/display"
	"github.com/relabs-tech/etch_sketch/internal/mirror"
	"github.com/relabs-tech/etch_sketch/internal/sketch"
	"github.com/relabs-tech/etch_sketch/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// eventHub fans events out to connected websocket clients. Slow clients drop
// events instead of blocking the MQTT callback.
type eventHub struct {
	mu      sync.Mutex
	clients map[chan sketch.Event]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[chan sketch.Event]struct{})}
}

func (h *eventHub) subscribe() chan sketch.Event {
	ch := make(chan sketch.Event, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *eventHub) unsubscribe(ch chan sketch.Event) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *eventHub) broadcast(e sketch.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- e:
		default:
		}
	}
}

// webServer mirrors the sketch canvas from MQTT events.
type webServer struct {
	canvas *mirror.Canvas
	hub    *eventHub
}

func newWebServer(size int, background display.RGB565) *webServer {
	return &webServer{
		canvas: mirror.NewCanvas(size, background),
		hub:    newEventHub(),
	}
}

// apply is the MQTT callback.
func (s *webServer) apply(e sketch.Event) {
	if err := s.canvas.Apply(e); err != nil {
		log.Printf("web: %v", err)
		return
	}
	s.hub.broadcast(e)
}

func (s *webServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/canvas.png", s.handleCanvas)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

func (s *webServer) handleCanvas(w http.ResponseWriter, r *http.Request) {
	caption := s.canvas.Caption()
	if r.URL.Query().Get("caption") == "0" {
		caption = ""
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.canvas.WritePNG(w, caption); err != nil {
		log.Printf("web: png encode error: %v", err)
	}
}

type stateResponse struct {
	Plots  int          `json:"plots"`
	Clears int          `json:"clears"`
	Last   sketch.Event `json:"last"`
}

func (s *webServer) handleState(w http.ResponseWriter, r *http.Request) {
	plots, clears, last := s.canvas.Stats()
	if plots == 0 && clears == 0 {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stateResponse{Plots: plots, Clears: clears, Last: last}); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func (s *webServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	// The reader only notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case e := <-ch:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(e); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}
}

// RunWeb subscribes to the sketch topics and serves the mirrored canvas until
// ctx is done.
func RunWeb(ctx context.Context, cfg *config.Config) error {
	if cfg.MQTTBroker == "" {
		return errors.New("web: MQTT_BROKER is required")
	}

	srv := newWebServer(cfg.DisplaySize, cfg.Background)

	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := telemetry.Subscribe(client, telemetry.Topics{Plot: cfg.TopicPlot, Clear: cfg.TopicClear}, srv.apply); err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler: srv.routes(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	log.Printf("web server listening on %s", httpSrv.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
