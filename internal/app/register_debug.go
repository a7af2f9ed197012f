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
	"time"

	"github.com/gorilla/websocket"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/etch_sketch/internal/accel"
	"github.com/relabs-tech/etch_sketch/internal/config"
	"github.com/relabs-tech/etch_sketch/internal/regbus"
)

// registerDevice is what the register console needs from the accelerometer.
type registerDevice interface {
	ReadRegister(reg byte) (byte, error)
	WriteRegister(reg, value byte) error
	ReadAcceleration() (accel.Vector, error)
	Init() error
}

// RegisterResponse is every message sent to the browser.
type RegisterResponse struct {
	Type        string               `json:"type"` // "register_data", "register_map", "status", "error", "export_config"
	Device      string               `json:"device,omitempty"`
	Address     string               `json:"addr,omitempty"`
	Value       string               `json:"value,omitempty"`
	Registers   map[string]string    `json:"registers,omitempty"` // for bulk read
	Timestamp   string               `json:"timestamp,omitempty"`
	Message     string               `json:"message,omitempty"`
	Status      string               `json:"status,omitempty"`
	RegisterMap []accel.RegisterInfo `json:"register_map,omitempty"`
	Config      string               `json:"config,omitempty"`
	Filename    string               `json:"filename,omitempty"`
}

// RegisterCommand is every message received from the browser.
type RegisterCommand struct {
	Action  string `json:"action"` // "get_map", "read", "read_all", "write", "init", "export_config"
	Address string `json:"addr,omitempty"`
	Value   string `json:"value,omitempty"`
}

// RegisterConfigFile is the exported register snapshot.
type RegisterConfigFile struct {
	Version   int               `json:"version"`
	Device    string            `json:"device"`
	Timestamp string            `json:"timestamp"`
	Registers map[string]string `json:"registers"` // hex address -> hex value
}

const registerDevName = "adxl345"

// registerDebug serves the register console for one device. Requests are
// handled one at a time per connection; the bus serializes across connections.
type registerDebug struct {
	dev registerDevice
	now func() time.Time
}

func newRegisterDebug(dev registerDevice) *registerDebug {
	return &registerDebug{dev: dev, now: time.Now}
}

func (d *registerDebug) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", d.handleWS)
	mux.HandleFunc("/api/accel", d.handleAccel)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/register_debug.html")
	})
	return mux
}

// handleWS handles the WebSocket connection for register debugging.
func (d *registerDebug) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("register_debug: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(d.registerMap()); err != nil {
		log.Printf("register_debug: error sending register map: %v", err)
		return
	}

	for {
		var cmd RegisterCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("register_debug: websocket error: %v", err)
			}
			return
		}
		if err := conn.WriteJSON(d.handle(cmd)); err != nil {
			log.Printf("register_debug: websocket write error: %v", err)
			return
		}
	}
}

// handle routes one command to its response.
func (d *registerDebug) handle(cmd RegisterCommand) RegisterResponse {
	switch cmd.Action {
	case "get_map":
		return d.registerMap()
	case "read":
		return d.read(cmd)
	case "read_all":
		return d.readAll()
	case "write":
		return d.write(cmd)
	case "init":
		return d.reinit()
	case "export_config":
		return d.export()
	case "":
		return errorResponse("missing or invalid action field")
	default:
		return errorResponse(fmt.Sprintf("unknown action: %s", cmd.Action))
	}
}

func (d *registerDebug) registerMap() RegisterResponse {
	return RegisterResponse{
		Type:        "register_map",
		Device:      registerDevName,
		RegisterMap: accel.Registers(),
	}
}

func (d *registerDebug) read(cmd RegisterCommand) RegisterResponse {
	addr, err := parseHexByte(cmd.Address)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid address format: %q", cmd.Address))
	}
	value, err := d.dev.ReadRegister(addr)
	if err != nil {
		return errorResponse(fmt.Sprintf("read error: %v", err))
	}
	return RegisterResponse{
		Type:      "register_data",
		Device:    registerDevName,
		Address:   hexByte(addr),
		Value:     hexByte(value),
		Timestamp: d.now().Format(time.RFC3339),
	}
}

func (d *registerDebug) readAll() RegisterResponse {
	regs, err := d.snapshot()
	if err != nil {
		return errorResponse(fmt.Sprintf("read all error: %v", err))
	}
	return RegisterResponse{
		Type:      "register_data",
		Device:    registerDevName,
		Registers: regs,
		Timestamp: d.now().Format(time.RFC3339),
	}
}

func (d *registerDebug) snapshot() (map[string]string, error) {
	regs := make(map[string]string)
	for _, addr := range accel.RegisterAddresses() {
		v, err := d.dev.ReadRegister(addr)
		if err != nil {
			return nil, err
		}
		regs[hexByte(addr)] = hexByte(v)
	}
	return regs, nil
}

func (d *registerDebug) write(cmd RegisterCommand) RegisterResponse {
	addr, err := parseHexByte(cmd.Address)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid address format: %q", cmd.Address))
	}
	value, err := parseHexByte(cmd.Value)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid value format: %q", cmd.Value))
	}
	if !accel.Writable(addr) {
		return errorResponse(fmt.Sprintf("register %s is not writable", hexByte(addr)))
	}
	if err := d.dev.WriteRegister(addr, value); err != nil {
		return errorResponse(fmt.Sprintf("write error: %v", err))
	}
	return RegisterResponse{
		Type:      "register_data",
		Device:    registerDevName,
		Address:   hexByte(addr),
		Value:     hexByte(value),
		Timestamp: d.now().Format(time.RFC3339),
		Message:   "write successful",
	}
}

func (d *registerDebug) reinit() RegisterResponse {
	if err := d.dev.Init(); err != nil {
		return errorResponse(fmt.Sprintf("reinit error: %v", err))
	}
	return RegisterResponse{
		Type:    "status",
		Device:  registerDevName,
		Status:  "initialized",
		Message: "accelerometer reinitialized successfully",
	}
}

func (d *registerDebug) export() RegisterResponse {
	regs, err := d.snapshot()
	if err != nil {
		return errorResponse(fmt.Sprintf("export error: %v", err))
	}
	now := d.now()
	file := RegisterConfigFile{
		Version:   1,
		Device:    registerDevName,
		Timestamp: now.Format(time.RFC3339),
		Registers: regs,
	}
	data, err := json.Marshal(file)
	if err != nil {
		return errorResponse(fmt.Sprintf("export error: %v", err))
	}
	return RegisterResponse{
		Type:     "export_config",
		Device:   registerDevName,
		Message:  "config exported",
		Config:   string(data),
		Filename: fmt.Sprintf("%s_%s_registers.json", registerDevName, now.Format("20060102_150405")),
	}
}

// handleAccel serves one live acceleration reading.
func (d *registerDebug) handleAccel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	v, err := d.dev.ReadAcceleration()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	json.NewEncoder(w).Encode(v)
}

func errorResponse(message string) RegisterResponse {
	return RegisterResponse{Type: "error", Message: message}
}

func parseHexByte(s string) (byte, error) {
	var b byte
	if _, err := fmt.Sscanf(s, "0x%X", &b); err != nil {
		return 0, err
	}
	return b, nil
}

func hexByte(b byte) string {
	return fmt.Sprintf("0x%02X", b)
}

// RunRegisterDebug opens the accelerometer and serves the register console
// until ctx is done. An unidentified device is only a warning here so its
// registers can still be inspected.
func RunRegisterDebug(ctx context.Context, cfg *config.Config) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev := accel.New(regbus.NewI2C(bus, cfg.AccelI2CAddr))
	if err := dev.VerifyIdentity(); err != nil {
		log.Printf("register_debug: warning: %v", err)
	} else {
		log.Printf("register_debug: %s available", dev)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.RegisterDebugPort),
		Handler: newRegisterDebug(dev).routes(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("register debug tool listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
