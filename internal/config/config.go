// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package config reads the KEY=VALUE configuration file shared by all binaries.
package config

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/etch_sketch/internal/display"
)

// DefaultPath is used when no -config flag is given.
const DefaultPath = "./sketch_config.txt"

// Config holds all application configuration values.
type Config struct {
	// I2C: accelerometer and ADC share one bus
	I2CBus        string // "" opens the first bus
	AccelI2CAddr  uint16
	ADCI2CAddr    uint16
	ADCChannel    int
	StatusI2CAddr uint16 // SSD1306 status panel, 0 disables it

	// Display
	SPIDevice     string
	DisplayDCPin  string
	DisplayRSTPin string
	DisplayBLPin  string
	DisplaySize   int
	DisplaySPIHz  int64

	// Rotary encoder
	EncoderCLKPin  string
	EncoderDTPin   string
	EncoderReverse bool

	// Loop
	LoopPeriodMS   int
	TiltThreshold  float64 // m/s²
	Foreground     display.RGB565
	Background     display.RGB565
	Simulate       bool
	StatusInterval int // milliseconds

	// MQTT
	MQTTBroker          string // "" disables publishing from the sketch
	MQTTClientIDSketch  string
	MQTTClientIDWeb     string
	MQTTClientIDConsole string
	TopicPlot           string
	TopicClear          string

	// Web Server
	WebServerPort     int
	RegisterDebugPort int
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		AccelI2CAddr: 0x53,
		ADCI2CAddr:   0x48,
		ADCChannel:   0,

		DisplayDCPin:  "GPIO25",
		DisplayRSTPin: "GPIO24",
		DisplayBLPin:  "GPIO18",
		DisplaySize:   240,
		DisplaySPIHz:  40_000_000,

		EncoderCLKPin: "GPIO17",
		EncoderDTPin:  "GPIO27",

		LoopPeriodMS:   20,
		TiltThreshold:  -5,
		Foreground:     display.PhosphorBright,
		Background:     display.Black,
		StatusInterval: 500,

		MQTTClientIDSketch:  "etch-sketch",
		MQTTClientIDWeb:     "etch-sketch-web",
		MQTTClientIDConsole: "etch-sketch-console",
		TopicPlot:           "sketch/plot",
		TopicClear:          "sketch/clear",

		WebServerPort:     8080,
		RegisterDebugPort: 8081,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default and validates the result.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		if err := cfg.setValue(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// I2C
	case "I2C_BUS":
		c.I2CBus = value
	case "ACCEL_I2C_ADDR":
		c.AccelI2CAddr, err = parseAddr(key, value)
	case "ADC_I2C_ADDR":
		c.ADCI2CAddr, err = parseAddr(key, value)
	case "ADC_CHANNEL":
		c.ADCChannel, err = parseInt(key, value, 0, 3)
	case "STATUS_DISPLAY_I2C_ADDR":
		c.StatusI2CAddr, err = parseAddr(key, value)

	// Display
	case "SPI_DEVICE":
		c.SPIDevice = value
	case "DISPLAY_DC_PIN":
		c.DisplayDCPin = value
	case "DISPLAY_RST_PIN":
		c.DisplayRSTPin = value
	case "DISPLAY_BL_PIN":
		c.DisplayBLPin = value
	case "DISPLAY_SIZE":
		c.DisplaySize, err = parseInt(key, value, 1, 240)
	case "DISPLAY_SPI_HZ":
		hz, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid DISPLAY_SPI_HZ %q: %w", value, perr)
		}
		if hz <= 0 || hz > 100_000_000 {
			return fmt.Errorf("DISPLAY_SPI_HZ must be 1-100000000, got %d", hz)
		}
		c.DisplaySPIHz = hz

	// Rotary encoder
	case "ENCODER_CLK_PIN":
		c.EncoderCLKPin = value
	case "ENCODER_DT_PIN":
		c.EncoderDTPin = value
	case "ENCODER_REVERSE":
		c.EncoderReverse, err = parseBool(key, value)

	// Loop
	case "LOOP_PERIOD_MS":
		c.LoopPeriodMS, err = parseInt(key, value, 1, 10_000)
	case "TILT_THRESHOLD":
		t, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return fmt.Errorf("invalid TILT_THRESHOLD %q: %w", value, perr)
		}
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("TILT_THRESHOLD must be a finite number, got %q", value)
		}
		c.TiltThreshold = t
	case "FOREGROUND_RGB":
		c.Foreground, err = parseRGB(key, value)
	case "BACKGROUND_RGB":
		c.Background, err = parseRGB(key, value)
	case "SIMULATE":
		c.Simulate, err = parseBool(key, value)
	case "STATUS_UPDATE_INTERVAL":
		c.StatusInterval, err = parseInt(key, value, 50, 60_000)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_SKETCH":
		c.MQTTClientIDSketch = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "TOPIC_PLOT":
		c.TopicPlot = value
	case "TOPIC_CLEAR":
		c.TopicClear = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1, 65535)
	case "REGISTER_DEBUG_PORT":
		c.RegisterDebugPort, err = parseInt(key, value, 1, 65535)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func parseAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("%s must be a 7-bit address, got 0x%X", key, addr)
	}
	return uint16(addr), nil
}

func parseInt(key, value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, v)
	}
	return v, nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

// parseRGB accepts "r,g,b" with 8-bit channels.
func parseRGB(key, value string) (display.RGB565, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%s must be r,g,b, got %q", key, value)
	}
	var ch [3]uint8
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid %s channel %q: %w", key, p, err)
		}
		ch[i] = uint8(v)
	}
	return display.Color565(ch[0], ch[1], ch[2]), nil
}

// validate checks the cross-field constraints.
func (c *Config) validate() error {
	if c.AccelI2CAddr == c.ADCI2CAddr {
		return fmt.Errorf("ACCEL_I2C_ADDR and ADC_I2C_ADDR are both 0x%02X", c.AccelI2CAddr)
	}
	if c.StatusI2CAddr != 0 && (c.StatusI2CAddr == c.AccelI2CAddr || c.StatusI2CAddr == c.ADCI2CAddr) {
		return fmt.Errorf("STATUS_DISPLAY_I2C_ADDR 0x%02X collides with a sensor", c.StatusI2CAddr)
	}
	if !c.Simulate {
		if c.DisplayDCPin == "" {
			return fmt.Errorf("DISPLAY_DC_PIN is required")
		}
		if c.EncoderCLKPin == "" || c.EncoderDTPin == "" {
			return fmt.Errorf("ENCODER_CLK_PIN and ENCODER_DT_PIN are required")
		}
	}
	if c.TopicPlot == "" || c.TopicClear == "" {
		return fmt.Errorf("TOPIC_PLOT and TOPIC_CLEAR are required")
	}
	if c.TopicPlot == c.TopicClear {
		return fmt.Errorf("TOPIC_PLOT and TOPIC_CLEAR must differ")
	}
	return nil
}

// LoopPeriod returns LOOP_PERIOD_MS as a duration.
func (c *Config) LoopPeriod() time.Duration {
	return time.Duration(c.LoopPeriodMS) * time.Millisecond
}
