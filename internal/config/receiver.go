// Package config loads the FDM receiver configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/netfdm/internal/units"
)

// Defaults match the ArduPilot SITL FlightGear output (127.0.0.1:5503).
const (
	DefaultUDPAddress  = "127.0.0.1:5503"
	DefaultRcvBuf      = 1 << 20
	DefaultLogInterval = time.Minute
	DefaultRefresh     = 100 * time.Millisecond
	DefaultHTTPListen  = ":8082"
	DefaultDBPath      = "fdm_data.db"
	DefaultSerialBaud  = 115200
	DefaultHistorySize = 600
)

// ReceiverConfig is the JSON configuration for cmd/fdm-monitor. Every field
// is optional; the Get* accessors supply defaults for anything omitted, and
// command-line flags override the file.
type ReceiverConfig struct {
	// Ingestion
	UDPAddress   *string `json:"udp_address,omitempty"`
	RcvBuf       *int    `json:"rcv_buf,omitempty"`
	LogInterval  *string `json:"log_interval,omitempty"` // duration string like "60s"
	DebugPackets *int    `json:"debug_packets,omitempty"`
	SerialPort   *string `json:"serial_port,omitempty"`
	SerialBaud   *int    `json:"serial_baud,omitempty"`

	// Forwarding
	ForwardAddress *string `json:"forward_address,omitempty"` // host:port, empty disables

	// Display
	Display    *bool   `json:"display,omitempty"`
	Refresh    *string `json:"refresh,omitempty"` // duration string like "100ms"
	SpeedUnits *string `json:"speed_units,omitempty"`
	Verbose    *bool   `json:"verbose,omitempty"`

	// Recording and monitoring
	Record      *bool   `json:"record,omitempty"`
	DBPath      *string `json:"db_path,omitempty"`
	HTTPListen  *string `json:"http_listen,omitempty"` // empty disables the HTTP server
	HistorySize *int    `json:"history_size,omitempty"`
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// DefaultReceiverConfig returns a config with every field set to its default.
func DefaultReceiverConfig() *ReceiverConfig {
	return &ReceiverConfig{
		UDPAddress:     ptrString(DefaultUDPAddress),
		RcvBuf:         ptrInt(DefaultRcvBuf),
		LogInterval:    ptrString(DefaultLogInterval.String()),
		DebugPackets:   ptrInt(0),
		SerialPort:     ptrString(""),
		SerialBaud:     ptrInt(DefaultSerialBaud),
		ForwardAddress: ptrString(""),
		Display:        ptrBool(true),
		Refresh:        ptrString(DefaultRefresh.String()),
		SpeedUnits:     ptrString(units.KT),
		Verbose:        ptrBool(false),
		Record:         ptrBool(false),
		DBPath:         ptrString(DefaultDBPath),
		HTTPListen:     ptrString(DefaultHTTPListen),
		HistorySize:    ptrInt(DefaultHistorySize),
	}
}

// LoadReceiverConfig loads a ReceiverConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file keep their defaults through the Get* accessors.
func LoadReceiverConfig(path string) (*ReceiverConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ReceiverConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *ReceiverConfig) Validate() error {
	if c.UDPAddress != nil && *c.UDPAddress != "" {
		if _, _, err := net.SplitHostPort(*c.UDPAddress); err != nil {
			return fmt.Errorf("invalid udp_address %q: %w", *c.UDPAddress, err)
		}
	}

	if c.ForwardAddress != nil && *c.ForwardAddress != "" {
		if _, _, err := net.SplitHostPort(*c.ForwardAddress); err != nil {
			return fmt.Errorf("invalid forward_address %q: %w", *c.ForwardAddress, err)
		}
	}

	if c.RcvBuf != nil && *c.RcvBuf < 0 {
		return fmt.Errorf("rcv_buf must be non-negative, got %d", *c.RcvBuf)
	}

	if c.DebugPackets != nil && *c.DebugPackets < 0 {
		return fmt.Errorf("debug_packets must be non-negative, got %d", *c.DebugPackets)
	}

	if c.SerialBaud != nil && *c.SerialBaud <= 0 {
		return fmt.Errorf("serial_baud must be positive, got %d", *c.SerialBaud)
	}

	if c.HistorySize != nil && *c.HistorySize <= 0 {
		return fmt.Errorf("history_size must be positive, got %d", *c.HistorySize)
	}

	if c.LogInterval != nil && *c.LogInterval != "" {
		d, err := time.ParseDuration(*c.LogInterval)
		if err != nil {
			return fmt.Errorf("invalid log_interval '%s': %w", *c.LogInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("log_interval must be positive, got %s", d)
		}
	}

	if c.Refresh != nil && *c.Refresh != "" {
		if _, err := time.ParseDuration(*c.Refresh); err != nil {
			return fmt.Errorf("invalid refresh '%s': %w", *c.Refresh, err)
		}
	}

	if c.SpeedUnits != nil && !units.IsValid(*c.SpeedUnits) {
		return fmt.Errorf("invalid speed_units %q, must be one of: %s", *c.SpeedUnits, units.GetValidUnitsString())
	}

	return nil
}

// GetUDPAddress returns the udp_address value or the default.
func (c *ReceiverConfig) GetUDPAddress() string {
	if c.UDPAddress == nil || *c.UDPAddress == "" {
		return DefaultUDPAddress
	}
	return *c.UDPAddress
}

// GetRcvBuf returns the rcv_buf value or the default.
func (c *ReceiverConfig) GetRcvBuf() int {
	if c.RcvBuf == nil {
		return DefaultRcvBuf
	}
	return *c.RcvBuf
}

// GetLogInterval parses and returns the LogInterval as a time.Duration.
func (c *ReceiverConfig) GetLogInterval() time.Duration {
	if c.LogInterval == nil || *c.LogInterval == "" {
		return DefaultLogInterval
	}
	d, err := time.ParseDuration(*c.LogInterval)
	if err != nil || d <= 0 {
		return DefaultLogInterval // default on parse error
	}
	return d
}

// GetDebugPackets returns the number of initial packets to hex dump.
func (c *ReceiverConfig) GetDebugPackets() int {
	if c.DebugPackets == nil {
		return 0
	}
	return *c.DebugPackets
}

// GetSerialPort returns the serial device path; empty means serial input is off.
func (c *ReceiverConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

// GetSerialBaud returns the serial_baud value or the default.
func (c *ReceiverConfig) GetSerialBaud() int {
	if c.SerialBaud == nil {
		return DefaultSerialBaud
	}
	return *c.SerialBaud
}

// GetForwardAddress returns the forward_address value; empty disables forwarding.
func (c *ReceiverConfig) GetForwardAddress() string {
	if c.ForwardAddress == nil {
		return ""
	}
	return *c.ForwardAddress
}

// GetDisplay returns the display value or the default.
func (c *ReceiverConfig) GetDisplay() bool {
	if c.Display == nil {
		return true
	}
	return *c.Display
}

// GetRefresh parses and returns the display refresh interval.
func (c *ReceiverConfig) GetRefresh() time.Duration {
	if c.Refresh == nil || *c.Refresh == "" {
		return DefaultRefresh
	}
	d, err := time.ParseDuration(*c.Refresh)
	if err != nil {
		return DefaultRefresh
	}
	return d
}

// GetSpeedUnits returns the speed_units value or the default.
func (c *ReceiverConfig) GetSpeedUnits() string {
	if c.SpeedUnits == nil || !units.IsValid(*c.SpeedUnits) {
		return units.KT
	}
	return *c.SpeedUnits
}

// GetVerbose returns the verbose value or the default.
func (c *ReceiverConfig) GetVerbose() bool {
	if c.Verbose == nil {
		return false
	}
	return *c.Verbose
}

// GetRecord returns the record value or the default.
func (c *ReceiverConfig) GetRecord() bool {
	if c.Record == nil {
		return false
	}
	return *c.Record
}

// GetDBPath returns the db_path value or the default.
func (c *ReceiverConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return DefaultDBPath
	}
	return *c.DBPath
}

// GetHTTPListen returns the http_listen value; an explicit empty string
// disables the HTTP server.
func (c *ReceiverConfig) GetHTTPListen() string {
	if c.HTTPListen == nil {
		return DefaultHTTPListen
	}
	return *c.HTTPListen
}

// GetHistorySize returns the history_size value or the default.
func (c *ReceiverConfig) GetHistorySize() int {
	if c.HistorySize == nil || *c.HistorySize <= 0 {
		return DefaultHistorySize
	}
	return *c.HistorySize
}
