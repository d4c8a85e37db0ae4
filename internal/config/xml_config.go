// Package config provides XML-based configuration management for bench deployment.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"SolarControlPanel"`

	// HTTP server configuration
	Server ServerConfig `xml:"Server"`

	// Serial link configuration
	Serial SerialConfig `xml:"Serial"`

	// Traffic log configuration
	Log LogConfig `xml:"Log"`

	// Demo sequence configuration
	Sequences SequencesConfig `xml:"Sequences"`

	// Optional MQTT publisher
	MQTT MQTTConfig `xml:"MQTT"`

	// Security configuration
	Security SecurityConfig `xml:"Security"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
}

// SerialConfig contains serial link settings
type SerialConfig struct {
	DefaultPort     string `xml:"DefaultPort"`
	DefaultBaud     int    `xml:"DefaultBaud"`
	DefaultRevision string `xml:"DefaultRevision"`
	PollIntervalMs  int    `xml:"PollIntervalMs"`
	ReadTimeoutMs   int    `xml:"ReadTimeoutMs"`
	JoinTimeoutMs   int    `xml:"JoinTimeoutMs"`
	ProbeDelayMs    int    `xml:"ConnectProbeDelayMs"`
	AutoConnect     bool   `xml:"AutoConnect"`
}

// LogConfig contains traffic log and capture archive settings
type LogConfig struct {
	RetainedEntries int    `xml:"RetainedEntries"`
	DataDirectory   string `xml:"DataDirectory"`
	ExportDirectory string `xml:"ExportDirectory"`
	EnableArchive   bool   `xml:"EnableArchive"`
}

// SequencesConfig contains demo sequence settings
type SequencesConfig struct {
	Directory string `xml:"Directory"`
}

// MQTTConfig contains the optional telemetry publisher settings
type MQTTConfig struct {
	Enabled        bool   `xml:"Enabled"`
	Broker         string `xml:"Broker"`
	ClientID       string `xml:"ClientID"`
	TopicPrefix    string `xml:"TopicPrefix"`
	QoS            int    `xml:"QoS"`
	ConnectTimeout int    `xml:"ConnectTimeoutSeconds"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	RequireAuth bool   `xml:"RequireAuthentication"`
	AuthToken   string `xml:"AuthToken"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
		},
		Serial: SerialConfig{
			DefaultPort:     "",
			DefaultBaud:     115200,
			DefaultRevision: "v2",
			PollIntervalMs:  10,
			ReadTimeoutMs:   100,
			JoinTimeoutMs:   1000,
			ProbeDelayMs:    1000,
			AutoConnect:     false,
		},
		Log: LogConfig{
			RetainedEntries: 10000,
			DataDirectory:   "./data",
			ExportDirectory: "./data/exports",
			EnableArchive:   false,
		},
		Sequences: SequencesConfig{
			Directory: "./data/sequences",
		},
		MQTT: MQTTConfig{
			Enabled:        false,
			Broker:         "tcp://127.0.0.1:1883",
			ClientID:       "solar-panel",
			TopicPrefix:    "solar",
			QoS:            1,
			ConnectTimeout: 5,
		},
		Security: SecurityConfig{
			RequireAuth: false,
			AuthToken:   "",
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &AppConfig{}
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- SOLAR Control Panel Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR override
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Log.DataDirectory = dataDir
	}

	// SOLAR_SERIAL_PORT override (bench setups with a fixed adapter)
	if port := os.Getenv("SOLAR_SERIAL_PORT"); port != "" {
		c.Serial.DefaultPort = port
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Log.DataDirectory) {
		c.Log.DataDirectory = filepath.Join(configDir, c.Log.DataDirectory)
	}
	if !filepath.IsAbs(c.Log.ExportDirectory) {
		c.Log.ExportDirectory = filepath.Join(configDir, c.Log.ExportDirectory)
	}
	if !filepath.IsAbs(c.Sequences.Directory) {
		c.Sequences.Directory = filepath.Join(configDir, c.Sequences.Directory)
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Log.DataDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// PollInterval returns the reader poll interval, clamped to the 100ms
// responsiveness bound.
func (c *AppConfig) PollInterval() time.Duration {
	ms := c.Serial.PollIntervalMs
	if ms <= 0 {
		ms = 10
	}
	if ms > 100 {
		ms = 100
	}
	return time.Duration(ms) * time.Millisecond
}

// ReadTimeout returns the serial read timeout.
func (c *AppConfig) ReadTimeout() time.Duration {
	ms := c.Serial.ReadTimeoutMs
	if ms <= 0 {
		ms = 100
	}
	return time.Duration(ms) * time.Millisecond
}

// JoinTimeout returns how long Close waits for the reader to exit before
// abandoning it.
func (c *AppConfig) JoinTimeout() time.Duration {
	ms := c.Serial.JoinTimeoutMs
	if ms <= 0 {
		ms = 1000
	}
	return time.Duration(ms) * time.Millisecond
}

// ProbeDelay returns the pause between a successful connect and the automatic
// status request. Zero picks up the session default; a negative setting
// disables the probe entirely.
func (c *AppConfig) ProbeDelay() time.Duration {
	return time.Duration(c.Serial.ProbeDelayMs) * time.Millisecond
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Log.DataDirectory,
		c.Log.ExportDirectory,
		c.Sequences.Directory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
