package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/aegis-bracelet/internal/telemetry"
)

// Config holds all application configuration.
type Config struct {
	Device   DeviceConfig  `yaml:"device"`
	Update   UpdateConfig  `yaml:"update"`
	Sensor   SensorConfig  `yaml:"sensor"`
	Monitor  MonitorConfig `yaml:"monitor"`
	LogLevel string        `yaml:"log_level"`
}

// DeviceConfig holds the advertised identity.
type DeviceConfig struct {
	LocalName        string `yaml:"local_name"`
	ManufacturerID   uint16 `yaml:"manufacturer_id"`
	ManufacturerData string `yaml:"manufacturer_data"` // hex encoded
}

// UpdateConfig holds the update loop timing.
type UpdateConfig struct {
	Interval time.Duration `yaml:"interval"`
	Idle     time.Duration `yaml:"idle"` // pause between polls, 0 busy-polls
}

// SensorConfig selects and configures the telemetry source.
type SensorConfig struct {
	Source string    `yaml:"source"` // "simulated" or "hardware"
	Seed   uint64    `yaml:"seed"`   // simulated only, 0 = random
	I2C    I2CConfig `yaml:"i2c"`
}

// I2CConfig maps vitals to I²C registers for the hardware source.
type I2CConfig struct {
	Bus         string        `yaml:"bus"` // empty selects the first bus
	HeartRate   ChannelConfig `yaml:"heart_rate"`
	SpO2        ChannelConfig `yaml:"spo2"`
	Temperature ChannelConfig `yaml:"temperature"`
}

// ChannelConfig describes one register-mapped sensor value.
type ChannelConfig struct {
	Addr     uint16  `yaml:"addr"`
	Register uint8   `yaml:"register"`
	Scale    float64 `yaml:"scale"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
}

// MonitorConfig holds settings for the central-side monitor.
type MonitorConfig struct {
	Device       string        `yaml:"device"` // address to connect to; empty scans
	ScanTimeout  time.Duration `yaml:"scan_timeout"`
	ReconnectMax int           `yaml:"reconnect_max"` // max backoff in seconds
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "aegis-bracelet")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with the bracelet's factory values.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			LocalName:        "AegisBracelet",
			ManufacturerID:   0xFFFF,
			ManufacturerData: "0102",
		},
		Update: UpdateConfig{
			Interval: time.Second,
		},
		Sensor: SensorConfig{
			Source: "simulated",
			I2C: I2CConfig{
				HeartRate:   ChannelConfig{Addr: 0x57, Register: 0x01, Scale: 1, Min: 20, Max: 250},
				SpO2:        ChannelConfig{Addr: 0x57, Register: 0x02, Scale: 1, Min: 50, Max: 100},
				Temperature: ChannelConfig{Addr: 0x48, Register: 0x00, Scale: 0.0078125, Min: 25, Max: 45},
			},
		},
		Monitor: MonitorConfig{
			ScanTimeout:  10 * time.Second,
			ReconnectMax: 30,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.Device.ManufacturerData = strings.TrimPrefix(strings.ToLower(cfg.Device.ManufacturerData), "0x")

	return cfg, nil
}

// ManufacturerBytes decodes the hex manufacturer data.
func (c *Config) ManufacturerBytes() ([]byte, error) {
	b, err := hex.DecodeString(c.Device.ManufacturerData)
	if err != nil {
		return nil, fmt.Errorf("device.manufacturer_data: %w", err)
	}
	return b, nil
}

// SensorChannels returns the I²C channel map for the hardware source.
func (c *Config) SensorChannels() map[telemetry.Vital]telemetry.Channel {
	conv := func(ch ChannelConfig) telemetry.Channel {
		return telemetry.Channel{Addr: ch.Addr, Register: ch.Register, Scale: ch.Scale, Min: ch.Min, Max: ch.Max}
	}
	return map[telemetry.Vital]telemetry.Channel{
		telemetry.HeartRate:   conv(c.Sensor.I2C.HeartRate),
		telemetry.SpO2:        conv(c.Sensor.I2C.SpO2),
		telemetry.Temperature: conv(c.Sensor.I2C.Temperature),
	}
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Device.LocalName == "" {
		return errors.New("device.local_name must not be empty")
	}
	// Advertising packets are 31 bytes; leave room for flags, the
	// 128-bit service UUID and the manufacturer header.
	if len(c.Device.LocalName) > 29 {
		return fmt.Errorf("device.local_name must be at most 29 bytes, got %d", len(c.Device.LocalName))
	}
	data, err := c.ManufacturerBytes()
	if err != nil {
		return err
	}
	if len(data) > 24 {
		return fmt.Errorf("device.manufacturer_data must be at most 24 bytes, got %d", len(data))
	}

	if c.Update.Interval < time.Second {
		return fmt.Errorf("update.interval must be >= 1s, got %s", c.Update.Interval)
	}
	if c.Update.Idle < 0 {
		return fmt.Errorf("update.idle must be >= 0, got %s", c.Update.Idle)
	}

	switch c.Sensor.Source {
	case "simulated":
	case "hardware":
		for name, ch := range map[string]ChannelConfig{
			"heart_rate":  c.Sensor.I2C.HeartRate,
			"spo2":        c.Sensor.I2C.SpO2,
			"temperature": c.Sensor.I2C.Temperature,
		} {
			if ch.Addr == 0 || ch.Addr > 0x7f {
				return fmt.Errorf("sensor.i2c.%s.addr must be a 7-bit address, got %#x", name, ch.Addr)
			}
			if ch.Scale == 0 {
				return fmt.Errorf("sensor.i2c.%s.scale must not be 0", name)
			}
			if ch.Min >= ch.Max {
				return fmt.Errorf("sensor.i2c.%s: min must be below max", name)
			}
		}
	default:
		return fmt.Errorf("sensor.source must be \"simulated\" or \"hardware\", got %q", c.Sensor.Source)
	}

	if c.Monitor.ScanTimeout <= 0 {
		return errors.New("monitor.scan_timeout must be > 0")
	}
	if c.Monitor.ReconnectMax <= 0 {
		return errors.New("monitor.reconnect_max must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

const defaultHeader = `# aegis-bracelet configuration
#
# The GATT schema is fixed in firmware; these settings only change the
# advertised identity, the update cadence and where readings come from.
`

// WriteDefault writes the default config to DefaultConfigPath. It returns
// the written path, or "" if a config file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}
