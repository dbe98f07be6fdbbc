package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/chaz8081/aegis-bracelet/internal/ble"
	"github.com/chaz8081/aegis-bracelet/internal/config"
	"github.com/chaz8081/aegis-bracelet/internal/diag"
	"github.com/chaz8081/aegis-bracelet/internal/firmware"
	"github.com/chaz8081/aegis-bracelet/internal/scheduler"
	"github.com/chaz8081/aegis-bracelet/internal/telemetry"
)

// CLI is the command line of the bracelet firmware.
type CLI struct {
	Config     string `help:"Path to config file (default: ~/.config/aegis-bracelet/config.yaml)" type:"path"`
	LogLevel   string `name:"log-level" help:"Override log_level from the config (debug, info, warn, error)"`
	InitConfig bool   `name:"init-config" help:"Write the default config file and exit"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("aegis-bracelet"),
		kong.Description("Advertise heart rate, SpO2 and temperature over BLE."),
		kong.UsageOnError(),
	)

	if cli.InitConfig {
		path, err := config.WriteDefault()
		if err != nil {
			fatal("init config", err)
		}
		if path == "" {
			fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
			return
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return
	}

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		fatal("config", err)
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		fatal("config validation", err)
	}

	level, _ := diag.ParseLevel(cfg.LogLevel)
	logger := diag.NewLogger(os.Stderr, level)
	slog.SetDefault(logger)

	printBanner(cfg)

	source, closer, err := openSource(cfg)
	if err != nil {
		fatal("sensor", err)
	}
	defer closer.Close()

	data, _ := cfg.ManufacturerBytes()
	fw := firmware.New(ble.NewTinyGoStack(), source, diag.NewLogSink(logger), firmware.Options{
		LocalName:        cfg.Device.LocalName,
		ManufacturerID:   cfg.Device.ManufacturerID,
		ManufacturerData: data,
		Scheduler: scheduler.Options{
			Interval: cfg.Update.Interval,
			Idle:     cfg.Update.Idle,
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = fw.Run(ctx)
	if errors.Is(err, context.Canceled) {
		stats := fw.Stats()
		slog.Info("Goodbye!", "updates", stats.Updates, "writes", stats.Writes, "faults", stats.Faults)
		return
	}
	// A setup fault leaves the radio unusable; exit so the supervisor can
	// decide whether to restart.
	closer.Close()
	fatal("firmware", err)
}

// openSource builds the configured telemetry source. The returned closer
// releases the I²C bus for the hardware source.
func openSource(cfg *config.Config) (telemetry.SensorSource, io.Closer, error) {
	if cfg.Sensor.Source == "hardware" {
		hw, bus, err := telemetry.OpenHardware(cfg.Sensor.I2C.Bus, cfg.SensorChannels())
		if err != nil {
			return nil, nil, err
		}
		slog.Info("[SENSOR] hardware source ready", "bus", bus.String())
		return hw, bus, nil
	}
	slog.Info("[SENSOR] simulated source ready", "seed", cfg.Sensor.Seed)
	return telemetry.NewSimulated(cfg.Sensor.Seed), nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		slog.Info("Config loaded", "path", defaultPath)
		return cfg, nil
	}

	slog.Info("No config file found, using defaults")
	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== aegis-bracelet ===")
	fmt.Printf("  Name:      %s\n", cfg.Device.LocalName)
	fmt.Printf("  Maker:     %#04x [%s]\n", cfg.Device.ManufacturerID, cfg.Device.ManufacturerData)
	fmt.Printf("  Interval:  %s\n", cfg.Update.Interval)
	fmt.Printf("  Sensors:   %s\n", cfg.Sensor.Source)
	fmt.Printf("  Log:       %s\n", cfg.LogLevel)
	fmt.Println("======================")
}

func fatal(what string, err error) {
	slog.Error(what, "error", err)
	os.Exit(1)
}
