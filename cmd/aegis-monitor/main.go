package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/chaz8081/aegis-bracelet/internal/config"
	"github.com/chaz8081/aegis-bracelet/internal/diag"
	"github.com/chaz8081/aegis-bracelet/internal/monitor"
	"github.com/chaz8081/aegis-bracelet/internal/telemetry"
)

// CLI is the command line of the bracelet monitor.
type CLI struct {
	Config      string        `help:"Path to config file (default: ~/.config/aegis-bracelet/config.yaml)" type:"path"`
	Device      string        `help:"Bracelet address to connect to; scans when empty"`
	ScanTimeout time.Duration `name:"scan-timeout" help:"How long to scan for bracelets"`
	AnyMaker    bool          `name:"any-maker" help:"Accept bracelets with any manufacturer id"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("aegis-monitor"),
		kong.Description("Subscribe to a bracelet and print its vitals."),
		kong.UsageOnError(),
	)

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		fatal("config", err)
	}
	if cli.Device != "" {
		cfg.Monitor.Device = cli.Device
	}
	if cli.ScanTimeout > 0 {
		cfg.Monitor.ScanTimeout = cli.ScanTimeout
	}
	if err := cfg.Validate(); err != nil {
		fatal("config validation", err)
	}

	level, _ := diag.ParseLevel(cfg.LogLevel)
	logger := diag.NewLogger(os.Stderr, level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var m *monitor.Monitor
	m = monitor.New(monitor.NewTinyGoAdapter(), monitor.Options{
		ScanTimeout:        cfg.Monitor.ScanTimeout,
		ReconnectMax:       cfg.Monitor.ReconnectMax,
		ManufacturerID:     cfg.Device.ManufacturerID,
		FilterManufacturer: !cli.AnyMaker,
	}, func(r telemetry.Reading) {
		slog.Debug("[BLE] notification", "vital", r.Vital.String(), "value", r.Value)
		fmt.Println(diag.Line(m.Latest()))
	})

	address := cfg.Monitor.Device
	if address == "" {
		slog.Info("[BLE] scanning", "timeout", cfg.Monitor.ScanTimeout)
		devices, err := m.Discover(ctx)
		if err != nil {
			fatal("scan", err)
		}
		best, ok := monitor.Strongest(devices)
		if !ok {
			fatal("scan", fmt.Errorf("no bracelet found within %s", cfg.Monitor.ScanTimeout))
		}
		slog.Info("[BLE] found bracelet", "name", best.Name, "address", best.Address, "rssi", best.RSSI)
		address = best.Address
	}

	if err := m.Connect(ctx, address); err != nil {
		fatal("connect", err)
	}

	<-ctx.Done()
	slog.Info("Shutting down...")
	if err := m.Close(); err != nil {
		slog.Warn("[BLE] disconnect failed", "error", err)
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		return config.Load(defaultPath)
	}
	return config.Default(), nil
}

func fatal(what string, err error) {
	slog.Error(what, "error", err)
	os.Exit(1)
}
