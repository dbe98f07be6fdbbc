// Package firmware boots the bracelet: bring up the radio, publish the
// fixed GATT schema, start advertising and hand over to the update loop.
package firmware

import (
	"context"
	"log/slog"

	"github.com/chaz8081/aegis-bracelet/internal/ble"
	"github.com/chaz8081/aegis-bracelet/internal/diag"
	"github.com/chaz8081/aegis-bracelet/internal/gatt"
	"github.com/chaz8081/aegis-bracelet/internal/scheduler"
	"github.com/chaz8081/aegis-bracelet/internal/telemetry"
)

// Options holds the advertised identity and the loop settings.
type Options struct {
	LocalName        string
	ManufacturerID   uint16
	ManufacturerData []byte
	Scheduler        scheduler.Options
}

// Firmware owns the peripheral and the scheduler built on top of it.
type Firmware struct {
	peripheral *ble.Peripheral
	schema     *gatt.Schema
	source     telemetry.SensorSource
	sink       diag.Sink
	opts       Options

	sched *scheduler.Scheduler
}

// New wires the firmware to a radio stack. Panics if any dependency is nil.
func New(stack ble.Stack, source telemetry.SensorSource, sink diag.Sink, opts Options) *Firmware {
	if stack == nil || source == nil || sink == nil {
		panic("firmware: New called with nil dependency")
	}
	return &Firmware{
		peripheral: ble.NewPeripheral(stack),
		schema:     gatt.Build(),
		source:     source,
		sink:       sink,
		opts:       opts,
	}
}

// Peripheral exposes the underlying peripheral for status reporting.
func (f *Firmware) Peripheral() *ble.Peripheral { return f.peripheral }

// Setup brings the radio from power-on to advertising. The first fault
// aborts setup and is returned as-is (*ble.RadioFault or *ble.SchemaFault).
func (f *Firmware) Setup() error {
	if err := f.peripheral.Initialize(); err != nil {
		return err
	}
	id := gatt.Identity{
		LocalName:        f.opts.LocalName,
		Service:          f.schema.Identity,
		ManufacturerID:   f.opts.ManufacturerID,
		ManufacturerData: f.opts.ManufacturerData,
	}
	if err := f.peripheral.SetIdentity(id); err != nil {
		return err
	}
	if err := gatt.Register(f.peripheral, f.schema); err != nil {
		return err
	}
	if err := f.peripheral.StartAdvertising(); err != nil {
		return err
	}
	f.sched = scheduler.New(f.peripheral, f.source, f.sink, f.opts.Scheduler)
	return nil
}

// Run performs Setup and then runs the update loop until ctx is done.
// A setup fault is returned before the loop starts.
func (f *Firmware) Run(ctx context.Context) error {
	if err := f.Setup(); err != nil {
		slog.Error("[BLE] setup failed", "error", err)
		return err
	}
	return f.sched.Run(ctx)
}

// Stats returns the loop counters, or zero before Setup succeeds.
func (f *Firmware) Stats() scheduler.Stats {
	if f.sched == nil {
		return scheduler.Stats{}
	}
	return f.sched.Stats()
}
