// Package scheduler runs the bracelet's cooperative update loop: poll the
// radio on every iteration and, once per interval, read each vital and
// write it to its characteristic.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chaz8081/aegis-bracelet/internal/diag"
	"github.com/chaz8081/aegis-bracelet/internal/telemetry"
)

// DefaultInterval is the update cadence.
const DefaultInterval = time.Second

// Radio is the part of the peripheral the loop drives.
type Radio interface {
	Poll()
	WriteCharacteristic(serviceUUID, charUUID string, data []byte) error
}

// Clock reads the current time. time.Now carries a monotonic reading, so
// differences between its values are immune to wall-clock jumps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Options configures the loop.
type Options struct {
	Interval time.Duration       // minimum time between updates (default 1s)
	Idle     time.Duration       // pause after each iteration; 0 busy-polls
	Clock    Clock               // defaults to the system monotonic clock
	Bindings []telemetry.Binding // defaults to telemetry.Bindings()
}

// Stats counts what the loop has done since it was created.
type Stats struct {
	Iterations uint64
	Updates    uint64
	Writes     uint64
	Faults     uint64
}

// Scheduler owns the last-update timestamp; nothing else reads or writes it.
type Scheduler struct {
	radio  Radio
	source telemetry.SensorSource
	sink   diag.Sink
	opts   Options

	lastUpdate time.Time
	started    bool
	stats      Stats
}

// New creates a scheduler. Panics if any dependency is nil (programmer error).
func New(radio Radio, source telemetry.SensorSource, sink diag.Sink, opts Options) *Scheduler {
	if radio == nil || source == nil || sink == nil {
		panic("scheduler: New called with nil dependency")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Bindings == nil {
		opts.Bindings = telemetry.Bindings()
	}
	return &Scheduler{radio: radio, source: source, sink: sink, opts: opts}
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats { return s.stats }

// Step runs one iteration and reports whether an update happened.
// The first call always updates.
func (s *Scheduler) Step() bool {
	s.stats.Iterations++
	s.radio.Poll()

	now := s.opts.Clock.Now()
	if s.started && now.Sub(s.lastUpdate) < s.opts.Interval {
		return false
	}
	s.lastUpdate = now
	s.started = true
	s.update()
	return true
}

// update writes every bound vital once. A failure skips only that vital.
func (s *Scheduler) update() {
	s.stats.Updates++
	readings := make(map[telemetry.Vital]telemetry.Reading, len(s.opts.Bindings))
	for _, b := range s.opts.Bindings {
		r, err := s.source.Read(b.Vital)
		if err != nil {
			s.fault(b.Vital, err)
			continue
		}
		data, err := telemetry.Encode(r)
		if err != nil {
			s.fault(b.Vital, err)
			continue
		}
		if err := s.radio.WriteCharacteristic(b.Service, b.Characteristic, data); err != nil {
			s.fault(b.Vital, err)
			continue
		}
		s.stats.Writes++
		readings[b.Vital] = r
	}
	s.sink.Summary(readings)
}

func (s *Scheduler) fault(v telemetry.Vital, err error) {
	s.stats.Faults++
	s.sink.Fault(v, err)
}

// Run loops until ctx is cancelled. On the device ctx is never cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("[UPDATE] loop started", "interval", s.opts.Interval, "vitals", len(s.opts.Bindings))
	for {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				slog.Info("[UPDATE] loop stopped", "updates", s.stats.Updates, "faults", s.stats.Faults)
			}
			return err
		}
		s.Step()
		if s.opts.Idle > 0 {
			time.Sleep(s.opts.Idle)
		}
	}
}
