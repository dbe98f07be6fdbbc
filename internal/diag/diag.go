// Package diag is the bracelet's diagnostic side channel: the per-update
// summary line and fault reports. Nothing written here affects what the
// radio sends.
package diag

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/chaz8081/aegis-bracelet/internal/telemetry"
)

// Sink receives update summaries and steady-state faults.
type Sink interface {
	Summary(readings map[telemetry.Vital]telemetry.Reading)
	Fault(v telemetry.Vital, err error)
}

// Line formats readings as "Heart: <int> SpO2: <int> Temp: <float>".
// Vitals missing from the map print as "-".
func Line(readings map[telemetry.Vital]telemetry.Reading) string {
	var b strings.Builder
	field := func(label string, v telemetry.Vital, format func(float64) string) {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(label)
		b.WriteString(": ")
		r, ok := readings[v]
		if !ok {
			b.WriteString("-")
			return
		}
		b.WriteString(format(r.Value))
	}
	integer := func(f float64) string { return strconv.FormatInt(int64(f), 10) }
	field("Heart", telemetry.HeartRate, integer)
	field("SpO2", telemetry.SpO2, integer)
	field("Temp", telemetry.Temperature, func(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) })
	return b.String()
}

// LogSink writes to a slog.Logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink backed by logger, or slog.Default() if nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Summary(readings map[telemetry.Vital]telemetry.Reading) {
	s.logger.Info(Line(readings))
}

func (s *LogSink) Fault(v telemetry.Vital, err error) {
	s.logger.Warn("[UPDATE] vital skipped", "vital", v.String(), "error", err)
}

var _ Sink = (*LogSink)(nil)

// ParseLevel maps a config log level to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("diag: unknown log level %q", level)
	}
}

// NewLogger builds a text logger writing to w at the given level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
