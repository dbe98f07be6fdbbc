// Package telemetry produces vital-sign readings and encodes them into the
// fixed-width characteristic values the bracelet notifies.
package telemetry

import (
	"errors"
	"fmt"
)

// Vital identifies one of the measured signs.
type Vital int

const (
	HeartRate Vital = iota
	SpO2
	Temperature
)

// Vitals lists every vital in update order.
var Vitals = []Vital{HeartRate, SpO2, Temperature}

func (v Vital) String() string {
	switch v {
	case HeartRate:
		return "heart_rate"
	case SpO2:
		return "spo2"
	case Temperature:
		return "temperature"
	default:
		return fmt.Sprintf("vital(%d)", int(v))
	}
}

// Unit returns the implicit unit of the vital's readings.
func (v Vital) Unit() string {
	switch v {
	case HeartRate:
		return "bpm"
	case SpO2:
		return "%"
	case Temperature:
		return "°C"
	default:
		return ""
	}
}

// Integral reports whether readings of v are whole numbers on the wire.
func (v Vital) Integral() bool { return v != Temperature }

// Reading is one sample of one vital. It is not retained after encoding.
type Reading struct {
	Vital Vital
	Value float64
}

// SensorSource yields one reading per vital per update.
type SensorSource interface {
	Read(v Vital) (Reading, error)
}

// FaultKind classifies sensor failures.
type FaultKind int

const (
	// Unavailable means the sensor could not be reached.
	Unavailable FaultKind = iota
	// OutOfRange means the sensor answered with an implausible value.
	OutOfRange
)

func (k FaultKind) String() string {
	switch k {
	case Unavailable:
		return "unavailable"
	case OutOfRange:
		return "out of range"
	default:
		return fmt.Sprintf("fault(%d)", int(k))
	}
}

// ErrUnknownVital is returned for a Vital outside the defined set.
var ErrUnknownVital = errors.New("telemetry: unknown vital")

// SensorFault reports why a vital could not be read. The caller must skip
// the vital for this update instead of writing a substitute.
type SensorFault struct {
	Vital Vital
	Kind  FaultKind
	Err   error
}

func (f *SensorFault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("telemetry: %s sensor %s", f.Vital, f.Kind)
	}
	return fmt.Sprintf("telemetry: %s sensor %s: %v", f.Vital, f.Kind, f.Err)
}

func (f *SensorFault) Unwrap() error { return f.Err }
