package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrUnencodable is returned when a reading does not fit its wire format.
var ErrUnencodable = errors.New("telemetry: reading cannot be encoded")

// Width returns the encoded size of a vital in bytes.
func Width(v Vital) int {
	if v == Temperature {
		return 4
	}
	return 2
}

// Encode converts r to its characteristic value. Heart rate and SpO2 are
// unsigned 16-bit integers; temperature is an IEEE-754 float32. Both are
// little-endian, the byte order of the bracelet's MCU.
func Encode(r Reading) ([]byte, error) {
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return nil, fmt.Errorf("%w: %s is %v", ErrUnencodable, r.Vital, r.Value)
	}
	switch r.Vital {
	case HeartRate, SpO2:
		n := math.Round(r.Value)
		if n < 0 || n > math.MaxUint16 {
			return nil, fmt.Errorf("%w: %s %v outside uint16", ErrUnencodable, r.Vital, r.Value)
		}
		return binary.LittleEndian.AppendUint16(nil, uint16(n)), nil
	case Temperature:
		if math.Abs(r.Value) > math.MaxFloat32 {
			return nil, fmt.Errorf("%w: %s %v outside float32", ErrUnencodable, r.Vital, r.Value)
		}
		return binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(r.Value))), nil
	default:
		return nil, ErrUnknownVital
	}
}

// Decode parses a characteristic value received from the bracelet.
func Decode(v Vital, b []byte) (Reading, error) {
	if v < HeartRate || v > Temperature {
		return Reading{}, ErrUnknownVital
	}
	if len(b) != Width(v) {
		return Reading{}, fmt.Errorf("telemetry: %s value is %d bytes, want %d", v, len(b), Width(v))
	}
	if v == Temperature {
		f := math.Float32frombits(binary.LittleEndian.Uint32(b))
		return Reading{Vital: v, Value: float64(f)}, nil
	}
	return Reading{Vital: v, Value: float64(binary.LittleEndian.Uint16(b))}, nil
}
