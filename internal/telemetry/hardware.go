package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Channel maps one vital to a 16-bit big-endian register on an I²C device.
// The raw signed register value is multiplied by Scale; results outside
// [Min, Max] are reported as OutOfRange.
type Channel struct {
	Addr     uint16
	Register byte
	Scale    float64
	Min, Max float64
}

// DefaultChannels describes a pulse oximeter at 0x57 exposing heart rate and
// SpO2 in registers 0x01/0x02, and a TMP117 temperature sensor at 0x48
// (7.8125 m°C per LSB).
func DefaultChannels() map[Vital]Channel {
	return map[Vital]Channel{
		HeartRate:   {Addr: 0x57, Register: 0x01, Scale: 1, Min: 20, Max: 250},
		SpO2:        {Addr: 0x57, Register: 0x02, Scale: 1, Min: 50, Max: 100},
		Temperature: {Addr: 0x48, Register: 0x00, Scale: 0.0078125, Min: 25, Max: 45},
	}
}

// Hardware reads vitals from real sensors over I²C.
type Hardware struct {
	bus      i2c.Bus
	channels map[Vital]Channel
}

// NewHardware reads from bus using the given channel map.
// Panics if bus is nil (programmer error).
func NewHardware(bus i2c.Bus, channels map[Vital]Channel) *Hardware {
	if bus == nil {
		panic("telemetry: NewHardware called with nil bus")
	}
	return &Hardware{bus: bus, channels: channels}
}

// OpenHardware initializes the host drivers and opens the named I²C bus
// ("" selects the first available). The caller must close the returned bus.
func OpenHardware(busName string, channels map[Vital]Channel) (*Hardware, i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("telemetry: periph host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: open i2c bus %q: %w", busName, err)
	}
	return NewHardware(bus, channels), bus, nil
}

// Read performs one register read for v. Failures are *SensorFault.
func (h *Hardware) Read(v Vital) (Reading, error) {
	ch, ok := h.channels[v]
	if !ok {
		return Reading{}, &SensorFault{Vital: v, Kind: Unavailable, Err: errors.New("no channel configured")}
	}

	dev := i2c.Dev{Bus: h.bus, Addr: ch.Addr}
	var buf [2]byte
	if err := dev.Tx([]byte{ch.Register}, buf[:]); err != nil {
		return Reading{}, &SensorFault{Vital: v, Kind: Unavailable, Err: err}
	}

	raw := int16(binary.BigEndian.Uint16(buf[:]))
	value := float64(raw) * ch.Scale
	if v.Integral() {
		value = math.Round(value)
	}
	if value < ch.Min || value > ch.Max {
		return Reading{}, &SensorFault{
			Vital: v,
			Kind:  OutOfRange,
			Err:   fmt.Errorf("%v %s not in [%v, %v]", value, v.Unit(), ch.Min, ch.Max),
		}
	}
	return Reading{Vital: v, Value: value}, nil
}

var _ SensorSource = (*Hardware)(nil)
