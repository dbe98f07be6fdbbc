package gatt

import (
	"errors"
	"fmt"
)

// Bracelet GATT UUIDs. Short forms are 16-bit UUIDs on the Bluetooth base.
const (
	IdentityServiceUUID = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"

	HeartRateServiceUUID = "0001"
	HeartRateCharUUID    = "1001"

	SpO2ServiceUUID = "0002"
	SpO2CharUUID    = "2002"

	TemperatureServiceUUID = "0003"
	TemperatureCharUUID    = "3003"
)

// Characteristic widths in bytes.
const (
	HeartRateWidth   = 2
	SpO2Width        = 2
	TemperatureWidth = 4
)

// ErrAdvertising is returned when the schema is registered after advertising began.
var ErrAdvertising = errors.New("gatt: radio is already advertising")

// Schema is the fixed service layout of the bracelet.
type Schema struct {
	Identity    *Service
	HeartRate   *Service
	SpO2        *Service
	Temperature *Service
}

// Build constructs the identity service and the three vitals services,
// each vitals service carrying one readable, notifiable characteristic.
func Build() *Schema {
	return &Schema{
		Identity:    NewService(IdentityServiceUUID),
		HeartRate:   vitalService(HeartRateServiceUUID, HeartRateCharUUID, HeartRateWidth),
		SpO2:        vitalService(SpO2ServiceUUID, SpO2CharUUID, SpO2Width),
		Temperature: vitalService(TemperatureServiceUUID, TemperatureCharUUID, TemperatureWidth),
	}
}

func vitalService(svcUUID, charUUID string, width int) *Service {
	s := NewService(svcUUID)
	// A fresh service is never frozen.
	_ = s.AddCharacteristic(NewCharacteristic(charUUID, width, PermRead|PermNotify))
	return s
}

// Services returns every service in registration order.
func (s *Schema) Services() []*Service {
	return []*Service{s.Identity, s.HeartRate, s.SpO2, s.Temperature}
}

// Registrar accepts services before advertising starts.
type Registrar interface {
	Advertising() bool
	RegisterService(svc *Service) error
}

// Register hands every service to r in the fixed order. It refuses to start
// once r is advertising and stops at the first rejected service.
func Register(r Registrar, s *Schema) error {
	for _, svc := range s.Services() {
		if r.Advertising() {
			return fmt.Errorf("register %s: %w", svc.UUID, ErrAdvertising)
		}
		if err := r.RegisterService(svc); err != nil {
			return fmt.Errorf("register %s: %w", svc.UUID, err)
		}
	}
	return nil
}
