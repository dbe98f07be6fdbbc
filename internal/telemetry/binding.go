package telemetry

import "github.com/chaz8081/aegis-bracelet/internal/gatt"

// Binding ties a vital to the characteristic that carries it.
type Binding struct {
	Vital          Vital
	Service        string
	Characteristic string
}

// Bindings returns the bracelet's vitals in update order. The peripheral
// writes and the central subscribes through the same table.
func Bindings() []Binding {
	return []Binding{
		{HeartRate, gatt.HeartRateServiceUUID, gatt.HeartRateCharUUID},
		{SpO2, gatt.SpO2ServiceUUID, gatt.SpO2CharUUID},
		{Temperature, gatt.TemperatureServiceUUID, gatt.TemperatureCharUUID},
	}
}
