// Package ble is the peripheral side of the bracelet's radio. It wraps an
// opaque BLE stack behind a state machine that keeps the GATT schema frozen
// once advertising starts, and classifies every failure as a radio, schema
// or write fault.
package ble

import "github.com/chaz8081/aegis-bracelet/internal/gatt"

// ConnEvent is a connection state change observed by the stack.
type ConnEvent struct {
	Address   string
	Connected bool
}

// Stack abstracts the BLE hardware stack for testing.
type Stack interface {
	// Enable powers on the radio.
	Enable() error
	// Configure sets the advertised name, service and manufacturer data.
	Configure(id gatt.Identity) error
	// AddService publishes a service and its characteristics.
	AddService(svc *gatt.Service) error
	// StartAdvertising begins broadcasting the configured identity.
	StartAdvertising() error
	// Poll returns pending connection events without blocking.
	Poll() []ConnEvent
	// Write sets a characteristic value and notifies subscribed centrals.
	Write(serviceUUID, charUUID string, data []byte) error
}
