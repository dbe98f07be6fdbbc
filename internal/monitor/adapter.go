// Package monitor is the central side of the bracelet link: it finds a
// bracelet by its advertised identity service, subscribes to the vitals
// characteristics and decodes every notification back into a reading.
package monitor

import "context"

// Characteristic represents a remote GATT characteristic.
type Characteristic interface {
	// Subscribe registers a callback for notifications on this characteristic.
	Subscribe(callback func(data []byte)) error
}

// Device represents a discovered bracelet.
type Device struct {
	Name            string
	Address         string
	RSSI            int
	ManufacturerIDs []uint16 // company ids found in the advertisement
}

// HasManufacturer reports whether the advertisement carried data for id.
func (d Device) HasManufacturer(id uint16) bool {
	for _, m := range d.ManufacturerIDs {
		if m == id {
			return true
		}
	}
	return false
}

// Connection represents an active link to a bracelet.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the host BLE adapter for testing.
type Adapter interface {
	// Enable powers on the adapter.
	Enable() error
	// Scan discovers peripherals advertising the given service UUID until
	// ctx is done.
	Scan(ctx context.Context, serviceUUID string) ([]Device, error)
	// Connect establishes a connection to the device at address.
	Connect(ctx context.Context, address string) (Connection, error)
}
