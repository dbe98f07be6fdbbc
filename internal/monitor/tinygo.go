package monitor

import (
	"context"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/chaz8081/aegis-bracelet/internal/ble"
)

// TinyGoAdapter drives the host's Bluetooth controller through
// tinygo.org/x/bluetooth. On macOS device addresses are CoreBluetooth
// UUIDs rather than MAC addresses; both are carried as strings.
type TinyGoAdapter struct {
	adapter *bluetooth.Adapter

	// mu protects the maps.
	mu          sync.Mutex
	connections map[string]*tinyGoConnection // keyed by address
	scanned     map[string]bluetooth.Address // addresses seen by Scan
}

// NewTinyGoAdapter returns an adapter over bluetooth.DefaultAdapter.
func NewTinyGoAdapter() *TinyGoAdapter {
	return &TinyGoAdapter{
		adapter:     bluetooth.DefaultAdapter,
		connections: make(map[string]*tinyGoConnection),
		scanned:     make(map[string]bluetooth.Address),
	}
}

func (a *TinyGoAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return err
	}

	// The adapter-level handler is the only disconnect signal the
	// library gives; route it to the matching connection.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		addr := device.Address.String()
		a.mu.Lock()
		conn, ok := a.connections[addr]
		delete(a.connections, addr)
		a.mu.Unlock()
		if ok {
			conn.fireDisconnect()
		}
	})

	return nil
}

func (a *TinyGoAdapter) Scan(ctx context.Context, serviceUUID string) ([]Device, error) {
	uuid, err := ble.ParseUUID(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("monitor: parse service UUID: %w", err)
	}

	var mu sync.Mutex
	var devices []Device
	seen := make(map[string]bool)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			a.adapter.StopScan()
		case <-done:
		}
	}()

	err = a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !result.HasServiceUUID(uuid) {
			return
		}
		addr := result.Address.String()
		mu.Lock()
		defer mu.Unlock()
		if seen[addr] {
			return
		}
		seen[addr] = true
		a.mu.Lock()
		a.scanned[addr] = result.Address
		a.mu.Unlock()
		var ids []uint16
		for _, m := range result.ManufacturerData() {
			ids = append(ids, m.CompanyID)
		}
		devices = append(devices, Device{
			Name:            result.LocalName(),
			Address:         addr,
			RSSI:            int(result.RSSI),
			ManufacturerIDs: ids,
		})
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("monitor: scan: %w", err)
	}
	return devices, nil
}

func (a *TinyGoAdapter) Connect(ctx context.Context, address string) (Connection, error) {
	// Prefer the address as the scan reported it; it carries the
	// random/public type that a parsed string does not.
	a.mu.Lock()
	addr, ok := a.scanned[address]
	a.mu.Unlock()
	if !ok {
		addr.Set(address)
	}

	// Connect blocks with its own timeout and cannot be cancelled, so
	// ctx only bounds how long we wait for it.
	device, err := awaitConnect(ctx,
		func() (bluetooth.Device, error) {
			return a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		},
		func(d bluetooth.Device) { _ = d.Disconnect() },
	)
	if err != nil {
		return nil, fmt.Errorf("monitor: connect to %s: %w", address, err)
	}
	conn := &tinyGoConnection{device: &device}
	a.mu.Lock()
	a.connections[device.Address.String()] = conn
	a.mu.Unlock()
	return conn, nil
}

// Compile-time check that TinyGoAdapter implements Adapter.
var _ Adapter = (*TinyGoAdapter)(nil)

type tinyGoConnection struct {
	device *bluetooth.Device

	mu           sync.Mutex
	disconnectCb func()
}

func (c *tinyGoConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	svcUUID, err := ble.ParseUUID(serviceUUID)
	if err != nil {
		return nil, err
	}
	chUUID, err := ble.ParseUUID(charUUID)
	if err != nil {
		return nil, err
	}

	svcs, err := c.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		return nil, fmt.Errorf("monitor: discover services: %w", err)
	}
	if len(svcs) == 0 {
		return nil, fmt.Errorf("monitor: service %s not found", serviceUUID)
	}

	chars, err := svcs[0].DiscoverCharacteristics([]bluetooth.UUID{chUUID})
	if err != nil {
		return nil, fmt.Errorf("monitor: discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("monitor: characteristic %s not found", charUUID)
	}

	return &tinyGoCharacteristic{char: &chars[0]}, nil
}

func (c *tinyGoConnection) Disconnect() error {
	return c.device.Disconnect()
}

func (c *tinyGoConnection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

func (c *tinyGoConnection) fireDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

type tinyGoCharacteristic struct {
	char *bluetooth.DeviceCharacteristic
}

func (c *tinyGoCharacteristic) Subscribe(cb func([]byte)) error {
	return c.char.EnableNotifications(func(buf []byte) {
		// The buffer is reused by the stack after the callback returns.
		cp := make([]byte, len(buf))
		copy(cp, buf)
		cb(cp)
	})
}
