//go:build linux || baremetal

package ble

import (
	"fmt"

	"tinygo.org/x/bluetooth"

	"github.com/chaz8081/aegis-bracelet/internal/gatt"
)

// eventQueueSize bounds connection events buffered between polls.
const eventQueueSize = 16

// TinyGoStack drives the radio through tinygo-org/bluetooth. On Linux this
// goes through BlueZ over D-Bus; on bare-metal targets through the
// SoftDevice or HCI.
type TinyGoStack struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement

	// handles is keyed by service UUID then characteristic UUID.
	handles map[string]map[string]*bluetooth.Characteristic
	events  chan ConnEvent
}

// NewTinyGoStack creates a stack on the default adapter.
func NewTinyGoStack() *TinyGoStack {
	return &TinyGoStack{
		adapter: bluetooth.DefaultAdapter,
		handles: make(map[string]map[string]*bluetooth.Characteristic),
		events:  make(chan ConnEvent, eventQueueSize),
	}
}

func (s *TinyGoStack) Enable() error {
	if err := s.adapter.Enable(); err != nil {
		return err
	}

	// The handler runs on the stack's own goroutine (or interrupt on
	// bare metal); events are handed to Poll through the queue.
	s.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		ev := ConnEvent{Address: device.Address.String(), Connected: connected}
		select {
		case s.events <- ev:
		default:
			// Queue full: the next Poll still sees the newest state changes.
		}
	})
	return nil
}

func (s *TinyGoStack) Configure(id gatt.Identity) error {
	svcUUID, err := ParseUUID(id.Service.UUID)
	if err != nil {
		return fmt.Errorf("ble: parse advertised service UUID: %w", err)
	}
	s.adv = s.adapter.DefaultAdvertisement()
	return s.adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    id.LocalName,
		ServiceUUIDs: []bluetooth.UUID{svcUUID},
		ManufacturerData: []bluetooth.ManufacturerDataElement{
			{CompanyID: id.ManufacturerID, Data: id.ManufacturerData},
		},
	})
}

func (s *TinyGoStack) AddService(svc *gatt.Service) error {
	svcUUID, err := ParseUUID(svc.UUID)
	if err != nil {
		return fmt.Errorf("ble: parse service UUID: %w", err)
	}

	chars := svc.Characteristics()
	handles := make(map[string]*bluetooth.Characteristic, len(chars))
	configs := make([]bluetooth.CharacteristicConfig, 0, len(chars))
	for _, c := range chars {
		charUUID, err := ParseUUID(c.UUID)
		if err != nil {
			return fmt.Errorf("ble: parse characteristic UUID: %w", err)
		}
		handle := new(bluetooth.Characteristic)
		handles[c.UUID] = handle
		configs = append(configs, bluetooth.CharacteristicConfig{
			Handle: handle,
			UUID:   charUUID,
			Value:  c.Value(),
			Flags:  flags(c.Perms),
		})
	}

	if err := s.adapter.AddService(&bluetooth.Service{
		UUID:            svcUUID,
		Characteristics: configs,
	}); err != nil {
		return err
	}
	s.handles[svc.UUID] = handles
	return nil
}

func (s *TinyGoStack) StartAdvertising() error {
	if s.adv == nil {
		return fmt.Errorf("ble: advertisement not configured")
	}
	return s.adv.Start()
}

func (s *TinyGoStack) Poll() []ConnEvent {
	var out []ConnEvent
	for {
		select {
		case ev := <-s.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func (s *TinyGoStack) Write(serviceUUID, charUUID string, data []byte) error {
	handle, ok := s.handles[serviceUUID][charUUID]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownCharacteristic, serviceUUID, charUUID)
	}
	n, err := handle.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("ble: short write: %d of %d bytes", n, len(data))
	}
	return nil
}

// Compile-time check that TinyGoStack implements Stack.
var _ Stack = (*TinyGoStack)(nil)

func flags(p gatt.Permission) bluetooth.CharacteristicPermissions {
	var f bluetooth.CharacteristicPermissions
	if p.Has(gatt.PermRead) {
		f |= bluetooth.CharacteristicReadPermission
	}
	if p.Has(gatt.PermNotify) {
		f |= bluetooth.CharacteristicNotifyPermission
	}
	return f
}
