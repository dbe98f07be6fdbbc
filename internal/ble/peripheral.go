package ble

import (
	"fmt"
	"log/slog"

	"github.com/chaz8081/aegis-bracelet/internal/gatt"
)

// State is the lifecycle position of the peripheral.
type State int

const (
	StateUnconfigured State = iota
	StateReady
	StateSchemaRegistered
	StateAdvertising
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateReady:
		return "ready"
	case StateSchemaRegistered:
		return "schema-registered"
	case StateAdvertising:
		return "advertising"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Peripheral enforces the call order Initialize → SetIdentity/RegisterService
// → StartAdvertising → Poll/WriteCharacteristic on top of a Stack.
// It is not safe for concurrent use; the firmware drives it from one loop.
type Peripheral struct {
	stack Stack

	state    State
	identity *gatt.Identity
	services map[string]*gatt.Service
	order    []string

	centrals map[string]bool
}

// NewPeripheral wraps stack. Panics if stack is nil (programmer error).
func NewPeripheral(stack Stack) *Peripheral {
	if stack == nil {
		panic("ble: NewPeripheral called with nil stack")
	}
	return &Peripheral{
		stack:    stack,
		services: make(map[string]*gatt.Service),
		centrals: make(map[string]bool),
	}
}

// State returns the current lifecycle state.
func (p *Peripheral) State() State { return p.state }

// Advertising reports whether StartAdvertising has succeeded.
func (p *Peripheral) Advertising() bool { return p.state == StateAdvertising }

// Connected returns the number of centrals currently connected.
func (p *Peripheral) Connected() int { return len(p.centrals) }

// Services returns the registered services in registration order.
func (p *Peripheral) Services() []*gatt.Service {
	out := make([]*gatt.Service, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.services[id])
	}
	return out
}

// Initialize enables the radio. It must succeed before any other call.
func (p *Peripheral) Initialize() error {
	if p.state != StateUnconfigured {
		return &RadioFault{Op: "initialize", Err: ErrAlreadyInitialized}
	}
	if err := p.stack.Enable(); err != nil {
		return &RadioFault{Op: "initialize", Err: err}
	}
	p.state = StateReady
	slog.Debug("[BLE] radio enabled")
	return nil
}

// SetIdentity records the advertising metadata. It may be called once,
// before advertising.
func (p *Peripheral) SetIdentity(id gatt.Identity) error {
	switch {
	case p.state == StateUnconfigured:
		return &SchemaFault{Err: ErrNotInitialized}
	case p.state == StateAdvertising:
		return &SchemaFault{Err: gatt.ErrAdvertising}
	case p.identity != nil:
		return &SchemaFault{Err: ErrIdentitySet}
	}
	if err := id.Validate(); err != nil {
		return &SchemaFault{Err: err}
	}
	if err := p.stack.Configure(id); err != nil {
		return &RadioFault{Op: "configure advertisement", Err: err}
	}
	data := make([]byte, len(id.ManufacturerData))
	copy(data, id.ManufacturerData)
	id.ManufacturerData = data
	p.identity = &id
	return nil
}

// RegisterService publishes svc and freezes its characteristic set.
func (p *Peripheral) RegisterService(svc *gatt.Service) error {
	switch p.state {
	case StateUnconfigured:
		return &SchemaFault{Service: svc.UUID, Err: ErrNotInitialized}
	case StateAdvertising:
		return &SchemaFault{Service: svc.UUID, Err: gatt.ErrAdvertising}
	}
	if _, ok := p.services[svc.UUID]; ok {
		return &SchemaFault{Service: svc.UUID, Err: ErrDuplicateService}
	}
	if err := p.stack.AddService(svc); err != nil {
		return &SchemaFault{Service: svc.UUID, Err: err}
	}
	svc.Freeze()
	p.services[svc.UUID] = svc
	p.order = append(p.order, svc.UUID)
	p.state = StateSchemaRegistered
	slog.Debug("[BLE] service registered", "uuid", svc.UUID, "characteristics", len(svc.Characteristics()))
	return nil
}

// StartAdvertising begins broadcasting. The identity must be set and its
// advertised service registered.
func (p *Peripheral) StartAdvertising() error {
	switch {
	case p.state == StateUnconfigured:
		return &SchemaFault{Err: ErrNotInitialized}
	case p.state == StateAdvertising:
		return nil
	case p.identity == nil:
		return &SchemaFault{Err: ErrNoIdentity}
	case len(p.services) == 0:
		return &SchemaFault{Err: ErrNoServices}
	}
	if _, ok := p.services[p.identity.Service.UUID]; !ok {
		return &SchemaFault{Service: p.identity.Service.UUID, Err: fmt.Errorf("advertised service not registered")}
	}
	if err := p.stack.StartAdvertising(); err != nil {
		return &RadioFault{Op: "start advertising", Err: err}
	}
	p.state = StateAdvertising
	slog.Info("[BLE] advertising", "name", p.identity.LocalName, "services", len(p.services))
	return nil
}

// Poll services pending connection events. It never blocks.
func (p *Peripheral) Poll() {
	if p.state == StateUnconfigured {
		return
	}
	for _, ev := range p.stack.Poll() {
		if ev.Connected {
			if !p.centrals[ev.Address] {
				p.centrals[ev.Address] = true
				slog.Info("[BLE] central connected", "address", ev.Address, "connected", len(p.centrals))
			}
			continue
		}
		if p.centrals[ev.Address] {
			delete(p.centrals, ev.Address)
			slog.Info("[BLE] central disconnected", "address", ev.Address, "connected", len(p.centrals))
		}
	}
}

// WriteCharacteristic replaces a characteristic value and notifies
// subscribers. data must match the declared width.
func (p *Peripheral) WriteCharacteristic(serviceUUID, charUUID string, data []byte) error {
	fault := func(err error) error {
		return &WriteFault{Service: serviceUUID, Characteristic: charUUID, Err: err}
	}
	if p.state != StateAdvertising {
		return fault(ErrNotAdvertising)
	}
	svc, ok := p.services[serviceUUID]
	if !ok {
		return fault(ErrUnknownCharacteristic)
	}
	char, ok := svc.Characteristic(charUUID)
	if !ok {
		return fault(ErrUnknownCharacteristic)
	}
	if len(data) != char.Width() {
		return fault(fmt.Errorf("%w: want %d bytes, got %d", gatt.ErrWidth, char.Width(), len(data)))
	}
	if err := p.stack.Write(serviceUUID, charUUID, data); err != nil {
		return fault(err)
	}
	// Width already checked.
	_ = char.Set(data)
	return nil
}
