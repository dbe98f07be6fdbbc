// Package gatt holds the in-memory GATT model of the bracelet: services,
// fixed-width characteristics and the advertised identity. Shapes are fixed
// once a service is registered with the radio; only value buffers change.
package gatt

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrWidth is returned when a value does not match a characteristic's declared width.
	ErrWidth = errors.New("gatt: value width mismatch")
	// ErrFrozen is returned when a registered service is modified.
	ErrFrozen = errors.New("gatt: service is frozen")
)

// Permission is a set of characteristic properties.
type Permission uint8

const (
	PermRead Permission = 1 << iota
	PermNotify
)

// Has reports whether all bits of q are set in p.
func (p Permission) Has(q Permission) bool { return p&q == q }

func (p Permission) String() string {
	var parts []string
	if p.Has(PermRead) {
		parts = append(parts, "read")
	}
	if p.Has(PermNotify) {
		parts = append(parts, "notify")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Characteristic is a single value slot with a fixed byte width.
type Characteristic struct {
	UUID  string
	Perms Permission

	width int
	value []byte
}

// NewCharacteristic declares a zero-valued characteristic of the given width.
func NewCharacteristic(uuid string, width int, perms Permission) *Characteristic {
	if width <= 0 {
		panic(fmt.Sprintf("gatt: characteristic %s declared with width %d", uuid, width))
	}
	return &Characteristic{
		UUID:  uuid,
		Perms: perms,
		width: width,
		value: make([]byte, width),
	}
}

// Width is the declared value size in bytes.
func (c *Characteristic) Width() int { return c.width }

// Value returns a copy of the current value buffer.
func (c *Characteristic) Value() []byte {
	out := make([]byte, len(c.value))
	copy(out, c.value)
	return out
}

// Set overwrites the value buffer. b must be exactly Width() bytes.
func (c *Characteristic) Set(b []byte) error {
	if len(b) != c.width {
		return fmt.Errorf("%w: %s wants %d bytes, got %d", ErrWidth, c.UUID, c.width, len(b))
	}
	copy(c.value, b)
	return nil
}

// Service groups characteristics under one UUID.
type Service struct {
	UUID string

	chars  []*Characteristic
	frozen bool
}

// NewService creates an empty, unfrozen service.
func NewService(uuid string) *Service {
	return &Service{UUID: uuid}
}

// AddCharacteristic appends c in registration order.
func (s *Service) AddCharacteristic(c *Characteristic) error {
	if s.frozen {
		return fmt.Errorf("%w: cannot add %s to %s", ErrFrozen, c.UUID, s.UUID)
	}
	s.chars = append(s.chars, c)
	return nil
}

// Characteristics returns the characteristics in registration order. The
// slice is a copy; use AddCharacteristic to change the set.
func (s *Service) Characteristics() []*Characteristic {
	out := make([]*Characteristic, len(s.chars))
	copy(out, s.chars)
	return out
}

// Characteristic looks up a characteristic by UUID.
func (s *Service) Characteristic(uuid string) (*Characteristic, bool) {
	for _, c := range s.chars {
		if c.UUID == uuid {
			return c, true
		}
	}
	return nil, false
}

// Freeze locks the characteristic set. Called by the radio on registration.
func (s *Service) Freeze() { s.frozen = true }

// Frozen reports whether the service has been registered.
func (s *Service) Frozen() bool { return s.frozen }

// Identity is what the peripheral advertises before any connection.
type Identity struct {
	LocalName        string
	Service          *Service
	ManufacturerID   uint16
	ManufacturerData []byte
}

// Validate checks that the identity can be advertised.
func (id Identity) Validate() error {
	if id.LocalName == "" {
		return errors.New("gatt: identity local name must not be empty")
	}
	if id.Service == nil {
		return errors.New("gatt: identity must advertise a service")
	}
	return nil
}
