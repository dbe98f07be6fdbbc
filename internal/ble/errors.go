package ble

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized        = errors.New("ble: radio not initialized")
	ErrAlreadyInitialized    = errors.New("ble: radio already initialized")
	ErrIdentitySet           = errors.New("ble: identity already set")
	ErrNoIdentity            = errors.New("ble: identity not set")
	ErrNoServices            = errors.New("ble: no services registered")
	ErrDuplicateService      = errors.New("ble: service already registered")
	ErrNotAdvertising        = errors.New("ble: radio is not advertising")
	ErrUnknownCharacteristic = errors.New("ble: unknown characteristic")
)

// RadioFault is an initialization or advertising failure. It is fatal for
// the current boot.
type RadioFault struct {
	Op  string
	Err error
}

func (f *RadioFault) Error() string { return fmt.Sprintf("ble: radio fault during %s: %v", f.Op, f.Err) }
func (f *RadioFault) Unwrap() error { return f.Err }

// SchemaFault is a schema change attempted out of order. It is a programmer
// error and aborts startup.
type SchemaFault struct {
	Service string
	Err     error
}

func (f *SchemaFault) Error() string {
	if f.Service == "" {
		return fmt.Sprintf("ble: schema fault: %v", f.Err)
	}
	return fmt.Sprintf("ble: schema fault on service %s: %v", f.Service, f.Err)
}
func (f *SchemaFault) Unwrap() error { return f.Err }

// WriteFault is a failed characteristic write. It only affects one value in
// one update window.
type WriteFault struct {
	Service        string
	Characteristic string
	Err            error
}

func (f *WriteFault) Error() string {
	return fmt.Sprintf("ble: write %s/%s: %v", f.Service, f.Characteristic, f.Err)
}
func (f *WriteFault) Unwrap() error { return f.Err }
