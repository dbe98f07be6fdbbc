//go:build !linux && !baremetal

package ble

import (
	"errors"

	"github.com/chaz8081/aegis-bracelet/internal/gatt"
)

// ErrUnsupported is returned on hosts whose tinygo bluetooth backend cannot
// act as a GATT server.
var ErrUnsupported = errors.New("ble: peripheral role not supported on this platform")

// TinyGoStack is a placeholder on platforms without peripheral support.
// Enable fails, so the firmware stops at initialization with a RadioFault.
type TinyGoStack struct{}

// NewTinyGoStack returns the placeholder stack.
func NewTinyGoStack() *TinyGoStack { return &TinyGoStack{} }

func (s *TinyGoStack) Enable() error { return ErrUnsupported }
func (s *TinyGoStack) Configure(gatt.Identity) error { return ErrUnsupported }
func (s *TinyGoStack) AddService(*gatt.Service) error { return ErrUnsupported }
func (s *TinyGoStack) StartAdvertising() error { return ErrUnsupported }
func (s *TinyGoStack) Poll() []ConnEvent { return nil }
func (s *TinyGoStack) Write(string, string, []byte) error { return ErrUnsupported }

var _ Stack = (*TinyGoStack)(nil)
