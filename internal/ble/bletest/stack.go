// Package bletest provides an in-memory ble.Stack for tests.
package bletest

import (
	"sync"

	"github.com/chaz8081/aegis-bracelet/internal/ble"
	"github.com/chaz8081/aegis-bracelet/internal/gatt"
)

// Write is one recorded characteristic write.
type Write struct {
	Service        string
	Characteristic string
	Data           []byte
}

// Stack records every call made to it and fails on demand.
type Stack struct {
	mu sync.Mutex

	// Errors returned by the matching calls. WriteErr is consulted per write.
	EnableErr    error
	ConfigureErr error
	AddErr       map[string]error // keyed by service UUID
	StartErr     error
	WriteErr     func(service, char string) error

	Calls    []string
	Identity *gatt.Identity
	Services []string
	Writes   []Write
	Polls    int

	pending []ble.ConnEvent
}

// NewStack returns a stack on which every call succeeds.
func NewStack() *Stack {
	return &Stack{AddErr: make(map[string]error)}
}

func (s *Stack) record(call string) {
	s.Calls = append(s.Calls, call)
}

func (s *Stack) Enable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("enable")
	return s.EnableErr
}

func (s *Stack) Configure(id gatt.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("configure")
	if s.ConfigureErr != nil {
		return s.ConfigureErr
	}
	s.Identity = &id
	return nil
}

func (s *Stack) AddService(svc *gatt.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("add:" + svc.UUID)
	if err := s.AddErr[svc.UUID]; err != nil {
		return err
	}
	s.Services = append(s.Services, svc.UUID)
	return nil
}

func (s *Stack) StartAdvertising() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("advertise")
	return s.StartErr
}

func (s *Stack) Poll() []ble.ConnEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Polls++
	out := s.pending
	s.pending = nil
	return out
}

func (s *Stack) Write(service, char string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("write:" + char)
	if s.WriteErr != nil {
		if err := s.WriteErr(service, char); err != nil {
			return err
		}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.Writes = append(s.Writes, Write{Service: service, Characteristic: char, Data: cp})
	return nil
}

// SimulateConnection queues a connection event for the next Poll.
func (s *Stack) SimulateConnection(address string, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, ble.ConnEvent{Address: address, Connected: connected})
}

// WritesTo returns the recorded writes to one characteristic.
func (s *Stack) WritesTo(char string) []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Write
	for _, w := range s.Writes {
		if w.Characteristic == char {
			out = append(out, w)
		}
	}
	return out
}

// Compile-time check that Stack implements ble.Stack.
var _ ble.Stack = (*Stack)(nil)
