package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/aegis-bracelet/internal/gatt"
	"github.com/chaz8081/aegis-bracelet/internal/telemetry"
)

// ErrClosed is returned once the monitor has been closed.
var ErrClosed = errors.New("monitor: closed")

// Options configures discovery and reconnection.
type Options struct {
	ScanTimeout  time.Duration // bounds scanning and each connect attempt
	ReconnectMax int           // max reconnect backoff in seconds

	// When FilterManufacturer is set, Discover drops devices whose
	// advertisement carries no data for ManufacturerID.
	ManufacturerID     uint16
	FilterManufacturer bool
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		ScanTimeout:  10 * time.Second,
		ReconnectMax: 30,
	}
}

// Monitor holds one subscription to a bracelet and keeps it alive across
// disconnects. Safe for concurrent use.
type Monitor struct {
	adapter   Adapter
	opts      Options
	onReading func(telemetry.Reading)
	sleep     func(time.Duration)

	mu        sync.Mutex
	address   string
	conn      Connection
	connected bool
	closed    bool
	latest    map[telemetry.Vital]telemetry.Reading
}

// New creates a monitor. onReading is called for every decoded
// notification and may be nil. Panics if adapter is nil.
func New(adapter Adapter, opts Options, onReading func(telemetry.Reading)) *Monitor {
	if adapter == nil {
		panic("monitor: New called with nil adapter")
	}
	def := DefaultOptions()
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = def.ScanTimeout
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = def.ReconnectMax
	}
	return &Monitor{
		adapter:   adapter,
		opts:      opts,
		onReading: onReading,
		sleep:     time.Sleep,
		latest:    make(map[telemetry.Vital]telemetry.Reading),
	}
}

// Discover enables the adapter and scans for bracelets advertising the
// identity service.
func (m *Monitor) Discover(ctx context.Context) ([]Device, error) {
	if err := m.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("monitor: enable adapter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.ScanTimeout)
	defer cancel()

	devices, err := m.adapter.Scan(ctx, gatt.IdentityServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("monitor: scan: %w", err)
	}
	if !m.opts.FilterManufacturer {
		return devices, nil
	}
	out := devices[:0:0]
	for _, d := range devices {
		if d.HasManufacturer(m.opts.ManufacturerID) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Strongest returns the device with the best signal.
func Strongest(devices []Device) (Device, bool) {
	if len(devices) == 0 {
		return Device{}, false
	}
	best := devices[0]
	for _, d := range devices[1:] {
		if d.RSSI > best.RSSI {
			best = d
		}
	}
	return best, true
}

// Connect enables the adapter, connects to address and subscribes to
// every vital. Later disconnects trigger a background reconnect.
func (m *Monitor) Connect(ctx context.Context, address string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.address = address
	m.mu.Unlock()

	if err := m.adapter.Enable(); err != nil {
		return fmt.Errorf("monitor: enable adapter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.ScanTimeout)
	defer cancel()

	conn, err := m.adapter.Connect(ctx, address)
	if err != nil {
		return fmt.Errorf("monitor: connect to %s: %w", address, err)
	}
	if err := m.attach(conn); err != nil {
		_ = conn.Disconnect()
		return err
	}

	slog.Info("[BLE] connected", "address", address)
	return nil
}

// attach subscribes to the vitals on conn and marks the monitor connected.
func (m *Monitor) attach(conn Connection) error {
	for _, b := range telemetry.Bindings() {
		char, err := conn.DiscoverCharacteristic(b.Service, b.Characteristic)
		if err != nil {
			return fmt.Errorf("monitor: discover %s: %w", b.Vital, err)
		}
		vital := b.Vital
		if err := char.Subscribe(func(data []byte) { m.handle(vital, data) }); err != nil {
			return fmt.Errorf("monitor: subscribe %s: %w", b.Vital, err)
		}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.conn = conn
	m.connected = true
	m.mu.Unlock()

	conn.OnDisconnect(func() {
		slog.Warn("[BLE] disconnected, reconnecting...")
		if m.setDisconnected() {
			go m.reconnectLoop()
		}
	})
	return nil
}

// handle decodes one notification. Malformed payloads are logged and
// dropped.
func (m *Monitor) handle(v telemetry.Vital, data []byte) {
	r, err := telemetry.Decode(v, data)
	if err != nil {
		slog.Warn("[BLE] dropping notification", "vital", v.String(), "error", err)
		return
	}
	m.mu.Lock()
	m.latest[v] = r
	cb := m.onReading
	m.mu.Unlock()
	if cb != nil {
		cb(r)
	}
}

// setDisconnected clears the connection and reports whether a reconnect
// should follow.
func (m *Monitor) setDisconnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	m.conn = nil
	return !m.closed
}

// Connected reports whether a bracelet is currently subscribed.
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Latest returns the most recent reading per vital.
func (m *Monitor) Latest() map[telemetry.Vital]telemetry.Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[telemetry.Vital]telemetry.Reading, len(m.latest))
	for k, v := range m.latest {
		out[k] = v
	}
	return out
}

// Close disconnects and stops any reconnect in progress.
func (m *Monitor) Close() error {
	m.mu.Lock()
	m.closed = true
	m.connected = false
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	// Disconnect may fire the disconnect callback synchronously.
	if conn == nil {
		return nil
	}
	return conn.Disconnect()
}

// backoffDelay returns the reconnection delay for attempt n, capped at maxSeconds.
func backoffDelay(attempt int, maxSeconds int) time.Duration {
	delay := time.Duration(1<<uint(attempt)) * time.Second
	max := time.Duration(maxSeconds) * time.Second
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}

// reconnectLoop attempts to reconnect with exponential backoff until it
// succeeds or the monitor is closed.
func (m *Monitor) reconnectLoop() {
	for attempt := 0; ; attempt++ {
		// The first attempt is immediate.
		if attempt > 0 {
			delay := backoffDelay(attempt-1, m.opts.ReconnectMax)
			slog.Info("[BLE] reconnect backoff", "attempt", attempt+1, "delay", delay)
			m.sleep(delay)
		}

		m.mu.Lock()
		closed, address := m.closed, m.address
		m.mu.Unlock()
		if closed {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.opts.ScanTimeout)
		conn, err := m.adapter.Connect(ctx, address)
		cancel()
		if err != nil {
			slog.Warn("[BLE] reconnect failed", "error", err, "attempt", attempt+1)
			continue
		}
		if err := m.attach(conn); err != nil {
			_ = conn.Disconnect()
			if errors.Is(err, ErrClosed) {
				return
			}
			slog.Warn("[BLE] resubscribe failed", "error", err, "attempt", attempt+1)
			continue
		}

		slog.Info("[BLE] reconnected", "address", address)
		return
	}
}
