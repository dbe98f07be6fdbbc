package scheduler

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/aegis-bracelet/internal/ble"
	"github.com/chaz8081/aegis-bracelet/internal/ble/bletest"
	"github.com/chaz8081/aegis-bracelet/internal/gatt"
	"github.com/chaz8081/aegis-bracelet/internal/telemetry"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fixedSource returns the same reading per vital and can fail on demand.
type fixedSource struct {
	values map[telemetry.Vital]float64
	fail   map[telemetry.Vital]error
}

func (s *fixedSource) Read(v telemetry.Vital) (telemetry.Reading, error) {
	if err := s.fail[v]; err != nil {
		return telemetry.Reading{}, err
	}
	return telemetry.Reading{Vital: v, Value: s.values[v]}, nil
}

func newFixedSource() *fixedSource {
	return &fixedSource{
		values: map[telemetry.Vital]float64{
			telemetry.HeartRate:   72,
			telemetry.SpO2:        98,
			telemetry.Temperature: 36.5,
		},
		fail: map[telemetry.Vital]error{},
	}
}

type recordingSink struct {
	summaries []map[telemetry.Vital]telemetry.Reading
	faults    []telemetry.Vital
	errs      []error
}

func (s *recordingSink) Summary(r map[telemetry.Vital]telemetry.Reading) {
	s.summaries = append(s.summaries, r)
}

func (s *recordingSink) Fault(v telemetry.Vital, err error) {
	s.faults = append(s.faults, v)
	s.errs = append(s.errs, err)
}

// fixture wires a scheduler to an advertising peripheral over a mock stack.
type fixture struct {
	stack  *bletest.Stack
	clock  *fakeClock
	source *fixedSource
	sink   *recordingSink
	sched  *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stack := bletest.NewStack()
	p := ble.NewPeripheral(stack)
	schema := gatt.Build()
	require.NoError(t, p.Initialize())
	require.NoError(t, p.SetIdentity(gatt.Identity{LocalName: "AegisBracelet", Service: schema.Identity}))
	require.NoError(t, gatt.Register(p, schema))
	require.NoError(t, p.StartAdvertising())

	f := &fixture{
		stack:  stack,
		clock:  &fakeClock{now: time.Unix(1000, 0)},
		source: newFixedSource(),
		sink:   &recordingSink{},
	}
	f.sched = New(p, f.source, f.sink, Options{Clock: f.clock})
	return f
}

func TestFirstStepUpdates(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.sched.Step())
	assert.Len(t, f.stack.Writes, 3)
}

func TestEndToEndEncodedWrites(t *testing.T) {
	f := newFixture(t)
	f.sched.Step()

	require.Len(t, f.stack.Writes, 3)
	assert.Equal(t, gatt.HeartRateCharUUID, f.stack.Writes[0].Characteristic)
	assert.Equal(t, []byte{0x48, 0x00}, f.stack.Writes[0].Data)
	assert.Equal(t, gatt.SpO2CharUUID, f.stack.Writes[1].Characteristic)
	assert.Equal(t, []byte{0x62, 0x00}, f.stack.Writes[1].Data)
	assert.Equal(t, gatt.TemperatureCharUUID, f.stack.Writes[2].Characteristic)

	want := make([]byte, 4)
	binary.LittleEndian.PutUint32(want, math.Float32bits(36.5))
	assert.Equal(t, want, f.stack.Writes[2].Data)

	require.Len(t, f.sink.summaries, 1)
	assert.Len(t, f.sink.summaries[0], 3)
}

func TestWriteSizesMatchDeclaredWidths(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.sched.Step()
		f.clock.Advance(time.Second)
	}
	widths := map[string]int{
		gatt.HeartRateCharUUID:   gatt.HeartRateWidth,
		gatt.SpO2CharUUID:        gatt.SpO2Width,
		gatt.TemperatureCharUUID: gatt.TemperatureWidth,
	}
	require.Len(t, f.stack.Writes, 15)
	for _, w := range f.stack.Writes {
		assert.Len(t, w.Data, widths[w.Characteristic], "write to %s", w.Characteristic)
	}
}

func TestCadence(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.sched.Step())

	f.clock.Advance(999 * time.Millisecond)
	assert.False(t, f.sched.Step(), "update before the interval elapsed")
	assert.Len(t, f.stack.Writes, 3)

	f.clock.Advance(time.Millisecond)
	assert.True(t, f.sched.Step(), "update once the interval elapsed")
	assert.Len(t, f.stack.Writes, 6)

	// The window restarts from the last update, not from the original schedule.
	f.clock.Advance(500 * time.Millisecond)
	assert.False(t, f.sched.Step())
}

func TestCadenceSeparatesWritesPerCharacteristic(t *testing.T) {
	f := newFixture(t)
	var times []time.Time
	for i := 0; i < 50; i++ {
		before := len(f.stack.WritesTo(gatt.HeartRateCharUUID))
		f.sched.Step()
		if len(f.stack.WritesTo(gatt.HeartRateCharUUID)) > before {
			times = append(times, f.clock.Now())
		}
		f.clock.Advance(130 * time.Millisecond)
	}
	require.Greater(t, len(times), 2)
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), time.Second)
	}
}

func TestPollEveryIteration(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 10; i++ {
		f.sched.Step()
		f.clock.Advance(10 * time.Millisecond)
	}
	assert.Equal(t, 10, f.stack.Polls)
	assert.Len(t, f.stack.Writes, 3, "only the first iteration is due")
	assert.Equal(t, uint64(10), f.sched.Stats().Iterations)
}

func TestWriteFaultIsolation(t *testing.T) {
	f := newFixture(t)
	failSpO2 := true
	f.stack.WriteErr = func(_, char string) error {
		if failSpO2 && char == gatt.SpO2CharUUID {
			return errors.New("notify failed")
		}
		return nil
	}

	f.sched.Step()
	assert.Len(t, f.stack.WritesTo(gatt.HeartRateCharUUID), 1)
	assert.Len(t, f.stack.WritesTo(gatt.SpO2CharUUID), 0)
	assert.Len(t, f.stack.WritesTo(gatt.TemperatureCharUUID), 1)
	require.Equal(t, []telemetry.Vital{telemetry.SpO2}, f.sink.faults)
	var wf *ble.WriteFault
	assert.True(t, errors.As(f.sink.errs[0], &wf))

	// Next window proceeds normally, with no retry in between.
	failSpO2 = false
	f.clock.Advance(time.Second)
	f.sched.Step()
	assert.Len(t, f.stack.WritesTo(gatt.HeartRateCharUUID), 2)
	assert.Len(t, f.stack.WritesTo(gatt.SpO2CharUUID), 1)
	assert.Len(t, f.stack.WritesTo(gatt.TemperatureCharUUID), 2)

	stats := f.sched.Stats()
	assert.Equal(t, uint64(2), stats.Updates)
	assert.Equal(t, uint64(5), stats.Writes)
	assert.Equal(t, uint64(1), stats.Faults)
}

func TestSensorFaultSkipsOnlyThatVital(t *testing.T) {
	f := newFixture(t)
	f.source.fail[telemetry.HeartRate] = &telemetry.SensorFault{Vital: telemetry.HeartRate, Kind: telemetry.Unavailable}

	f.sched.Step()
	assert.Empty(t, f.stack.WritesTo(gatt.HeartRateCharUUID), "no substitute value may be written")
	assert.Len(t, f.stack.WritesTo(gatt.SpO2CharUUID), 1)
	assert.Len(t, f.stack.WritesTo(gatt.TemperatureCharUUID), 1)
	assert.Equal(t, []telemetry.Vital{telemetry.HeartRate}, f.sink.faults)

	require.Len(t, f.sink.summaries, 1)
	_, ok := f.sink.summaries[0][telemetry.HeartRate]
	assert.False(t, ok)
}

func TestUnencodableReadingIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.source.values[telemetry.Temperature] = math.NaN()

	f.sched.Step()
	assert.Empty(t, f.stack.WritesTo(gatt.TemperatureCharUUID))
	require.Len(t, f.sink.errs, 1)
	assert.ErrorIs(t, f.sink.errs[0], telemetry.ErrUnencodable)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.sched.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.stack.Polls)
}

func TestRunPollsUntilDeadline(t *testing.T) {
	stack := bletest.NewStack()
	p := ble.NewPeripheral(stack)
	schema := gatt.Build()
	require.NoError(t, p.Initialize())
	require.NoError(t, p.SetIdentity(gatt.Identity{LocalName: "AegisBracelet", Service: schema.Identity}))
	require.NoError(t, gatt.Register(p, schema))
	require.NoError(t, p.StartAdvertising())

	sched := New(p, telemetry.NewSimulated(1), &recordingSink{}, Options{Idle: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := sched.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, stack.Polls, 1)
	assert.Equal(t, uint64(1), sched.Stats().Updates, "30ms is shorter than one interval")
}

func TestNewDefaults(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, DefaultInterval, f.sched.opts.Interval)
	assert.Len(t, f.sched.opts.Bindings, 3)
}

func TestNewPanicsOnNilDependency(t *testing.T) {
	assert.Panics(t, func() { New(nil, newFixedSource(), &recordingSink{}, Options{}) })
}
