package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-stompbox/audio"
	"go-stompbox/flash"
	"go-stompbox/sample"
	"go-stompbox/settings"
	"go-stompbox/tone"
)

type fakeTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
	fired   bool
	stuck   bool // Stop fails while still pending
}

func (t *fakeTimer) Stop() bool {
	if t.stuck || t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
	err    error
	stuck  bool
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) (Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	t := &fakeTimer{d: d, fn: fn, stuck: s.stuck}
	s.timers = append(s.timers, t)
	return t, nil
}

func (s *fakeScheduler) live() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// expire runs every timer that is still pending.
func (s *fakeScheduler) expire() {
	for _, t := range s.live() {
		t.fired = true
		t.fn()
	}
}

type fakeLEDs struct {
	sample, tone bool
	calls        int
}

func (l *fakeLEDs) SetIndicators(sample, tone bool) {
	l.sample, l.tone = sample, tone
	l.calls++
}

type fakePot struct{ v uint16 }

func (p *fakePot) ReadAnalog() uint16 { return p.v }

type rig struct {
	mem   *flash.Memory
	store *settings.Store
	dev   *Device
	sched *fakeScheduler
	leds  *fakeLEDs
	pot   *fakePot
	pool  *audio.BufferPool
}

func newRig(t *testing.T, saved ...settings.Settings) *rig {
	t.Helper()
	mem := flash.NewSector()
	store := settings.NewStore(mem, &flash.Mutex{})
	for _, s := range saved {
		require.NoError(t, store.Write(s))
	}

	r := &rig{
		mem:   mem,
		store: store,
		sched: &fakeScheduler{},
		leds:  &fakeLEDs{},
		pot:   &fakePot{v: 1000},
		pool:  audio.NewBufferPool(2, 64),
	}
	plat := Platform{Scheduler: r.sched, Pot: r.pot, Indicators: r.leds}
	r.dev = New(store, tone.New(tone.SampleRate, nil), sample.NewStreamer(sample.BuiltinBank()), r.pool, plat)
	return r
}

func (r *rig) programs() int { return r.mem.Stats().Programs }

func TestBootFreshDevice(t *testing.T) {
	r := newRig(t)
	got := r.dev.Boot()

	assert.Equal(t, settings.Settings{}, got)
	assert.Equal(t, settings.ModeSample, r.dev.Controller.Mode())
	assert.True(t, r.leds.sample)
	assert.False(t, r.leds.tone)
	assert.Zero(t, r.programs(), "booting never writes")
	assert.Empty(t, r.sched.live())
}

func TestBootRestoresAndWraps(t *testing.T) {
	r := newRig(t, settings.Settings{Mode: settings.ModeTone, SampleIndex: 250, ToneIndex: 9})
	got := r.dev.Boot()

	n := sample.BuiltinBank().Len()
	assert.Equal(t, settings.ModeTone, got.Mode)
	assert.Equal(t, uint8(250%n), got.SampleIndex)
	assert.Equal(t, uint8(1), got.ToneIndex)
	assert.True(t, r.leds.tone)
	assert.False(t, r.leds.sample)
}

func TestBootUnknownModeFallsBackToSample(t *testing.T) {
	r := newRig(t, settings.Settings{Mode: 7, SampleIndex: 1, ToneIndex: 2})
	got := r.dev.Boot()

	assert.Equal(t, settings.ModeSample, got.Mode)
	assert.Equal(t, uint8(1), got.SampleIndex)
	assert.Equal(t, uint8(2), got.ToneIndex)
}

func TestBootAppliesFirstPotReading(t *testing.T) {
	r := newRig(t)
	r.pot.v = 4095
	r.dev.Boot()

	period, _ := r.dev.Synth.Tempo()
	assert.Equal(t, tone.MaxNoteTime, period)
	v, ok := r.dev.Controller.Pot()
	assert.True(t, ok)
	assert.Equal(t, uint16(4095), v)
}

func TestPressesCoalesceIntoOneSave(t *testing.T) {
	r := newRig(t)
	r.dev.Boot()
	c := r.dev.Controller

	c.HandleEdge(ButtonTone, true) // switch to tone
	c.HandleEdge(ButtonTone, true) // next tone

	live := r.sched.live()
	require.Len(t, live, 1)
	assert.Equal(t, DefaultSaveDelay, live[0].d)
	assert.Zero(t, r.programs())

	r.sched.expire()
	assert.Equal(t, 1, r.programs())
	assert.Equal(t, settings.Settings{Mode: settings.ModeTone, SampleIndex: 0, ToneIndex: 1}, r.store.Read())
	assert.False(t, c.Pending())
}

func TestSamePressAdvancesOtherSwitches(t *testing.T) {
	r := newRig(t)
	r.dev.Boot()
	c := r.dev.Controller

	c.HandleEdge(ButtonSample, true)
	assert.Equal(t, uint8(1), r.dev.Streamer.Index())
	assert.Equal(t, settings.ModeSample, c.Mode())

	c.HandleEdge(ButtonTone, true)
	assert.Equal(t, settings.ModeTone, c.Mode())
	assert.Equal(t, uint8(0), r.dev.Synth.Index(), "switching does not advance")
	assert.True(t, r.leds.tone)

	c.HandleEdge(ButtonSample, true)
	assert.Equal(t, settings.ModeSample, c.Mode())
	assert.Equal(t, uint8(1), r.dev.Streamer.Index())
}

func TestReleaseIgnored(t *testing.T) {
	r := newRig(t)
	r.dev.Boot()
	calls := r.leds.calls

	r.dev.Controller.HandleEdge(ButtonSample, false)
	r.dev.Controller.HandleEdge(ButtonTone, false)

	assert.Equal(t, settings.ModeSample, r.dev.Controller.Mode())
	assert.Equal(t, uint8(0), r.dev.Streamer.Index())
	assert.Equal(t, calls, r.leds.calls)
	assert.Empty(t, r.sched.timers)
}

func TestStaleSaveDiscarded(t *testing.T) {
	r := newRig(t)
	r.dev.Boot()
	c := r.dev.Controller

	c.HandleEdge(ButtonSample, true)
	first := r.sched.timers[0]
	c.HandleEdge(ButtonSample, true)
	assert.True(t, first.stopped)

	// a callback that raced its cancellation
	first.fn()
	assert.Zero(t, r.programs())

	r.sched.expire()
	assert.Equal(t, 1, r.programs())
	assert.Equal(t, uint8(2), r.store.Read().SampleIndex)
}

func TestUncancellableSaveDiscardedByGeneration(t *testing.T) {
	r := newRig(t)
	r.dev.Boot()
	r.sched.stuck = true
	c := r.dev.Controller

	c.HandleEdge(ButtonSample, true)
	c.HandleEdge(ButtonSample, true)
	require.Len(t, r.sched.live(), 2, "first timer could not be stopped")
	assert.True(t, c.Pending())

	// both fire; only the newer one writes
	r.sched.expire()
	assert.Equal(t, 1, r.programs())
	assert.Equal(t, uint8(2), r.store.Read().SampleIndex)
	assert.False(t, c.Pending())
}

func TestUnchangedSettingsNotRewritten(t *testing.T) {
	r := newRig(t, settings.Settings{Mode: settings.ModeTone, SampleIndex: 2, ToneIndex: 3})
	r.dev.Boot()
	before := r.programs()

	r.dev.Controller.HandleEdge(ButtonSample, true)
	r.dev.Controller.HandleEdge(ButtonTone, true)
	r.sched.expire()

	assert.Equal(t, before, r.programs())
}

type failingWriter struct{ err error }

func (w failingWriter) Write(settings.Settings) error { return w.err }

func TestStoreFailureIsFatal(t *testing.T) {
	boom := errors.New("program failed")
	sched := &fakeScheduler{}
	streamer := sample.NewStreamer(sample.BuiltinBank())
	synth := tone.New(tone.SampleRate, nil)
	c := NewController(failingWriter{boom}, streamer, synth, synth, Platform{Scheduler: sched})

	var fatal error
	c.OnFatal = func(err error) { fatal = err }

	c.HandleEdge(ButtonSample, true)
	sched.expire()
	assert.ErrorIs(t, fatal, boom)
}

func TestStoreFailurePanicsByDefault(t *testing.T) {
	sched := &fakeScheduler{}
	streamer := sample.NewStreamer(sample.BuiltinBank())
	synth := tone.New(tone.SampleRate, nil)
	c := NewController(failingWriter{errors.New("x")}, streamer, synth, synth, Platform{Scheduler: sched})

	c.HandleEdge(ButtonTone, true)
	assert.Panics(t, sched.expire)
}

func TestScheduleFailureOnlyLogged(t *testing.T) {
	r := newRig(t)
	r.dev.Boot()
	r.sched.err = errors.New("no alarms left")

	r.dev.Controller.HandleEdge(ButtonTone, true)
	assert.Equal(t, settings.ModeTone, r.dev.Controller.Mode())
	assert.True(t, r.leds.tone)
	assert.False(t, r.dev.Controller.Pending())
	assert.Zero(t, r.programs())
}

func TestFlush(t *testing.T) {
	r := newRig(t)
	r.dev.Boot()

	require.NoError(t, r.dev.Flush())
	assert.Zero(t, r.programs(), "nothing pending")

	r.dev.Controller.HandleEdge(ButtonTone, true)
	require.NoError(t, r.dev.Flush())
	assert.Equal(t, 1, r.programs())
	assert.Equal(t, settings.ModeTone, r.store.Read().Mode)
	assert.Empty(t, r.sched.live())
}

func TestPollPotOnlyInToneMode(t *testing.T) {
	r := newRig(t)
	r.pot.v = 0
	r.dev.Boot()
	c := r.dev.Controller

	r.pot.v = 4095
	assert.False(t, c.PollPot(), "pot is ignored in sample mode")

	c.HandleEdge(ButtonTone, true)
	assert.True(t, c.PollPot())
	period, _ := r.dev.Synth.Tempo()
	assert.Equal(t, tone.MaxNoteTime, period)

	r.pot.v = 4091
	assert.False(t, c.PollPot(), "within jitter threshold")
	r.pot.v = 4090
	assert.True(t, c.PollPot())
}

func TestPotFilter(t *testing.T) {
	f := PotFilter{Threshold: 4}
	assert.True(t, f.Accept(100), "first reading")
	assert.False(t, f.Accept(104))
	assert.False(t, f.Accept(96))
	assert.True(t, f.Accept(105))
	assert.False(t, f.Accept(101))
	assert.True(t, f.Accept(100))

	v, ok := f.Last()
	assert.True(t, ok)
	assert.Equal(t, uint16(100), v)
}

func TestEventsDispatch(t *testing.T) {
	r := newRig(t)
	r.dev.Boot()

	edges := make(chan Edge, 4)
	edges <- Edge{Button: ButtonTone, Pressed: true}
	edges <- Edge{Button: ButtonTone, Pressed: false}
	edges <- Edge{Button: ButtonTone, Pressed: true}
	close(edges)

	require.NoError(t, r.dev.Events(context.Background(), edges))
	assert.Equal(t, settings.ModeTone, r.dev.Controller.Mode())
	assert.Equal(t, uint8(1), r.dev.Synth.Index())
}

func TestRunRendersUntilCancelled(t *testing.T) {
	r := newRig(t)
	r.dev.Boot()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.dev.Run(ctx) }()

	b, err := r.pool.Consume(context.Background())
	require.NoError(t, err)
	assert.Len(t, b.Samples, 64)
	r.pool.Recycle(b)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("render loop did not stop")
	}
	assert.NotZero(t, r.dev.Pipeline.Rendered())
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestPipelineIdlesOnSynthClock(t *testing.T) {
	mem := flash.NewSector()
	store := settings.NewStore(mem, &flash.Mutex{})
	// far from wall time: a wall-clock idle check would see the rest as over
	synth := tone.New(tone.SampleRate, fixedClock{time.Unix(1000, 0)})
	pool := audio.NewBufferPool(2, 64)
	dev := New(store, synth, sample.NewStreamer(sample.BuiltinBank()), pool, Platform{Scheduler: &fakeScheduler{}})

	synth.SetIndex(1)
	buf := make([]int16, 256)
	for i := 0; i < 1000; i++ {
		if stage, _ := synth.Envelope(); stage == tone.StageRest {
			break
		}
		synth.Render(buf)
	}
	stage, _ := synth.Envelope()
	require.Equal(t, tone.StageRest, stage)

	var waits []time.Duration
	dev.Pipeline.Wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	require.NoError(t, dev.Pipeline.Step(context.Background(), settings.ModeTone))
	assert.Equal(t, []time.Duration{audio.MaxIdleWait}, waits)
	assert.Zero(t, dev.Pipeline.Rendered())
}

func TestKnobNudgeClamps(t *testing.T) {
	k := NewKnob(10)
	assert.Equal(t, uint16(0), k.Nudge(-100, 4095))
	assert.Equal(t, uint16(4095), k.Nudge(5000, 4095))
	assert.Equal(t, uint16(3995), k.Nudge(-100, 4095))
	assert.Equal(t, uint16(3995), k.ReadAnalog())
}

func TestIndicatorGroup(t *testing.T) {
	var a, b LEDs
	IndicatorGroup{&a, &b}.SetIndicators(false, true)
	s, tn := b.Get()
	assert.False(t, s)
	assert.True(t, tn)
	s, tn = a.Get()
	assert.False(t, s)
	assert.True(t, tn)
}
