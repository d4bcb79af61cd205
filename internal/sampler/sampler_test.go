package sampler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/banshee-data/liftview/internal/mechanism"
	"github.com/banshee-data/liftview/internal/monitoring"
	"github.com/banshee-data/liftview/internal/telemetry"
	"github.com/banshee-data/liftview/internal/timeutil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type harness struct {
	t       *testing.T
	table   *telemetry.Table
	clock   *timeutil.MockClock
	mailbox *Mailbox
	sampler *Sampler
	cancel  context.CancelFunc
	done    chan error
}

func startSampler(t *testing.T, src telemetry.Source) *harness {
	t.Helper()
	prev := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(prev) })

	h := &harness{
		t:       t,
		clock:   timeutil.NewMockClock(time.Unix(0, 0)),
		mailbox: NewMailbox(),
		done:    make(chan error, 1),
	}
	if table, ok := src.(*telemetry.Table); ok {
		h.table = table
	}
	h.sampler = New(src, h.mailbox, DefaultConfig(), WithClock(h.clock))

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.sampler.Run(ctx) }()
	t.Cleanup(cancel)
	return h
}

// tick releases the next interval wait once the sampler is parked on it.
// Expired accept timers are already gone, so the interval waiter is the
// newest of want pending waiters.
func (h *harness) tick(want int) {
	h.t.Helper()
	require.True(h.t, h.clock.BlockUntilWaiters(want, waitFor), "sampler never waited")
	h.clock.Advance(DefaultConfig().Interval)
}

func (h *harness) drain() mechanism.Snapshot {
	h.t.Helper()
	require.Eventually(h.t, h.mailbox.Pending, waitFor, time.Millisecond)
	var got mechanism.Snapshot
	require.True(h.t, h.mailbox.Drain(func(s mechanism.Snapshot) { got = s }))
	return got
}

func (h *harness) stop() error {
	h.t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		return err
	case <-time.After(waitFor):
		h.t.Fatal("sampler did not stop")
		return nil
	}
}

func TestSampler_DefaultsBeforeAnyData(t *testing.T) {
	h := startSampler(t, telemetry.NewTable())
	h.tick(1)

	got := h.drain()
	if diff := cmp.Diff(mechanism.DefaultSnapshot(), got); diff != "" {
		t.Errorf("first snapshot (-want +got):\n%s", diff)
	}
	require.NoError(t, h.stop())
}

func TestSampler_LatestValueHandoff(t *testing.T) {
	h := startSampler(t, telemetry.NewTable())

	require.NoError(t, h.table.Publish(telemetry.ChannelArmAngle, 30.0))
	require.NoError(t, h.table.Publish(telemetry.ChannelMode, "TELEOP"))
	h.tick(1)

	// published after the sample was taken, so not part of it
	require.Eventually(t, h.mailbox.Pending, waitFor, time.Millisecond)
	require.NoError(t, h.table.Publish(telemetry.ChannelArmAngle, 45.0))

	first := h.drain()
	assert.Equal(t, 30.0, first.ArmAngle)
	assert.Equal(t, "TELEOP", first.Mode)

	// waiters now: the unexpired accept timer and the next interval
	h.tick(2)
	second := h.drain()
	assert.Equal(t, 45.0, second.ArmAngle)

	require.NoError(t, h.stop())
	stats := h.sampler.Stats()
	assert.Equal(t, uint64(2), stats.Cycles)
	assert.Equal(t, uint64(2), stats.Accepted)
	assert.Zero(t, stats.Superseded)
	assert.False(t, stats.Running)
}

func TestSampler_UnacceptedSnapshotIsSuperseded(t *testing.T) {
	h := startSampler(t, telemetry.NewTable())

	require.NoError(t, h.table.Publish(telemetry.ChannelLiftHeight, 0.1))
	h.tick(1)
	require.Eventually(t, h.mailbox.Pending, waitFor, time.Millisecond)

	// nobody drains: the accept timeout releases the sampler
	h.clock.Advance(DefaultConfig().AcceptTimeout)
	require.Eventually(t, func() bool { return h.sampler.Stats().TimedOut == 1 }, waitFor, time.Millisecond)

	require.NoError(t, h.table.Publish(telemetry.ChannelLiftHeight, 0.2))
	h.tick(1)
	require.Eventually(t, func() bool { return h.mailbox.Superseded() == 1 }, waitFor, time.Millisecond)

	got := h.drain()
	assert.Equal(t, 0.2, got.LiftExtension, "only the newest snapshot is delivered")
	assert.False(t, h.mailbox.Drain(func(mechanism.Snapshot) { t.Error("slot should be empty") }))

	require.NoError(t, h.stop())
	assert.Equal(t, uint64(1), h.sampler.Stats().Superseded)
}

func TestSampler_CancelWhileWaitingForInterval(t *testing.T) {
	h := startSampler(t, telemetry.NewTable())
	require.True(t, h.clock.BlockUntilWaiters(1, waitFor))
	assert.NoError(t, h.stop())
	assert.Zero(t, h.sampler.Stats().Cycles)
}

func TestSampler_CancelWhileWaitingForAccept(t *testing.T) {
	h := startSampler(t, telemetry.NewTable())
	h.tick(1)
	require.Eventually(t, h.mailbox.Pending, waitFor, time.Millisecond)
	assert.NoError(t, h.stop())
	assert.Zero(t, h.sampler.Stats().Accepted)
}

type panickySource struct{ *telemetry.Table }

func (panickySource) Double(name string, def float64) telemetry.Subscriber[float64] {
	return panicky{name}
}

type panicky struct{ name string }

func (p panicky) Name() string { return p.name }
func (p panicky) Get() float64 { panic("decoder exploded") }

func TestSampler_PanicEndsLoop(t *testing.T) {
	h := startSampler(t, panickySource{telemetry.NewTable()})
	h.tick(1)

	select {
	case err := <-h.done:
		require.ErrorIs(t, err, ErrSamplingFailed)
		assert.ErrorContains(t, err, "decoder exploded")
	case <-time.After(waitFor):
		t.Fatal("sampler kept running after a panic")
	}
	assert.False(t, h.sampler.Stats().Running)
}

type failingSource struct {
	*telemetry.Table
	err error
}

func (f failingSource) Err() error { return f.err }

func TestSampler_SourceFailureEndsLoop(t *testing.T) {
	portGone := errors.New("serial port gone")
	h := startSampler(t, failingSource{Table: telemetry.NewTable(), err: portGone})
	h.tick(1)

	select {
	case err := <-h.done:
		assert.ErrorIs(t, err, ErrSamplingFailed)
		assert.ErrorIs(t, err, portGone)
	case <-time.After(waitFor):
		t.Fatal("sampler kept running after the source failed")
	}
	assert.False(t, h.mailbox.Pending(), "nothing is posted from a failed cycle")
}

func TestSampler_RejectsSecondRun(t *testing.T) {
	h := startSampler(t, telemetry.NewTable())
	require.True(t, h.clock.BlockUntilWaiters(1, waitFor))
	assert.Error(t, h.sampler.Run(context.Background()))
	require.NoError(t, h.stop())
}

func TestNew_AppliesDefaults(t *testing.T) {
	s := New(telemetry.NewTable(), NewMailbox(), Config{})
	assert.Equal(t, DefaultConfig(), s.Config())

	s = New(telemetry.NewTable(), NewMailbox(), Config{Interval: 20 * time.Millisecond})
	assert.Equal(t, 20*time.Millisecond, s.Config().Interval)
	assert.Equal(t, time.Second, s.Config().AcceptTimeout)
}

func TestMailbox_PostAndDrain(t *testing.T) {
	mb := NewMailbox()
	assert.False(t, mb.Drain(func(mechanism.Snapshot) {}))

	done := make(chan error, 1)
	go func() { done <- mb.Post(context.Background(), mechanism.Snapshot{Mode: "AUTO"}) }()

	select {
	case <-mb.Wake():
	case <-time.After(waitFor):
		t.Fatal("no wake signal")
	}

	var got mechanism.Snapshot
	require.True(t, mb.Drain(func(s mechanism.Snapshot) { got = s }))
	assert.Equal(t, "AUTO", got.Mode)
	assert.NoError(t, <-done)
}

func TestMailbox_SupersededPosterIsReleased(t *testing.T) {
	mb := NewMailbox()
	first := make(chan error, 1)
	go func() { first <- mb.Post(context.Background(), mechanism.Snapshot{Mode: "one"}) }()
	require.Eventually(t, mb.Pending, waitFor, time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- mb.Post(context.Background(), mechanism.Snapshot{Mode: "two"}) }()

	select {
	case err := <-first:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(waitFor):
		t.Fatal("first poster not released")
	}

	var got mechanism.Snapshot
	require.True(t, mb.Drain(func(s mechanism.Snapshot) { got = s }))
	assert.Equal(t, "two", got.Mode)
	assert.NoError(t, <-second)
	assert.Equal(t, uint64(1), mb.Superseded())
}

func TestMailbox_PostHonoursContext(t *testing.T) {
	mb := NewMailbox()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := mb.Post(ctx, mechanism.DefaultSnapshot())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, mb.Pending(), "an unaccepted snapshot stays in the slot")
}
