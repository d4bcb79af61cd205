// Package sampler polls the telemetry channels at a fixed rate and hands
// each snapshot to the render context through a Mailbox.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/liftview/internal/mechanism"
	"github.com/banshee-data/liftview/internal/monitoring"
	"github.com/banshee-data/liftview/internal/telemetry"
	"github.com/banshee-data/liftview/internal/timeutil"
)

// ErrSamplingFailed wraps whatever stopped the sampling loop for good.
var ErrSamplingFailed = errors.New("sampling loop failed")

// Config holds the sampling loop settings.
type Config struct {
	// Interval is the wait before each sample.
	Interval time.Duration

	// AcceptTimeout bounds how long a cycle waits for the render side to
	// take its snapshot. An unaccepted snapshot stays in the mailbox and is
	// replaced by the next one.
	AcceptTimeout time.Duration
}

// DefaultConfig returns the 10 Hz default.
func DefaultConfig() Config {
	return Config{
		Interval:      100 * time.Millisecond,
		AcceptTimeout: time.Second,
	}
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithClock replaces the real clock, for tests.
func WithClock(c timeutil.Clock) Option {
	return func(s *Sampler) { s.clock = c }
}

// Sampler reads the five view channels once per interval.
type Sampler struct {
	source  telemetry.Source
	mailbox *Mailbox
	config  Config
	clock   timeutil.Clock
	log     monitoring.Logger

	running  atomic.Bool
	cycles   atomic.Uint64
	accepted atomic.Uint64
	timeouts atomic.Uint64
}

// New creates a sampler reading from src and posting into mb. Non-positive
// config values fall back to DefaultConfig.
func New(src telemetry.Source, mb *Mailbox, cfg Config, opts ...Option) *Sampler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.AcceptTimeout <= 0 {
		cfg.AcceptTimeout = def.AcceptTimeout
	}
	s := &Sampler{
		source:  src,
		mailbox: mb,
		config:  cfg,
		clock:   timeutil.RealClock{},
		log:     monitoring.Prefixed("Sampler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Sampler) Config() Config { return s.config }

type subscriptions struct {
	lift        telemetry.Subscriber[float64]
	armAngle    telemetry.Subscriber[float64]
	armExtended telemetry.Subscriber[bool]
	intakeAngle telemetry.Subscriber[float64]
	mode        telemetry.Subscriber[string]
}

func subscribe(src telemetry.Source) subscriptions {
	return subscriptions{
		lift:        src.Double(telemetry.ChannelLiftHeight, mechanism.DefaultLiftExtension),
		armAngle:    src.Double(telemetry.ChannelArmAngle, mechanism.DefaultArmAngle),
		armExtended: src.Boolean(telemetry.ChannelArmExtended, mechanism.DefaultArmExtended),
		intakeAngle: src.Double(telemetry.ChannelIntakeAngle, mechanism.DefaultIntakeAngle),
		mode:        src.String(telemetry.ChannelMode, mechanism.DefaultMode),
	}
}

func (subs subscriptions) read() mechanism.Snapshot {
	return mechanism.Snapshot{
		LiftExtension: subs.lift.Get(),
		ArmAngle:      subs.armAngle.Get(),
		ArmExtended:   subs.armExtended.Get(),
		IntakeAngle:   subs.intakeAngle.Get(),
		Mode:          subs.mode.Get(),
	}
}

// Run samples until ctx is done and returns nil. Any other way out is a
// failure: it is logged and returned wrapped in ErrSamplingFailed.
func (s *Sampler) Run(ctx context.Context) (err error) {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sampler already running")
	}
	defer s.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			err = s.fail(fmt.Errorf("panic: %v", r))
		}
	}()

	subs := subscribe(s.source)
	s.log.Printf("sampling every %v", s.config.Interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(s.config.Interval):
		}

		snap := subs.read()
		if f, ok := s.source.(telemetry.Failer); ok {
			if ferr := f.Err(); ferr != nil {
				return s.fail(fmt.Errorf("telemetry source: %w", ferr))
			}
		}
		s.cycles.Add(1)

		switch perr := s.mailbox.post(ctx, snap, s.clock.After(s.config.AcceptTimeout)); {
		case perr == nil:
			s.accepted.Add(1)
		case errors.Is(perr, errAcceptTimeout):
			s.timeouts.Add(1)
		case errors.Is(perr, ErrSuperseded):
			// only another poster on the same mailbox can cause this
		case ctx.Err() != nil:
			return nil
		default:
			return s.fail(perr)
		}
	}
}

func (s *Sampler) fail(err error) error {
	wrapped := fmt.Errorf("%w after %d cycles: %w", ErrSamplingFailed, s.cycles.Load(), err)
	s.log.Printf("%v", wrapped)
	return wrapped
}

// Stats is a point-in-time view of the loop.
type Stats struct {
	Running    bool   `json:"running"`
	Cycles     uint64 `json:"cycles"`
	Accepted   uint64 `json:"accepted"`
	TimedOut   uint64 `json:"timed_out"`
	Superseded uint64 `json:"superseded"`
}

// Stats returns current counters.
func (s *Sampler) Stats() Stats {
	return Stats{
		Running:    s.running.Load(),
		Cycles:     s.cycles.Load(),
		Accepted:   s.accepted.Load(),
		TimedOut:   s.timeouts.Load(),
		Superseded: s.mailbox.Superseded(),
	}
}
