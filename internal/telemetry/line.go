package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/banshee-data/liftview/internal/monitoring"
	"github.com/banshee-data/liftview/internal/serialmux"
)

// ErrMalformedLine is returned by ParseLine for lines that are not a
// {"name":...,"value":...} update.
var ErrMalformedLine = errors.New("malformed telemetry line")

type lineUpdate struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// ParseLine decodes one update line, e.g. {"name":"Arm Angle","value":45.0}.
// A null value is returned as nil, meaning the channel was cleared.
func ParseLine(line string) (string, any, error) {
	var u lineUpdate
	if err := json.Unmarshal([]byte(line), &u); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	if u.Name == "" {
		return "", nil, fmt.Errorf("%w: missing name", ErrMalformedLine)
	}
	switch u.Value.(type) {
	case nil, float64, bool, string:
		return u.Name, u.Value, nil
	default:
		return "", nil, fmt.Errorf("%w: %q has unsupported value %T", ErrMalformedLine, u.Name, u.Value)
	}
}

// LineSource feeds a Table from JSON lines read off a serial mux.
type LineSource struct {
	*Table

	mux      serialmux.SerialMuxInterface
	channels []string
	log      monitoring.Logger

	applied   atomic.Uint64
	malformed atomic.Uint64
	failure   atomic.Pointer[error]
}

var _ Source = (*LineSource)(nil)

// NewLineSource reads updates for channels from mux. An empty channel list
// subscribes to Channels().
func NewLineSource(mux serialmux.SerialMuxInterface, channels ...string) *LineSource {
	if len(channels) == 0 {
		channels = Channels()
	}
	return &LineSource{
		Table:    NewTable(),
		mux:      mux,
		channels: channels,
		log:      monitoring.Prefixed("Serial"),
	}
}

// Err implements Failer. It is set when the port fails while Run is active.
func (s *LineSource) Err() error {
	if p := s.failure.Load(); p != nil {
		return *p
	}
	return nil
}

// Counts reports applied updates and skipped malformed lines.
func (s *LineSource) Counts() (applied, malformed uint64) {
	return s.applied.Load(), s.malformed.Load()
}

// Run subscribes to the controller and applies lines until ctx is done or
// the port fails. It returns nil on cancellation or a clean end of input.
func (s *LineSource) Run(ctx context.Context) error {
	id, lines := s.mux.Subscribe()
	defer s.mux.Unsubscribe(id)

	if err := s.mux.Initialize(s.channels); err != nil {
		return s.fail(fmt.Errorf("failed to initialise controller: %w", err))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	monitorErr := make(chan error, 1)
	go func() { monitorErr <- s.mux.Monitor(ctx) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-monitorErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return s.fail(fmt.Errorf("serial monitor: %w", err))
			}
			s.drain(lines)
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			s.handle(line)
		}
	}
}

// drain applies lines already queued when Monitor returned.
func (s *LineSource) drain(lines <-chan string) {
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			s.handle(line)
		default:
			return
		}
	}
}

func (s *LineSource) handle(line string) {
	switch serialmux.ClassifyPayload(line) {
	case serialmux.EventTypeUpdate:
	case serialmux.EventTypeAck:
		s.log.Printf("controller acknowledged subscription: %s", line)
		return
	case serialmux.EventTypeError:
		s.log.Printf("controller reported: %s", line)
		return
	default:
		s.malformed.Add(1)
		return
	}

	name, value, err := ParseLine(line)
	if err != nil {
		s.malformed.Add(1)
		s.log.Printf("skipping line: %v", err)
		return
	}
	if value == nil {
		s.Delete(name)
	} else if err := s.Publish(name, value); err != nil {
		s.malformed.Add(1)
		return
	}
	s.applied.Add(1)
}

func (s *LineSource) fail(err error) error {
	s.failure.Store(&err)
	s.log.Printf("%v", err)
	return err
}
