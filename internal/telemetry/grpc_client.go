package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/banshee-data/liftview/internal/monitoring"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ClientConfig holds configuration for the gRPC telemetry client.
type ClientConfig struct {
	// Target is the server address (e.g., "localhost:5810").
	Target string

	// ClientID identifies this viewer to the server. A random UUID is used
	// when empty.
	ClientID string

	// MinBackoff and MaxBackoff bound the delay between reconnect attempts.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// DialOptions are appended to the defaults (insecure transport).
	DialOptions []grpc.DialOption
}

// DefaultClientConfig returns a default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Target:     "localhost:5810",
		MinBackoff: 250 * time.Millisecond,
		MaxBackoff: 5 * time.Second,
	}
}

// GRPCSource keeps a local Table in step with a telemetry server. Reads go
// to the local table, so they return defaults until the first update.
type GRPCSource struct {
	*Table

	config ClientConfig
	conn   *grpc.ClientConn
	log    monitoring.Logger

	connected atomic.Bool
	updates   atomic.Uint64
	failure   atomic.Pointer[error]
}

var _ Source = (*GRPCSource)(nil)

// NewGRPCSource creates the client connection. No network traffic happens
// until Run.
func NewGRPCSource(cfg ClientConfig) (*GRPCSource, error) {
	if cfg.Target == "" {
		return nil, fmt.Errorf("telemetry target required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "liftview-" + uuid.NewString()
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = DefaultClientConfig().MinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, cfg.DialOptions...)
	conn, err := grpc.NewClient(cfg.Target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client for %s: %w", cfg.Target, err)
	}

	return &GRPCSource{
		Table:  NewTable(),
		config: cfg,
		conn:   conn,
		log:    monitoring.Prefixed("gRPC"),
	}, nil
}

// ClientID returns the identity sent to the server.
func (s *GRPCSource) ClientID() string { return s.config.ClientID }

// Connected reports whether a Watch stream is currently delivering.
func (s *GRPCSource) Connected() bool { return s.connected.Load() }

// Updates counts messages received from the server.
func (s *GRPCSource) Updates() uint64 { return s.updates.Load() }

// Err implements Failer. It is set only when Run gives up for good.
func (s *GRPCSource) Err() error {
	if p := s.failure.Load(); p != nil {
		return *p
	}
	return nil
}

// Run watches the server until ctx is done, reconnecting with a capped
// exponential backoff. It returns nil on cancellation.
func (s *GRPCSource) Run(ctx context.Context) error {
	retry := backoff{min: s.config.MinBackoff, max: s.config.MaxBackoff}
	for {
		before := s.updates.Load()
		err := s.watchOnce(ctx)
		s.connected.Store(false)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, errBadPayload) {
			s.failure.Store(&err)
			return err
		}
		wait := retry.next(s.updates.Load() > before)
		if err != nil && !errors.Is(err, io.EOF) {
			s.log.Printf("watch %s failed: %v (retrying in %v)", s.config.Target, err, wait)
		} else {
			s.log.Printf("watch %s ended (retrying in %v)", s.config.Target, wait)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// backoff doubles the reconnect delay up to max. A stream that delivered
// data starts the sequence over from min.
type backoff struct {
	min, max time.Duration
	cur      time.Duration
}

func (b *backoff) next(delivered bool) time.Duration {
	if delivered || b.cur == 0 {
		b.cur = b.min
		return b.cur
	}
	b.cur = min(2*b.cur, b.max)
	return b.cur
}

var errBadPayload = errors.New("unexpected telemetry payload")

func (s *GRPCSource) watchOnce(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, ClientIDHeader, s.config.ClientID)

	stream, err := s.conn.NewStream(ctx, &watchStreamDesc, WatchMethod)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			return err
		}
		if !s.connected.Swap(true) {
			s.log.Printf("connected to %s as %s", s.config.Target, s.config.ClientID)
		}
		s.updates.Add(1)
		if err := s.Replace(msg.AsMap()); err != nil {
			// nested lists or objects are a protocol violation
			return fmt.Errorf("%w: %v", errBadPayload, err)
		}
	}
}

// Close releases the client connection.
func (s *GRPCSource) Close() error {
	return s.conn.Close()
}
