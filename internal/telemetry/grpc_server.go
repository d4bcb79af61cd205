package telemetry

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/liftview/internal/monitoring"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Wire identifiers of the telemetry service. Watch is a server-streaming
// method: the client sends an Empty and receives the full table as a
// Struct on connect and again after every change.
const (
	ServiceName = "liftview.telemetry.v1.Telemetry"
	WatchMethod = "/" + ServiceName + "/Watch"

	// ClientIDHeader carries the viewer's identity in request metadata.
	ClientIDHeader = "x-liftview-client"
)

type watchService interface {
	watch(req *emptypb.Empty, stream grpc.ServerStream) error
}

func watchHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(emptypb.Empty)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(watchService).watch(req, stream)
}

var watchStreamDesc = grpc.StreamDesc{
	StreamName:    "Watch",
	Handler:       watchHandler,
	ServerStreams: true,
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*watchService)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams:     []grpc.StreamDesc{watchStreamDesc},
	Metadata:    "liftview/telemetry/v1/telemetry.proto",
}

// ServerConfig holds configuration for the telemetry gRPC server.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., "localhost:5810")
	ListenAddr string

	// MinSendInterval rate-limits updates per client. Zero sends every change.
	MinSendInterval time.Duration
}

// DefaultServerConfig returns a default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:      "localhost:5810",
		MinSendInterval: 20 * time.Millisecond,
	}
}

// Server publishes a Table to Watch clients.
type Server struct {
	config ServerConfig
	table  *Table
	log    monitoring.Logger

	server   *grpc.Server
	listener net.Listener

	clientCount atomic.Int32
	sentCount   atomic.Uint64

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewServer creates a server that streams table to its clients.
func NewServer(cfg ServerConfig, table *Table) *Server {
	return &Server{
		config: cfg,
		table:  table,
		log:    monitoring.Prefixed("Telemetry"),
	}
}

// Register attaches the Watch service to an existing gRPC server.
func (s *Server) Register(reg grpc.ServiceRegistrar) {
	reg.RegisterService(&serviceDesc, s)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve serves on lis in the background.
func (s *Server) Serve(lis net.Listener) error {
	if s.running.Load() {
		return fmt.Errorf("telemetry server already running")
	}
	s.listener = lis
	s.server = grpc.NewServer()
	s.Register(s.server)
	s.running.Store(true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Printf("gRPC server listening on %s", lis.Addr())
		if err := s.server.Serve(lis); err != nil && s.running.Load() {
			s.log.Printf("gRPC server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops the server, closing client streams.
func (s *Server) Stop() {
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
	s.server.Stop()
	s.wg.Wait()
	s.log.Printf("gRPC server stopped")
}

// Stats is a point-in-time view of server activity.
type Stats struct {
	Running  bool
	Clients  int32
	Messages uint64
}

// Stats returns current counters.
func (s *Server) Stats() Stats {
	return Stats{
		Running:  s.running.Load(),
		Clients:  s.clientCount.Load(),
		Messages: s.sentCount.Load(),
	}
}

func (s *Server) watch(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ctx := stream.Context()
	client := "anonymous"
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(ClientIDHeader); len(ids) > 0 {
			client = ids[0]
		}
	}

	n := s.clientCount.Add(1)
	defer s.clientCount.Add(-1)
	s.log.Printf("client %s connected (%d active)", client, n)
	defer s.log.Printf("client %s disconnected", client)

	for {
		changed := s.table.Changed()
		msg, err := structpb.NewStruct(s.table.Values())
		if err != nil {
			return fmt.Errorf("encode table: %w", err)
		}
		if err := stream.SendMsg(msg); err != nil {
			return err
		}
		s.sentCount.Add(1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
		if s.config.MinSendInterval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.config.MinSendInterval):
			}
		}
	}
}
