package display

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/liftview/internal/httputil"
	"github.com/banshee-data/liftview/internal/mechanism"
	"github.com/banshee-data/liftview/internal/monitoring"
	"github.com/banshee-data/liftview/internal/sampler"
	"github.com/banshee-data/liftview/internal/version"
	"tailscale.com/tsweb"
)

// MaxDimension bounds the w and h query parameters of the frame endpoints.
const MaxDimension = 4096

// WebServer serves the host's frames and status over HTTP.
type WebServer struct {
	host        *Host
	sampler     *sampler.Sampler
	preset      string
	capturer    *Capturer
	adminRoutes []func(*http.ServeMux)
	log         monitoring.Logger
}

// WebOption configures a WebServer.
type WebOption func(*WebServer)

// WithSampler adds the sampler's counters to /api/status.
func WithSampler(s *sampler.Sampler) WebOption {
	return func(w *WebServer) { w.sampler = s }
}

// WithPreset names the geometry preset in /api/status.
func WithPreset(name string) WebOption {
	return func(w *WebServer) { w.preset = name }
}

// WithCapturer enables POST /api/capture, which saves the current frame.
func WithCapturer(c *Capturer) WebOption {
	return func(w *WebServer) { w.capturer = c }
}

// WithAdminRoutes registers extra /debug/ routes, such as the serial tail.
func WithAdminRoutes(attach func(*http.ServeMux)) WebOption {
	return func(w *WebServer) { w.adminRoutes = append(w.adminRoutes, attach) }
}

// NewWebServer creates a web server for host.
func NewWebServer(host *Host, opts ...WebOption) *WebServer {
	s := &WebServer{host: host, log: monitoring.Prefixed("Web")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeMux returns the routes, debug routes included.
func (s *WebServer) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.index)
	mux.HandleFunc("/frame.png", s.framePNG)
	mux.HandleFunc("/frame.svg", s.frameSVG)
	mux.HandleFunc("/api/status", s.status)
	if s.capturer != nil {
		mux.HandleFunc("/api/capture", s.capture)
	}

	debug := tsweb.Debugger(mux)
	debug.KV("Version", version.Version)
	debug.KV("Git SHA", version.GitSHA)
	debug.KVFunc("Generation", func() any { return s.host.Renderer().Generation() })
	debug.KVFunc("Status", func() any { return s.host.Renderer().Status() })
	for _, attach := range s.adminRoutes {
		attach(mux)
	}
	return mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *WebServer) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done.
func (s *WebServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           httputil.LoggingMiddleware(s.ServeMux(), "/frame.png", "/frame.svg", "/api/status"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Printf("serving on http://%s", lis.Addr())
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Printf("shutdown: %v", err)
		}
		<-errCh
		return nil
	}
}

// frameFor returns the frame to encode for r: the cached frame, or a one-off
// draw when w and h are given. A failed one-off draw falls back to the
// cached frame with the error in its status line.
func (s *WebServer) frameFor(r *http.Request) (mechanism.Frame, error) {
	q := r.URL.Query()
	if q.Get("w") == "" && q.Get("h") == "" {
		f, err := s.host.Frame()
		if err != nil && f.Width == 0 {
			return f, err
		}
		return f, nil
	}

	w, err := parseDimension(q.Get("w"))
	if err != nil {
		return mechanism.Frame{}, fmt.Errorf("w: %w", err)
	}
	h, err := parseDimension(q.Get("h"))
	if err != nil {
		return mechanism.Frame{}, fmt.Errorf("h: %w", err)
	}
	f, err := s.host.FrameAt(w, h)
	if err != nil {
		last, _ := s.host.Frame()
		if last.Width == 0 {
			return last, err
		}
		last.Status = errorStatus(err)
		return last, nil
	}
	return f, nil
}

var errBadDimension = errors.New("must be an integer between 1 and 4096")

func parseDimension(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > MaxDimension {
		return 0, errBadDimension
	}
	return n, nil
}

func (s *WebServer) serveFrame(w http.ResponseWriter, r *http.Request, contentType string, encode func(io.Writer, mechanism.Frame) error) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httputil.MethodNotAllowed(w)
		return
	}
	f, err := s.frameFor(r)
	switch {
	case errors.Is(err, errBadDimension):
		httputil.BadRequest(w, err.Error())
		return
	case err != nil:
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.Header().Set("X-Liftview-Generation", strconv.FormatUint(f.Generation, 10))
	httputil.WriteEncoded(w, contentType, func(out io.Writer) error { return encode(out, f) })
}

func (s *WebServer) framePNG(w http.ResponseWriter, r *http.Request) {
	s.serveFrame(w, r, "image/png", WritePNG)
}

func (s *WebServer) frameSVG(w http.ResponseWriter, r *http.Request) {
	s.serveFrame(w, r, "image/svg+xml", WriteSVG)
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Snapshot    *mechanism.Snapshot `json:"snapshot,omitempty"`
	Status      string              `json:"status"`
	Generation  uint64              `json:"generation"`
	Preset      string              `json:"preset,omitempty"`
	RenderError string              `json:"render_error,omitempty"`
	Host        HostStats           `json:"host"`
	Sampler     *sampler.Stats      `json:"sampler,omitempty"`
	Version     string              `json:"version"`
}

func (s *WebServer) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	rend := s.host.Renderer()
	snap := rend.Snapshot()
	resp := StatusResponse{
		Status:     rend.Status(),
		Generation: rend.Generation(),
		Preset:     s.preset,
		Host:       s.host.Stats(),
		Version:    version.Version,
	}
	// JSON has no encoding for NaN or Inf
	if snap.Validate() == nil {
		resp.Snapshot = &snap
	}
	if _, err := s.host.Frame(); err != nil {
		resp.RenderError = err.Error()
	}
	if s.sampler != nil {
		st := s.sampler.Stats()
		resp.Sampler = &st
	}
	httputil.WriteJSONOK(w, resp)
}

// CaptureResponse is the body of a successful POST /api/capture.
type CaptureResponse struct {
	Path       string `json:"path"`
	Generation uint64 `json:"generation"`
}

func (s *WebServer) capture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	f, err := s.host.Frame()
	if err != nil && f.Width == 0 {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = fmt.Sprintf("liftview-%06d.png", f.Generation)
	}
	path, err := s.capturer.Save(name, f)
	switch {
	case errors.Is(err, ErrCaptureFormat):
		httputil.BadRequest(w, err.Error())
		return
	case err != nil:
		s.log.Printf("capture failed: %v", err)
		httputil.InternalServerError(w, "capture failed")
		return
	}
	s.log.Printf("captured frame %d to %s", f.Generation, path)
	httputil.WriteJSON(w, http.StatusCreated, CaptureResponse{Path: path, Generation: f.Generation})
}

const indexPage = `<!doctype html>
<html>
<head>
<title>liftview</title>
<style>
html, body { margin: 0; height: 100%; background: #1e1e24; }
img { display: block; width: 100vw; height: 100vh; object-fit: contain; }
</style>
</head>
<body>
<img id="frame" src="/frame.svg" alt="mechanism">
<script>
const img = document.getElementById("frame");
let gen = -1;
async function poll() {
  try {
    const st = await (await fetch("/api/status")).json();
    if (st.generation !== gen) {
      gen = st.generation;
      img.src = "/frame.svg?gen=" + gen;
      img.title = st.status;
    }
  } catch (e) {}
  setTimeout(poll, 100);
}
poll();
</script>
</body>
</html>
`

func (s *WebServer) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, indexPage)
}
