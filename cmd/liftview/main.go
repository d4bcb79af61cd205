// Command liftview shows a live side view of the robot's lift, arm and
// intake. It samples telemetry at a fixed rate and draws into a desktop
// window, a headless web page, or both.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/liftview/internal/config"
	"github.com/banshee-data/liftview/internal/display"
	"github.com/banshee-data/liftview/internal/fsutil"
	"github.com/banshee-data/liftview/internal/mechanism"
	"github.com/banshee-data/liftview/internal/monitoring"
	"github.com/banshee-data/liftview/internal/sampler"
	"github.com/banshee-data/liftview/internal/serialmux"
	"github.com/banshee-data/liftview/internal/telemetry"
	"github.com/banshee-data/liftview/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to a JSON config file (built-in defaults when empty)")
	source      = flag.String("source", "", "Telemetry source: grpc, serial, mock or none")
	target      = flag.String("target", "", "gRPC telemetry server address")
	port        = flag.String("port", "", "Serial port for the serial source")
	preset      = flag.String("preset", "", "Geometry preset")
	listen      = flag.String("listen", "", "Web host listen address; \"off\" disables it")
	captureDir  = flag.String("capture-dir", "", "Directory for frames saved with POST /api/capture")
	headless    = flag.Bool("headless", false, "Do not open a window; serve frames over HTTP only")
	interval    = flag.Duration("interval", 0, "Sampling interval")
	listPorts   = flag.Bool("list-ports", false, "List serial ports and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

var logger = monitoring.Prefixed("liftview")

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("liftview"))
		return
	}
	if *listPorts {
		names, err := serialmux.PortNames()
		if err != nil {
			log.Fatalf("failed to list serial ports: %v", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	cfg, err := loadConfig(*configFile, flag.CommandLine)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, display.RunWindow); err != nil {
		log.Fatalf("%v", err)
	}
}

// loadConfig reads the config file, if any, and applies the flags that were
// set explicitly on fs.
func loadConfig(path string, fs *flag.FlagSet) (*config.ViewerConfig, error) {
	cfg := config.EmptyViewerConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadViewerConfig(path); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "source":
			cfg.Source = &v
		case "target":
			cfg.GRPCTarget = &v
		case "port":
			cfg.SerialPort = &v
		case "preset":
			cfg.Preset = &v
		case "listen":
			if v == "off" {
				v = ""
			}
			cfg.ListenAddr = &v
		case "capture-dir":
			cfg.CaptureDir = &v
		case "headless":
			b := v == "true"
			cfg.Headless = &b
		case "interval":
			cfg.Interval = &v
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// telemetryLink is the source the sampler reads plus whatever keeps it
// current.
type telemetryLink struct {
	source telemetry.Source
	run    func(context.Context) error
	admin  func(*http.ServeMux)
	close  func() error
}

func openTelemetry(cfg *config.ViewerConfig) (*telemetryLink, error) {
	switch kind := cfg.GetSource(); kind {
	case config.SourceGRPC:
		cc := telemetry.DefaultClientConfig()
		cc.Target = cfg.GetGRPCTarget()
		cc.ClientID = cfg.GetClientID()
		src, err := telemetry.NewGRPCSource(cc)
		if err != nil {
			return nil, err
		}
		logger.Printf("watching %s as %s", cc.Target, src.ClientID())
		return &telemetryLink{source: src, run: src.Run, close: src.Close}, nil

	case config.SourceSerial, config.SourceMock:
		var mux serialmux.SerialMuxInterface
		if kind == config.SourceSerial {
			port, err := serialmux.NewRealSerialMux(cfg.GetSerialPort(), cfg.GetSerialOptions())
			if err != nil {
				return nil, err
			}
			mux = port
			logger.Printf("reading %s", cfg.GetSerialPort())
		} else {
			lines, err := telemetry.DefaultMotion().Lines(cfg.GetInterval())
			if err != nil {
				return nil, err
			}
			// one line per channel per sample, so the routine plays in real time
			step := cfg.GetInterval() / time.Duration(len(telemetry.Channels()))
			mux = serialmux.NewMockSerialMux(lines, step)
			logger.Printf("replaying a scripted routine")
		}
		src := telemetry.NewLineSource(mux)
		return &telemetryLink{source: src, run: src.Run, admin: mux.AttachAdminRoutes, close: mux.Close}, nil

	case config.SourceNone:
		logger.Printf("no telemetry source; showing defaults")
		mux := serialmux.NewDisabledSerialMux()
		src := telemetry.NewLineSource(mux)
		return &telemetryLink{source: src, run: src.Run, admin: mux.AttachAdminRoutes, close: mux.Close}, nil

	default:
		return nil, fmt.Errorf("unknown telemetry source %q", kind)
	}
}

// windowFunc opens the desktop window; swapped out in tests.
type windowFunc func(context.Context, *display.Host, display.WindowConfig) error

func run(ctx context.Context, cfg *config.ViewerConfig, openWindow windowFunc) error {
	geometry, err := mechanism.Preset(cfg.GetPreset())
	if err != nil {
		return err
	}
	renderer, err := mechanism.NewRenderer(geometry)
	if err != nil {
		return err
	}

	link, err := openTelemetry(cfg)
	if err != nil {
		return fmt.Errorf("failed to open telemetry: %w", err)
	}
	if link.close != nil {
		defer link.close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mailbox := sampler.NewMailbox()
	smp := sampler.New(link.source, mailbox, sampler.Config{
		Interval:      cfg.GetInterval(),
		AcceptTimeout: cfg.GetAcceptTimeout(),
	})
	host := display.NewHost(renderer, mailbox, cfg.GetWindowWidth(), cfg.GetWindowHeight())

	var wg sync.WaitGroup
	if link.run != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := link.run(ctx); err != nil {
				logger.Printf("telemetry stopped: %v", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := smp.Run(ctx); err != nil {
			// the display keeps showing the last snapshot
			logger.Printf("%v", err)
		}
	}()

	if addr := cfg.GetListenAddr(); addr != "" {
		opts := []display.WebOption{display.WithSampler(smp), display.WithPreset(cfg.GetPreset())}
		if dir := cfg.GetCaptureDir(); dir != "" {
			opts = append(opts, display.WithCapturer(display.NewCapturer(fsutil.OSFileSystem{}, dir)))
		}
		if link.admin != nil {
			opts = append(opts, display.WithAdminRoutes(link.admin))
		}
		web := display.NewWebServer(host, opts...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := web.ListenAndServe(ctx, addr); err != nil {
				logger.Printf("web host: %v", err)
				cancel()
			}
		}()
	}

	if cfg.GetHeadless() {
		err = host.Run(ctx)
	} else {
		wc := display.DefaultWindowConfig()
		wc.Title = "liftview " + version.Version
		wc.Width, wc.Height = cfg.GetWindowWidth(), cfg.GetWindowHeight()
		err = openWindow(ctx, host, wc)
		if err != nil && cfg.GetListenAddr() != "" && ctx.Err() == nil {
			logger.Printf("window unavailable (%v); continuing headless", err)
			err = host.Run(ctx)
		}
	}
	cancel()
	wg.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
