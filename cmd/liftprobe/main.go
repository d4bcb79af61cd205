// Command liftprobe prints the lift height and arm angle once a second,
// read either straight from the telemetry server or from a running viewer's
// /api/status.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/liftview/internal/httputil"
	"github.com/banshee-data/liftview/internal/mechanism"
	"github.com/banshee-data/liftview/internal/monitoring"
	"github.com/banshee-data/liftview/internal/sampler"
	"github.com/banshee-data/liftview/internal/telemetry"
	"github.com/banshee-data/liftview/internal/timeutil"
	"github.com/banshee-data/liftview/internal/units"
	"github.com/banshee-data/liftview/internal/version"
)

var (
	target      = flag.String("target", telemetry.DefaultClientConfig().Target, "gRPC telemetry server address")
	viewer      = flag.String("viewer", "", "Base URL of a running viewer, e.g. http://localhost:8090 (overrides -target)")
	interval    = flag.Duration("interval", time.Second, "Print interval")
	full        = flag.Bool("full", false, "Print the full status line")
	unitsArg    = flag.String("units", units.M, "Lift units: "+units.GetValidUnitsString())
	showVersion = flag.Bool("version", false, "Print version and exit")
)

var logger = monitoring.Prefixed("liftprobe")

// printer writes one line per snapshot.
type printer struct {
	out   io.Writer
	units string
	full  bool
}

func (p printer) print(s mechanism.Snapshot) {
	if p.full {
		fmt.Fprintln(p.out, mechanism.FormatStatus(s))
		return
	}
	u := p.units
	if u == "" {
		u = units.M
	}
	fmt.Fprintf(p.out, "Lift %5.2f %s  Arm %6.1f deg\n", units.ConvertLength(s.LiftExtension, u), u, s.ArmAngle)
}

// probeSource samples src every interval and prints what the sampler hands
// over. The probe loop is the sampler's render context.
func probeSource(ctx context.Context, src telemetry.Source, interval time.Duration, p printer) error {
	mb := sampler.NewMailbox()
	smp := sampler.New(src, mb, sampler.Config{Interval: interval, AcceptTimeout: interval})

	errCh := make(chan error, 1)
	go func() { errCh <- smp.Run(ctx) }()

	for {
		select {
		case err := <-errCh:
			return err
		case <-mb.Wake():
			mb.Drain(p.print)
		}
	}
}

// viewerStatus is the part of a viewer's /api/status the probe reads.
type viewerStatus struct {
	Snapshot    *mechanism.Snapshot `json:"snapshot"`
	Status      string              `json:"status"`
	RenderError string              `json:"render_error"`
}

// probeViewer polls a viewer's status endpoint every interval.
func probeViewer(ctx context.Context, c httputil.HTTPClient, base string, clock timeutil.Clock, interval time.Duration, p printer) error {
	url := strings.TrimRight(base, "/") + "/api/status"
	for {
		var st viewerStatus
		err := httputil.GetJSON(ctx, c, url, &st)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			logger.Printf("%v", err)
		case st.Snapshot == nil:
			logger.Printf("viewer shows no snapshot: %s", st.RenderError)
		default:
			p.print(*st.Snapshot)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-clock.After(interval):
		}
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("liftprobe"))
		return
	}

	if *interval <= 0 {
		log.Fatal("interval must be positive")
	}

	u, err := units.Parse(*unitsArg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	p := printer{out: os.Stdout, units: u, full: *full}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *viewer != "" {
		client := &http.Client{Timeout: 5 * time.Second}
		if err := probeViewer(ctx, client, *viewer, timeutil.RealClock{}, *interval, p); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	cfg := telemetry.DefaultClientConfig()
	cfg.Target = *target
	src, err := telemetry.NewGRPCSource(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer src.Close()
	go func() {
		if err := src.Run(ctx); err != nil {
			logger.Printf("telemetry stopped: %v", err)
		}
	}()

	if err := probeSource(ctx, src, *interval, p); err != nil {
		log.Fatalf("%v", err)
	}
}
