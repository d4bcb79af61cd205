// Command liftsim stands in for the robot: it plays a scripted lift, arm and
// intake routine and publishes it to viewers over gRPC, or prints it as
// serial update lines.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/liftview/internal/monitoring"
	"github.com/banshee-data/liftview/internal/telemetry"
	"github.com/banshee-data/liftview/internal/timeutil"
	"github.com/banshee-data/liftview/internal/version"
)

var (
	listen      = flag.String("listen", telemetry.DefaultServerConfig().ListenAddr, "gRPC listen address")
	period      = flag.Duration("period", telemetry.DefaultMotion().Period, "Length of one routine")
	rate        = flag.Duration("rate", 20*time.Millisecond, "Publish interval")
	minSend     = flag.Duration("min-send-interval", telemetry.DefaultServerConfig().MinSendInterval, "Minimum time between updates to one client")
	lines       = flag.Bool("lines", false, "Print serial update lines to stdout instead of serving gRPC")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

var logger = monitoring.Prefixed("liftsim")

// simulator publishes a Motion into a table on a fixed rate.
type simulator struct {
	table  *telemetry.Table
	motion telemetry.Motion
	clock  timeutil.Clock
	rate   time.Duration

	// out, when set, receives every published value as a serial line.
	out io.Writer
}

func (s *simulator) run(ctx context.Context) error {
	start := s.clock.Now()
	ticker := s.clock.NewTicker(s.rate)
	defer ticker.Stop()

	for {
		if err := s.step(s.clock.Since(start)); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
		}
	}
}

func (s *simulator) step(elapsed time.Duration) error {
	values := s.motion.At(elapsed)
	if err := s.table.Apply(values); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if s.out == nil {
		return nil
	}
	for _, name := range telemetry.Channels() {
		line, err := telemetry.FormatLine(name, values[name])
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(s.out, line); err != nil {
			return fmt.Errorf("write line: %w", err)
		}
	}
	return nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("liftsim"))
		return
	}

	if *rate <= 0 {
		log.Fatal("rate must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := &simulator{
		table:  telemetry.NewTable(),
		motion: telemetry.Motion{Period: *period},
		clock:  timeutil.RealClock{},
		rate:   *rate,
	}

	if *lines {
		// stdout carries the lines; keep diagnostics on stderr
		sim.out = os.Stdout
	} else {
		srv := telemetry.NewServer(telemetry.ServerConfig{ListenAddr: *listen, MinSendInterval: *minSend}, sim.table)
		if err := srv.Start(); err != nil {
			log.Fatalf("failed to start telemetry server: %v", err)
		}
		defer srv.Stop()
		logger.Printf("publishing a %v routine every %v", *period, *rate)
	}

	if err := sim.run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
