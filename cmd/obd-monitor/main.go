// Command obd-monitor is an interactive vehicle telemetry monitor.
//
// It connects a telemetry engine to an OBD adapter (currently the built-in
// simulator) and exposes an interactive console for registering parameter
// interest, inspecting live statistics, and reading trouble codes.
//
// Usage:
//
//	obd-monitor [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-adapter string    Adapter to use: "sim" (default "sim")
//	-event-log string  Write CBOR event log to this file
//	-metrics string    Serve Prometheus metrics on this address
//	-no-scan           Skip the trouble-code scan on connect
//
// Interactive Commands:
//
//	connect               - Connect to the adapter
//	disconnect            - Disconnect and discard statistics
//	status                - Show connection state
//	watch <pid>...        - Replace this console's interest set
//	unwatch               - Clear this console's interest set
//	interest              - Show the aggregated interested set
//	stats [pid]           - Show parameter statistics
//	reset [pid|all]       - Reset min/max windows
//	codes                 - Show trouble codes from the last scan
//	params                - List known parameters
//	discover              - Browse for adapters on the local network
//	quit                  - Exit
package main

import (
	"context"
	"flag"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obdkit/obdkit-go/internal/sim"
	"github.com/obdkit/obdkit-go/pkg/dtc"
	"github.com/obdkit/obdkit-go/pkg/log"
	"github.com/obdkit/obdkit-go/pkg/metrics"
	"github.com/obdkit/obdkit-go/pkg/telemetry"
	"github.com/obdkit/obdkit-go/pkg/transport"
)

type options struct {
	configFile  string
	adapter     string
	eventLog    string
	metricsAddr string
	noScan      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&opts.adapter, "adapter", "sim", `Adapter to use: "sim"`)
	flag.StringVar(&opts.eventLog, "event-log", "", "Write CBOR event log to this file")
	flag.StringVar(&opts.metricsAddr, "metrics", "", "Serve Prometheus metrics on this address")
	flag.BoolVar(&opts.noScan, "no-scan", false, "Skip the trouble-code scan on connect")
	flag.Parse()

	cfg := telemetry.DefaultConfig()
	if opts.configFile != "" {
		var err error
		cfg, err = telemetry.LoadConfig(opts.configFile)
		if err != nil {
			stdlog.Fatalf("Failed to load config: %v", err)
		}
	}
	if opts.adapter != "" {
		cfg.Adapter = opts.adapter
	}
	if opts.eventLog != "" {
		cfg.EventLog = opts.eventLog
	}
	if opts.metricsAddr != "" {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if opts.noScan {
		cfg.ScanOnConnect = false
	}

	tp, err := buildTransport(cfg.Adapter)
	if err != nil {
		stdlog.Fatalf("Failed to create adapter: %v", err)
	}

	var logger log.Logger
	if cfg.EventLog != "" {
		fl, err := log.NewFileLogger(cfg.EventLog)
		if err != nil {
			stdlog.Fatalf("Failed to open event log: %v", err)
		}
		defer fl.Close()
		logger = fl
	}

	engine := telemetry.New(cfg, tp, logger)
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MetricsAddr != "" {
		collector := metrics.NewCollector(engine, cfg.Adapter)
		defer collector.Close()
		go collector.Run(ctx, 5*time.Second)

		srv := metrics.NewServer(cfg.MetricsAddr, slogLogger())
		srv.Start()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	console, err := newConsole(engine)
	if err != nil {
		stdlog.Fatalf("Failed to create console: %v", err)
	}
	// Redirect log output through readline to avoid interfering with input.
	stdlog.SetOutput(console.Stdout())
	go console.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		stdlog.Printf("Received signal: %v", sig)
	case <-ctx.Done():
	}

	stdlog.Println("Shutting down...")
}

func slogLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// buildTransport maps the adapter name to a transport implementation.
func buildTransport(name string) (transport.Transport, error) {
	switch name {
	case "", "sim":
		return sim.New(sim.Config{
			Codes: []dtc.Code{dtc.MustParse("P0301"), dtc.MustParse("P0420")},
		}), nil
	default:
		return nil, errUnknownAdapter(name)
	}
}

type errUnknownAdapter string

func (e errUnknownAdapter) Error() string {
	return `unknown adapter "` + string(e) + `" (supported: sim)`
}
