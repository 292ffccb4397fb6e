// Command obd-web serves a JSON API over a telemetry engine.
//
// It runs the engine against an OBD adapter (currently the built-in
// simulator) and exposes connection control, interest registration, live
// statistics, and trouble codes over HTTP.
//
// Usage:
//
//	obd-web [flags]
//
// Flags:
//
//	-addr string       HTTP listen address (default ":8080")
//	-config string     Configuration file path (YAML)
//	-adapter string    Adapter to use: "sim" (default "sim")
//	-event-log string  Write CBOR event log to this file
//
// Examples:
//
//	# Serve the API on the default port
//	obd-web
//
//	# Custom port with an event log
//	obd-web -addr :9000 -event-log /tmp/session.cbor
package main

import (
	"context"
	"flag"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obdkit/obdkit-go/internal/sim"
	"github.com/obdkit/obdkit-go/pkg/dtc"
	"github.com/obdkit/obdkit-go/pkg/log"
	"github.com/obdkit/obdkit-go/pkg/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	configFile := flag.String("config", "", "Configuration file path (YAML)")
	adapter := flag.String("adapter", "sim", `Adapter to use: "sim"`)
	eventLog := flag.String("event-log", "", "Write CBOR event log to this file")
	flag.Parse()

	cfg := telemetry.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = telemetry.LoadConfig(*configFile)
		if err != nil {
			stdlog.Printf("Failed to load config: %v", err)
			return 1
		}
	}
	if *adapter != "" {
		cfg.Adapter = *adapter
	}
	if *eventLog != "" {
		cfg.EventLog = *eventLog
	}

	if cfg.Adapter != "" && cfg.Adapter != "sim" {
		stdlog.Printf("Unknown adapter %q (supported: sim)", cfg.Adapter)
		return 1
	}

	var logger log.Logger
	if cfg.EventLog != "" {
		fl, err := log.NewFileLogger(cfg.EventLog)
		if err != nil {
			stdlog.Printf("Failed to open event log: %v", err)
			return 1
		}
		defer fl.Close()
		logger = fl
	}

	tp := sim.New(sim.Config{
		Codes: []dtc.Code{dtc.MustParse("P0301"), dtc.MustParse("P0420")},
	})

	engine := telemetry.New(cfg, tp, logger)
	defer engine.Close()

	srv := &http.Server{
		Addr:    *addr,
		Handler: NewServer(engine).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		stdlog.Printf("Serving on %s (session %s)", *addr, engine.SessionID())
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		stdlog.Printf("Received signal: %v", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			stdlog.Printf("Server failed: %v", err)
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		stdlog.Printf("Shutdown error: %v", err)
	}

	return 0
}
