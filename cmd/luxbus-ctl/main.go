// Command luxbus-ctl is an interactive operator console for a lighting
// bus controller attached over RS-232.
//
// It loads the bus layout from a YAML configuration file, opens the
// serial channel, starts background status polling, and drops into an
// interactive shell.
//
// Usage:
//
//	luxbus-ctl -config <file.yaml> [flags]
//
// Flags:
//
//	-config string   Configuration file path (required)
//	-device string   Serial device override (default from config)
//	-trace string    Write a CBOR wire trace to this file (default from config)
//	-debug           Echo wire traffic to the console
//	-no-poll         Do not start background polling
//
// Examples:
//
//	# Open the bus described in house.yaml
//	luxbus-ctl -config house.yaml
//
//	# Record a wire trace for later analysis with luxbus-trace
//	luxbus-ctl -config house.yaml -trace session.ltrace
//
//	# Debug a flaky module without polling noise
//	luxbus-ctl -config house.yaml -no-poll -debug
//
// Interactive Commands:
//
//	loads                 - List configured loads and last known levels
//	on <load>             - Turn a load on (debounced full-on)
//	off <load>            - Turn a load off
//	dim <load> <percent>  - Set a dimmer level
//	query <load>          - Read a load's current value
//	watch                 - Toggle live status printing
//	poll on|off           - Start/stop background polling
//	status                - Show connection and queue state
//	quit                  - Close the bus and exit
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/luxbus-protocol/luxbus-go/cmd/luxbus-ctl/shell"
	"github.com/luxbus-protocol/luxbus-go/pkg/buslog"
	"github.com/luxbus-protocol/luxbus-go/pkg/config"
	"github.com/luxbus-protocol/luxbus-go/pkg/controller"
)

var (
	configPath = flag.String("config", "", "Configuration file path (required)")
	device     = flag.String("device", "", "Serial device override")
	traceFile  = flag.String("trace", "", "Write a CBOR wire trace to this file")
	debug      = flag.Bool("debug", false, "Echo wire traffic to the console")
	noPoll     = flag.Bool("no-poll", false, "Do not start background polling")
)

func main() {
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "luxbus-ctl: -config is required")
		flag.Usage()
		os.Exit(1)
	}

	file, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Loading configuration: %v", err)
	}

	cfg := file.Controller()
	if *device != "" {
		cfg.Device = *device
	}

	tracer, closeTrace, err := buildTracer(file, *traceFile, *debug || file.Debug)
	if err != nil {
		log.Fatalf("Setting up trace logging: %v", err)
	}
	defer closeTrace()
	cfg.TraceLogger = tracer

	ctl, err := controller.New(cfg)
	if err != nil {
		log.Fatalf("Invalid bus configuration: %v", err)
	}

	log.Printf("Opening %s (%d baud, %d loads)", cfg.Device, cfg.BaudRate, len(cfg.Loads))
	if err := ctl.Open(); err != nil {
		log.Fatalf("Opening serial channel: %v", err)
	}
	defer ctl.Close()

	if !*noPoll {
		ctl.StartPolling()
	}

	sh, err := shell.New(ctl)
	if err != nil {
		log.Fatalf("Starting shell: %v", err)
	}

	// Close the bus cleanly on Ctrl-C delivered outside the shell.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		sh.Interrupt()
	}()

	sh.Run()
}

// buildTracer assembles the trace logger: a CBOR file logger, a console
// slog adapter, both, or neither.
func buildTracer(file *config.File, override string, debug bool) (buslog.Logger, func(), error) {
	path := file.TraceFile
	if override != "" {
		path = override
	}

	var loggers []buslog.Logger
	closeTrace := func() {}

	if path != "" {
		fl, err := buslog.NewFileLogger(path)
		if err != nil {
			return nil, nil, err
		}
		loggers = append(loggers, fl)
		closeTrace = func() { fl.Close() }
	}
	if debug {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		loggers = append(loggers, buslog.NewSlogAdapter(slog.New(handler)))
	}

	switch len(loggers) {
	case 0:
		return nil, closeTrace, nil
	case 1:
		return loggers[0], closeTrace, nil
	default:
		return buslog.NewMultiLogger(loggers...), closeTrace, nil
	}
}
