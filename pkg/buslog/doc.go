// Package buslog provides structured protocol tracing for the LuxBus
// engine.
//
// It defines the Logger interface and Event types for capturing every
// exchange on the serial bus: commands written, lines received, state
// changes and errors. Tracing is separate from operational logging
// (slog) - it produces a complete machine-readable record of bus traffic
// for debugging timing and correlation problems.
//
// # Basic Usage
//
// Applications configure tracing by providing a Logger implementation:
//
//	// For development: trace to console via slog
//	cfg.TraceLogger = buslog.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.TraceLogger, _ = buslog.NewFileLogger("/var/log/luxbus/bus.ltrace")
//
//	// Both: use MultiLogger
//	cfg.TraceLogger = buslog.NewMultiLogger(
//	    buslog.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Trace files use CBOR encoding with .ltrace extension. The luxbus-trace
// CLI tool provides viewing, filtering and summary statistics.
package buslog
