// Package commands implements the luxbus-trace CLI commands.
package commands

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/luxbus-protocol/luxbus-go/pkg/buslog"
)

// parseFilterFlags registers the shared filter flags on fs and returns a
// builder that assembles the buslog.Filter after parsing.
func parseFilterFlags(fs *flag.FlagSet) func() (buslog.Filter, error) {
	session := fs.String("session", "", "Filter by session ID")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (command, line, state, error)")
	address := fs.String("address", "", "Filter by load address")

	return func() (buslog.Filter, error) {
		filter := buslog.Filter{
			SessionID: *session,
			Address:   *address,
		}

		switch *direction {
		case "":
		case "in":
			d := buslog.DirectionIn
			filter.Direction = &d
		case "out":
			d := buslog.DirectionOut
			filter.Direction = &d
		default:
			return filter, fmt.Errorf("unknown direction %q (want in or out)", *direction)
		}

		switch *category {
		case "":
		case "command":
			c := buslog.CategoryCommand
			filter.Category = &c
		case "line":
			c := buslog.CategoryLine
			filter.Category = &c
		case "state":
			c := buslog.CategoryState
			filter.Category = &c
		case "error":
			c := buslog.CategoryError
			filter.Category = &c
		default:
			return filter, fmt.Errorf("unknown category %q", *category)
		}

		return filter, nil
	}
}

// RunView prints matching events in human-readable form.
func RunView(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	buildFilter := parseFilterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one trace file, got %d", fs.NArg())
	}

	filter, err := buildFilter()
	if err != nil {
		return err
	}

	reader, err := buslog.NewFilteredReader(fs.Arg(0), filter)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
}

// formatEvent writes one event as a single line plus indented details.
func formatEvent(w io.Writer, event buslog.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [sess:%s] %-3s %s\n",
		ts, shortSessionID(event.SessionID), event.Direction.String(), event.Category.String())

	switch {
	case event.Command != nil:
		fmt.Fprintf(w, "  Text: %q\n", event.Command.Text)
		if event.Command.Priority != "" {
			fmt.Fprintf(w, "  Priority: %s\n", event.Command.Priority)
		}
		if event.Command.Address != "" {
			fmt.Fprintf(w, "  Expecting reply for: %s\n", event.Command.Address)
		}

	case event.Line != nil:
		fmt.Fprintf(w, "  Text: %q\n", event.Line.Text)
		if event.Line.Correlated {
			fmt.Fprintf(w, "  Correlated to: %s\n", event.Line.Address)
		} else {
			fmt.Fprintln(w, "  Uncorrelated (discarded)")
		}
		if event.Line.Raw != nil {
			fmt.Fprintf(w, "  Raw value: %d\n", *event.Line.Raw)
		}
		if event.Line.Latency != nil {
			fmt.Fprintf(w, "  Latency: %s\n", formatLatency(*event.Line.Latency))
		}

	case event.StateChange != nil:
		fmt.Fprintf(w, "  %s -> %s\n", event.StateChange.OldState, event.StateChange.NewState)
		if event.StateChange.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", event.StateChange.Reason)
		}

	case event.Error != nil:
		fmt.Fprintf(w, "  Error: %s\n", event.Error.Message)
		if event.Error.Context != "" {
			fmt.Fprintf(w, "  While: %s\n", event.Error.Context)
		}
	}

	fmt.Fprintln(w)
}

func shortSessionID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
}
