package commands

import (
	"flag"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/luxbus-protocol/luxbus-go/pkg/buslog"
)

// Stats holds aggregate statistics about a trace file.
type Stats struct {
	TotalEvents int
	Commands    int
	Lines       int
	Correlated  int
	StateEvents int
	Errors      int

	ByAddress map[string]*AddressStats
	Sessions  map[string]int

	TimeRange struct {
		Start time.Time
		End   time.Time
	}
}

// AddressStats holds per-load statistics.
type AddressStats struct {
	Commands   int
	Replies    int
	LastRaw    *int
	MaxLatency time.Duration
}

// Collect aggregates statistics from a trace file.
func Collect(path string) (*Stats, error) {
	reader, err := buslog.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		ByAddress: make(map[string]*AddressStats),
		Sessions:  make(map[string]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.Sessions[event.SessionID]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		switch {
		case event.Command != nil:
			stats.Commands++
			if addr := event.Command.Address; addr != "" {
				stats.addr(addr).Commands++
			}

		case event.Line != nil:
			stats.Lines++
			if event.Line.Correlated {
				stats.Correlated++
			}
			if addr := event.Line.Address; addr != "" {
				as := stats.addr(addr)
				as.Replies++
				if event.Line.Raw != nil {
					as.LastRaw = event.Line.Raw
				}
				if event.Line.Latency != nil && *event.Line.Latency > as.MaxLatency {
					as.MaxLatency = *event.Line.Latency
				}
			}

		case event.StateChange != nil:
			stats.StateEvents++

		case event.Error != nil:
			stats.Errors++
		}
	}

	return stats, nil
}

func (s *Stats) addr(address string) *AddressStats {
	as, ok := s.ByAddress[address]
	if !ok {
		as = &AddressStats{}
		s.ByAddress[address] = as
	}
	return as
}

// RunStats analyzes a trace file and prints statistics.
func RunStats(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one trace file, got %d", fs.NArg())
	}

	stats, err := Collect(fs.Arg(0))
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Events:       %d\n", stats.TotalEvents)
	fmt.Fprintf(w, "Sessions:     %d\n", len(stats.Sessions))
	if !stats.TimeRange.Start.IsZero() {
		fmt.Fprintf(w, "Time range:   %s .. %s (%s)\n",
			stats.TimeRange.Start.UTC().Format(time.RFC3339),
			stats.TimeRange.End.UTC().Format(time.RFC3339),
			stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Commands:     %d\n", stats.Commands)
	fmt.Fprintf(w, "Lines:        %d (%d correlated, %d discarded)\n",
		stats.Lines, stats.Correlated, stats.Lines-stats.Correlated)
	fmt.Fprintf(w, "State events: %d\n", stats.StateEvents)
	fmt.Fprintf(w, "Errors:       %d\n", stats.Errors)

	if len(stats.ByAddress) == 0 {
		return nil
	}

	addresses := make([]string, 0, len(stats.ByAddress))
	for addr := range stats.ByAddress {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	fmt.Fprintf(w, "\n%-6s %9s %9s %9s %12s\n", "ADDR", "QUERIES", "REPLIES", "LAST RAW", "MAX LATENCY")
	for _, addr := range addresses {
		as := stats.ByAddress[addr]
		lastRaw := "-"
		if as.LastRaw != nil {
			lastRaw = fmt.Sprintf("%d", *as.LastRaw)
		}
		latency := "-"
		if as.MaxLatency > 0 {
			latency = formatLatency(as.MaxLatency)
		}
		fmt.Fprintf(w, "%-6s %9d %9d %9s %12s\n", addr, as.Commands, as.Replies, lastRaw, latency)
	}
	return nil
}
