package buslog

import (
	"context"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger.
// Useful for development when you want to see bus traffic in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("category", event.Category.String()),
	}

	if event.Device != "" {
		attrs = append(attrs, slog.String("device", event.Device))
	}

	// Add type-specific attributes
	switch {
	case event.Command != nil:
		attrs = append(attrs, slog.String("text", event.Command.Text))
		if event.Command.Priority != "" {
			attrs = append(attrs, slog.String("priority", event.Command.Priority))
		}
		if event.Command.Address != "" {
			attrs = append(attrs, slog.String("address", event.Command.Address))
		}
	case event.Line != nil:
		attrs = append(attrs,
			slog.String("text", event.Line.Text),
			slog.Bool("correlated", event.Line.Correlated),
		)
		if event.Line.Address != "" {
			attrs = append(attrs, slog.String("address", event.Line.Address))
		}
		if event.Line.Raw != nil {
			attrs = append(attrs, slog.Int("raw", *event.Line.Raw))
		}
		if event.Line.Latency != nil {
			attrs = append(attrs, slog.Duration("latency", *event.Line.Latency))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs, slog.String("error_msg", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "bus", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
