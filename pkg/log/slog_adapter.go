package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes telemetry events to an slog.Logger.
// Useful for development when you want to see events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger. Errors log at Warn level,
// everything else at Debug.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("category", event.Category.String()),
	}

	level := slog.LevelDebug

	switch {
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("from", event.StateChange.From),
			slog.String("to", event.StateChange.To),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Subscription != nil:
		attrs = append(attrs,
			slog.String("action", event.Subscription.Action.String()),
			slog.Int("parameters", len(event.Subscription.Parameters)),
		)
	case event.Interest != nil:
		attrs = append(attrs,
			slog.Int("tokens", event.Interest.Tokens),
			slog.Int("parameters", len(event.Interest.Parameters)),
		)
	case event.Scan != nil:
		attrs = append(attrs, slog.Int("codes", len(event.Scan.Codes)))
	case event.Drop != nil:
		attrs = append(attrs,
			slog.Uint64("parameter", uint64(event.Drop.Parameter)),
			slog.String("reason", event.Drop.Reason),
		)
	case event.Error != nil:
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("op", event.Error.Op),
			slog.String("error", event.Error.Message),
		)
	}

	a.logger.LogAttrs(context.Background(), level, "telemetry event", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
