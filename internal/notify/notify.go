// Package notify is the boundary to whatever renders the recording overlay.
// The recorder only produces values; an Overlay decides how to show them.
package notify

import (
	"log/slog"
	"time"

	"keytrail/internal/eventlog"
)

// Overlay consumes watermark updates and toast requests. Implementations must
// not block the tick loop.
type Overlay interface {
	WatermarkChanged(wm eventlog.Watermark)
	Toast(text string, d time.Duration)
}

// NopOverlay discards everything.
type NopOverlay struct{}

func (NopOverlay) WatermarkChanged(eventlog.Watermark) {}
func (NopOverlay) Toast(string, time.Duration)         {}

// LogOverlay writes overlay events to a logger. Watermarks are logged at
// debug level since they change on every key.
type LogOverlay struct {
	Logger *slog.Logger
}

// NewLogOverlay returns a LogOverlay; a nil logger uses slog.Default.
func NewLogOverlay(logger *slog.Logger) *LogOverlay {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogOverlay{Logger: logger.With("component", "overlay")}
}

func (o *LogOverlay) WatermarkChanged(wm eventlog.Watermark) {
	o.Logger.Debug("watermark changed", "number", wm.NumberString(), "color", "#"+wm.Color.Hex())
}

func (o *LogOverlay) Toast(text string, d time.Duration) {
	o.Logger.Info("toast", "text", text, "duration", d)
}
