//go:build !linux

package notify

import "log/slog"

// NewDesktopOverlay falls back to logging where no notification service is
// wired up.
func NewDesktopOverlay(app string, logger *slog.Logger) Overlay {
	return NewLogOverlay(logger)
}
