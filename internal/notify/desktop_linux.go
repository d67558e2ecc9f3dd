//go:build linux

package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"keytrail/internal/eventlog"
)

const (
	notificationsName   = "org.freedesktop.Notifications"
	notificationsPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsNotify = notificationsName + ".Notify"
)

// DesktopOverlay shows toasts through the freedesktop Notifications service.
// Each toast replaces the previous one. Watermarks go to the fallback overlay.
type DesktopOverlay struct {
	app      string
	conn     *dbus.Conn
	fallback *LogOverlay

	mu     sync.Mutex
	lastID uint32
}

// NewDesktopOverlay connects to the session bus. When no bus is reachable it
// returns a LogOverlay and logs why.
func NewDesktopOverlay(app string, logger *slog.Logger) Overlay {
	fallback := NewLogOverlay(logger)

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		fallback.Logger.Warn("desktop notifications unavailable", "error", err)
		return fallback
	}
	return &DesktopOverlay{app: app, conn: conn, fallback: fallback}
}

func (o *DesktopOverlay) WatermarkChanged(wm eventlog.Watermark) {
	o.fallback.WatermarkChanged(wm)
}

func (o *DesktopOverlay) Toast(text string, d time.Duration) {
	if err := o.notify(text, d); err != nil {
		o.fallback.Logger.Warn("desktop notification failed", "error", err)
		o.fallback.Toast(text, d)
	}
}

func (o *DesktopOverlay) notify(text string, d time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	obj := o.conn.Object(notificationsName, notificationsPath)
	call := obj.Call(notificationsNotify, 0,
		o.app,
		o.lastID,
		"",
		o.app,
		text,
		[]string{},
		map[string]dbus.Variant{},
		int32(d/time.Millisecond),
	)
	if call.Err != nil {
		return fmt.Errorf("notify: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("notify reply: %w", err)
	}
	o.lastID = id
	return nil
}

// Close releases the private bus connection.
func (o *DesktopOverlay) Close() error {
	return o.conn.Close()
}
