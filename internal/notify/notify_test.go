package notify

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"keytrail/internal/eventlog"
)

func TestLogOverlay(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	o := NewLogOverlay(logger)

	o.WatermarkChanged(eventlog.Watermark{Number: 42, Color: eventlog.Color{R: 0xAB, A: 0xFF}})
	o.Toast("Log saved", 3*time.Second)

	out := buf.String()
	assert.Contains(t, out, "number=00000042")
	assert.Contains(t, out, "color=#AB0000FF")
	assert.Contains(t, out, `text="Log saved"`)
	assert.Contains(t, out, "component=overlay")
}

func TestNopOverlay(t *testing.T) {
	var o Overlay = NopOverlay{}
	o.WatermarkChanged(eventlog.Watermark{})
	o.Toast("ignored", time.Second)
}
