package recorder

import (
	"fmt"
	"time"

	"keytrail/internal/config"
	"keytrail/internal/session"
	"keytrail/internal/warning"
)

// Options configures one recording session.
type Options struct {
	// SessionID names the session and its log file. Empty generates a UUID
	// and tags the recorder's log output with it; a caller that supplies the
	// ID tags Deps.Logger itself.
	SessionID string

	LogDir    string
	Sync      session.SyncMode
	Separator string

	FlushThreshold int
	DrainThreshold int
	Speed          warning.SpeedConfig
	Hit            warning.HitConfig

	DebugKeys []string

	ExportRoot string
	AutoExport bool

	// ToastDuration is how long the "log saved" toast stays up. Zero disables it.
	ToastDuration time.Duration

	// WatermarkSeed seeds the watermark chain. Empty uses the session ID.
	WatermarkSeed string
}

// OptionsFromConfig maps a loaded configuration onto session options.
func OptionsFromConfig(cfg *config.Config) Options {
	c := cfg.Clone()
	opts := Options{
		LogDir:         config.ExpandPath(c.Recording.LogDir),
		Sync:           session.SyncMode(c.Recording.SyncMode),
		Separator:      c.Recording.Separator,
		FlushThreshold: c.Buffer.FlushThreshold,
		DrainThreshold: c.Warnings.DrainThreshold,
		Speed:          c.Warnings.SpeedTracker(),
		Hit:            c.Warnings.HitTracker(),
		DebugKeys:      c.Hotkeys.DebugKeys,
		ExportRoot:     config.ExpandPath(c.Export.Root),
		AutoExport:     c.Export.AutoExport,
	}
	if c.Notify.Toasts {
		opts.ToastDuration = time.Duration(c.Notify.ToastSeconds) * time.Second
	}
	return opts
}

// settingsLines describes the recorder's own settings for the log header.
func (o Options) settingsLines() []string {
	return []string{
		fmt.Sprintf("sync_mode = %s", o.Sync),
		fmt.Sprintf("flush_threshold = %d", o.FlushThreshold),
		fmt.Sprintf("drain_threshold = %d", o.DrainThreshold),
		fmt.Sprintf("speed = %d samples / %dms", o.Speed.MaxSamples, o.Speed.LookbackMs),
		fmt.Sprintf("hit = run %d, tolerance %dms, max gap %dms, lookback %dms",
			o.Hit.MinRun, o.Hit.ToleranceMs, o.Hit.MaxGapMs, o.Hit.LookbackMs),
	}
}
