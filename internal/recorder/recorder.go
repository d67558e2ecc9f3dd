// Package recorder runs one recording session: it turns each tick's key
// transitions into encrypted log lines, feeds the warning trackers and the
// debug hotkey tracker, and finalizes the log on close.
//
// A Recorder is driven from a single goroutine. Hot-path failures are logged
// and counted, never returned to the tick driver.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"keytrail/internal/buffer"
	"keytrail/internal/eventlog"
	"keytrail/internal/hotkey"
	"keytrail/internal/input"
	"keytrail/internal/notify"
	"keytrail/internal/savedlog"
	"keytrail/internal/session"
	"keytrail/internal/settings"
	"keytrail/internal/store"
	"keytrail/internal/warning"
)

// Errors
var (
	ErrAlreadyStarted = errors.New("recorder: session already started")
	ErrNotStarted     = errors.New("recorder: session not started")
	ErrNoCipher       = errors.New("recorder: no line cipher configured")
)

// Catalog persists finalized sessions. *store.Store implements it.
type Catalog interface {
	InsertSavedLog(rec *store.SavedLog) (int64, error)
	InsertActivations(sessionID string, acts []hotkey.Activation) error
	PutSessionStats(st *store.SessionStats) error
}

// Deps are the collaborators a Recorder talks to. Only Cipher is required.
type Deps struct {
	Cipher   session.Encrypter
	Logger   *slog.Logger
	Overlay  notify.Overlay
	Catalog  Catalog
	Index    *savedlog.Index
	Settings []settings.Provider
	Now      func() time.Time
}

// logWriter is the part of *session.Writer a Recorder uses.
type logWriter interface {
	WriteLine(line string) error
	WriteLines(lines []string) error
	WriteBlock(lines []string) error
	Close() error
	Path() string
}

func openSessionLog(path string, c session.Encrypter, opts session.Options) (logWriter, error) {
	w, err := session.Open(path, c, opts)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// TickInput is everything observed during one tick.
type TickInput struct {
	TimestampMs int64
	Room        string

	// FrameSeconds is the duration of the last frame. Zero keeps the previous
	// frame rate.
	FrameSeconds float64

	Transitions []input.KeyTransition

	// Dropped counts transitions the input queue discarded since the last tick.
	Dropped int
}

// CloseInfo names the export folders of the finished session.
type CloseInfo struct {
	RootFolder       string
	BossFolder       string
	DifficultyFolder string
}

// Recorder owns one session log from Start to Close.
type Recorder struct {
	opts Options
	deps Deps
	log  *slog.Logger

	id      string
	open    func(string, session.Encrypter, session.Options) (logWriter, error)
	writer  logWriter
	encoder *eventlog.Encoder
	chain   *eventlog.WatermarkChain
	frames  eventlog.FrameRate
	section *buffer.Section
	speed   *warning.SpeedTracker
	hit     *warning.HitTracker
	hotkeys *hotkey.Tracker

	started bool
	closed  bool
	saved   savedlog.Info

	startMs int64
	prevMs  int64
	stats   store.SessionStats
}

// New prepares a Recorder. Nothing touches the filesystem until Start.
func New(opts Options, deps Deps) *Recorder {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Overlay == nil {
		deps.Overlay = notify.NopOverlay{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.DrainThreshold < 1 {
		opts.DrainThreshold = 1
	}

	log := deps.Logger.With(slog.String("component", "recorder"))
	id := opts.SessionID
	if id == "" {
		id = uuid.NewString()
		log = log.With(slog.String("session_id", id))
	}
	seed := opts.WatermarkSeed
	if seed == "" {
		seed = id
	}

	return &Recorder{
		opts:    opts,
		deps:    deps,
		log:     log,
		id:      id,
		open:    openSessionLog,
		encoder: eventlog.NewEncoder(),
		chain:   eventlog.NewWatermarkChain(seed),
		section: buffer.NewSection(opts.FlushThreshold),
		speed:   warning.NewSpeedTracker(opts.Speed),
		hit:     warning.NewHitTracker(opts.Hit),
		hotkeys: hotkey.NewTracker(opts.DebugKeys),
		stats:   store.SessionStats{SessionID: id},
	}
}

// ID returns the session identifier, also the log file's base name.
func (r *Recorder) ID() string {
	return r.id
}

// Path returns the session log path.
func (r *Recorder) Path() string {
	return filepath.Join(r.opts.LogDir, r.id+".log")
}

// Start opens the session log and writes the settings header. startMs is the
// session start; the first record's delta is measured from it.
func (r *Recorder) Start(ctx context.Context, startMs int64) error {
	if r.started {
		return ErrAlreadyStarted
	}
	if r.deps.Cipher == nil {
		return ErrNoCipher
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	w, err := r.open(r.Path(), r.deps.Cipher, session.Options{
		Sync:      r.opts.Sync,
		Separator: r.opts.Separator,
	})
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}

	providers := append([]settings.Provider{settings.Static{Label: "keytrail", Lines: r.opts.settingsLines()}}, r.deps.Settings...)
	header := []string{
		"session " + r.id,
		"started " + r.deps.Now().UTC().Format(time.RFC3339),
	}
	header = append(header, settings.Block(settings.Resolve(providers))...)

	if err := w.WriteBlock(header); err != nil {
		return errors.Join(fmt.Errorf("write header: %w", err), w.Close())
	}

	r.writer = w
	r.started = true
	r.startMs = startMs
	r.prevMs = startMs
	r.stats.StartedMs = startMs
	r.stats.EndedMs = startMs

	r.log.Info("session started", "path", w.Path(), "start_ms", startMs)
	return nil
}

// Tick records every transition observed during one tick. All transitions
// share the tick's timestamp, in the order given.
func (r *Recorder) Tick(in TickInput) {
	if !r.started || r.closed {
		r.log.Debug("tick outside session ignored", "ts", in.TimestampMs)
		return
	}

	if in.Dropped > 0 {
		r.stats.Dropped += int64(in.Dropped)
		r.log.Warn("input queue overflowed", "dropped", in.Dropped, "ts", in.TimestampMs)
	}

	fps := r.frames.Observe(in.FrameSeconds)

	for _, tr := range in.Transitions {
		r.record(in.Room, in.TimestampMs, tr, fps)
	}
	if in.TimestampMs > r.stats.EndedMs {
		r.stats.EndedMs = in.TimestampMs
	}

	r.drainWarnings(false)
	if r.section.ShouldFlush() {
		r.flush()
	}
}

// record logs one transition. The watermark chain and the delta base only
// move once the line is on disk, so the log alone reproduces every watermark.
// Trackers see the press even when the write fails.
func (r *Recorder) record(room string, ts int64, tr input.KeyTransition, fps float64) {
	step := r.chain.Next(tr.KeyID, tr.Transition)

	_, line, err := r.encoder.Encode(r.prevMs, ts, tr.KeyID, tr.Transition, step.Watermark, fps)
	if err != nil {
		r.log.Warn("event dropped", "key", tr.KeyID, "ts", ts, "prev_ts", r.prevMs, "error", err)
		return
	}

	prev := r.prevMs
	if err := r.writer.WriteLine(line); err != nil {
		r.stats.WriteErrors++
		r.log.Error("write event", "key", tr.KeyID, "ts", ts, "error", err)
	} else {
		r.chain.Commit(step)
		r.stats.Records++
		r.prevMs = ts
		r.deps.Overlay.WatermarkChanged(step.Watermark)
	}

	if tr.Transition != eventlog.Press {
		return
	}
	r.speed.Update(room, ts)
	r.hit.Update(room, ts)

	if r.hotkeys.IsDebugKey(tr.KeyID) {
		r.hotkeys.TrackActivation(tr.KeyID, room, prev, ts)
		r.log.Info("debug hotkey", "key", tr.KeyID, "room", room, "ts", ts)
	}
}

// drainWarnings moves tracker warnings into the section once enough are
// pending, or unconditionally when force is set.
func (r *Recorder) drainWarnings(force bool) {
	speed, hit := r.speed.Warnings(), r.hit.Warnings()
	n := len(speed) + len(hit)
	if n == 0 || (!force && n < r.opts.DrainThreshold) {
		return
	}

	all := append(speed, hit...)
	slices.SortStableFunc(all, func(a, b warning.Warning) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})

	r.section.AddRange(warning.Lines(all))
	r.speed.ClearWarnings()
	r.hit.ClearWarnings()
	r.stats.Warnings += int64(n)

	r.log.Debug("warnings drained", "count", n, "pending", r.section.Len())
}

func (r *Recorder) flush() {
	if err := r.section.Flush(r.writer); err != nil {
		r.stats.WriteErrors++
		r.log.Error("flush warnings", "pending", r.section.Len(), "error", err)
	}
}

// Close finalizes the session: remaining warnings are written, the footer is
// appended, the log is closed and indexed, and the saved log is persisted and
// optionally exported. Only the first call does any work; later calls return
// the same Info and a nil error.
func (r *Recorder) Close(ctx context.Context, ci CloseInfo) (savedlog.Info, error) {
	if !r.started {
		return savedlog.Info{}, ErrNotStarted
	}
	if r.closed {
		return r.saved, nil
	}
	r.closed = true

	var errs []error

	r.drainWarnings(true)
	if r.section.Len() > 0 {
		r.flush()
	}

	acts := r.hotkeys.Activations()
	footer := []string{
		fmt.Sprintf("ended %d", r.stats.EndedMs),
		fmt.Sprintf("records %d", r.stats.Records),
		fmt.Sprintf("warnings %d", r.stats.Warnings),
		fmt.Sprintf("activations %d", len(acts)),
	}
	if err := r.writer.WriteBlock(footer); err != nil {
		r.log.Error("write footer", "error", err)
	}
	if err := r.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close session log: %w", err))
	}

	info := savedlog.Info{
		SourcePath:       r.writer.Path(),
		RootFolder:       ci.RootFolder,
		BossFolder:       ci.BossFolder,
		DifficultyFolder: ci.DifficultyFolder,
	}.Normalize()
	r.saved = info
	if r.deps.Index != nil {
		r.deps.Index.Set(info)
	}

	if err := r.persist(info, acts); err != nil {
		errs = append(errs, err)
	}

	if r.opts.AutoExport && ctx.Err() == nil {
		dest, err := savedlog.Export(r.opts.ExportRoot, info)
		if err != nil {
			errs = append(errs, fmt.Errorf("export: %w", err))
		} else {
			r.log.Info("log exported", "dest", dest)
		}
	}

	if r.opts.ToastDuration > 0 {
		r.deps.Overlay.Toast("Log saved: "+info.FileName(), r.opts.ToastDuration)
	}

	r.log.Info("session closed",
		"path", info.SourcePath,
		"records", r.stats.Records,
		"warnings", r.stats.Warnings,
		"write_errors", r.stats.WriteErrors,
	)
	return info, errors.Join(errs...)
}

func (r *Recorder) persist(info savedlog.Info, acts []hotkey.Activation) error {
	if r.deps.Catalog == nil {
		return nil
	}

	sum, err := store.FileChecksum(info.SourcePath)
	if err != nil {
		r.log.Warn("checksum saved log", "error", err)
	}

	if _, err := r.deps.Catalog.InsertSavedLog(&store.SavedLog{
		SessionID: r.id,
		Info:      info,
		Checksum:  sum,
		SavedAt:   r.deps.Now(),
	}); err != nil {
		return fmt.Errorf("save log record: %w", err)
	}
	if err := r.deps.Catalog.InsertActivations(r.id, acts); err != nil {
		return fmt.Errorf("save activations: %w", err)
	}
	stats := r.stats
	if err := r.deps.Catalog.PutSessionStats(&stats); err != nil {
		return fmt.Errorf("save session stats: %w", err)
	}
	return nil
}

// Stats returns the running session counters.
func (r *Recorder) Stats() store.SessionStats {
	return r.stats
}

// PendingWarnings returns the warning lines buffered but not yet written.
func (r *Recorder) PendingWarnings() []string {
	return r.section.Pending()
}

// Activations returns the debug hotkey history so far.
func (r *Recorder) Activations() []hotkey.Activation {
	return r.hotkeys.Activations()
}
