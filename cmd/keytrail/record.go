package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"keytrail/internal/cipher"
	"keytrail/internal/config"
	"keytrail/internal/eventlog"
	"keytrail/internal/input"
	"keytrail/internal/logging"
	"keytrail/internal/notify"
	"keytrail/internal/recorder"
	"keytrail/internal/savedlog"
	"keytrail/internal/settings"
	"keytrail/internal/store"
)

// tickLine is one line of a recording script.
type tickLine struct {
	TS      int64       `json:"ts"`
	Room    string      `json:"room"`
	FrameMs float64     `json:"frame_ms"`
	Events  []tickEvent `json:"events"`
	Close   *closeLine  `json:"close"`
}

type tickEvent struct {
	Key    string `json:"key"`
	Code   int    `json:"code"`
	Action string `json:"action"`
}

type closeLine struct {
	Root       string `json:"root"`
	Boss       string `json:"boss"`
	Difficulty string `json:"difficulty"`
}

func newRecordCmd(configPath *string) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "record [script.jsonl]",
		Short: "Record sessions from a JSON-lines tick script (stdin when omitted)",
		Long: `Record sessions from a JSON-lines tick script.

Each line is one tick:
  {"ts": 0, "room": "R1", "frame_ms": 16.6, "events": [{"key": "A", "action": "press"}]}

Keys are given by name ("key") or host key code ("code"). A line with
"close" ends the current session and names its export folders:
  {"close": {"root": "Raid", "boss": "Golem", "difficulty": "Hard"}}

The next tick after a close starts a new session. Any open session is closed
at end of input or on interrupt.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open script: %w", err)
				}
				defer f.Close()
				in = f
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			r, err := newRunner(a, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer r.close()

			if watch {
				a.loader.OnChange(r.reconfigure)
				if err := a.loader.Watch(); err != nil {
					a.logger.Warn("config watch unavailable", "error", err)
				} else {
					go r.reportConfigErrors(ctx, a.loader.Errors())
				}
			}
			return r.run(ctx, in)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the config file between sessions when it changes")
	return cmd
}

// runner feeds script lines through the input queue into successive sessions.
type runner struct {
	app     *app
	out     io.Writer
	log     *slog.Logger
	current atomic.Pointer[config.Config]

	keys    *eventlog.KeyMap
	queue   *input.Queue
	index   savedlog.Index
	lc      *cipher.LineCipher
	overlay notify.Overlay
	catalog *store.Store

	rec   *recorder.Recorder
	saved int
}

func newRunner(a *app, out io.Writer) (*runner, error) {
	lc, err := a.cipher()
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	r := &runner{
		app:   a,
		out:   out,
		log:   a.logger.WithComponent("record").Logger,
		keys:  eventlog.DefaultKeyMap(),
		queue: input.NewQueue(a.cfg.Recording.QueueLimit),
		lc:    lc,
	}
	r.current.Store(a.cfg)

	if a.cfg.Notify.Desktop {
		r.overlay = notify.NewDesktopOverlay("keytrail", a.logger.Logger)
	} else {
		r.overlay = notify.NewLogOverlay(a.logger.Logger)
	}

	st, err := a.openStore()
	if err != nil {
		r.log.Warn("saved-log store unavailable; sessions will not be cataloged", "error", err)
	} else {
		r.catalog = st
	}
	return r, nil
}

// reconfigure applies a reloaded config. The log level changes at once;
// everything else takes effect with the next session.
func (r *runner) reconfigure(cfg *config.Config) {
	r.current.Store(cfg)
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err == nil {
		r.app.logger.SetLevel(level)
	}
	r.log.Info("config reloaded",
		"log_level", logging.LevelString(level),
		"flush_threshold", cfg.Buffer.FlushThreshold,
		"drain_threshold", cfg.Warnings.DrainThreshold,
	)
}

// reportConfigErrors logs reloads the loader rejected until ctx ends. The
// previous configuration stays in effect.
func (r *runner) reportConfigErrors(ctx context.Context, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errs:
			r.log.Warn("config change rejected", "error", err)
		}
	}
}

func (r *runner) run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	n := 0
	for sc.Scan() {
		if ctx.Err() != nil {
			break
		}
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var line tickLine
		if err := json.Unmarshal([]byte(text), &line); err != nil {
			r.log.Warn("script line skipped", "line", n, "error", err)
			continue
		}
		r.apply(ctx, line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	if r.rec != nil {
		r.closeSession(context.WithoutCancel(ctx), recorder.CloseInfo{})
	}
	fmt.Fprintf(r.out, "%d session(s) saved\n", r.saved)
	return nil
}

func (r *runner) apply(ctx context.Context, line tickLine) {
	if line.Close == nil || len(line.Events) > 0 {
		if r.rec == nil {
			if err := r.startSession(ctx, line.TS); err != nil {
				r.log.Error("start session", "error", err)
				return
			}
		}

		for _, ev := range line.Events {
			r.push(ev)
		}
		transitions, dropped := r.queue.Drain()
		r.rec.Tick(recorder.TickInput{
			TimestampMs:  line.TS,
			Room:         line.Room,
			FrameSeconds: line.FrameMs / 1000,
			Transitions:  transitions,
			Dropped:      dropped,
		})
	}

	if line.Close != nil && r.rec != nil {
		r.closeSession(ctx, recorder.CloseInfo{
			RootFolder:       line.Close.Root,
			BossFolder:       line.Close.Boss,
			DifficultyFolder: line.Close.Difficulty,
		})
	}
}

func (r *runner) push(ev tickEvent) {
	id := r.keys.Canonical(ev.Key)
	if ev.Key == "" {
		id = r.keys.Resolve(ev.Code)
	}

	switch strings.ToLower(ev.Action) {
	case "", "press", "down":
		r.queue.Press(id)
	case "release", "up":
		r.queue.Release(id)
	default:
		r.log.Warn("unknown key action", "key", id, "action", ev.Action)
	}
}

func (r *runner) startSession(ctx context.Context, startMs int64) error {
	cfg := r.current.Load()

	providers := make([]settings.Provider, 0, len(cfg.Settings.Files))
	for _, f := range cfg.Settings.Files {
		providers = append(providers, settings.NewFileProvider(config.ExpandPath(f), ""))
	}

	id := uuid.NewString()
	ctx = logging.ContextWithSessionID(ctx, id)

	opts := recorder.OptionsFromConfig(cfg)
	opts.SessionID = id

	deps := recorder.Deps{
		Cipher:   r.lc,
		Logger:   r.app.logger.WithContext(ctx).Logger,
		Overlay:  r.overlay,
		Index:    &r.index,
		Settings: providers,
	}
	if r.catalog != nil {
		deps.Catalog = r.catalog
	}

	rec := recorder.New(opts, deps)
	if err := rec.Start(ctx, startMs); err != nil {
		return err
	}
	r.rec = rec
	return nil
}

func (r *runner) closeSession(ctx context.Context, ci recorder.CloseInfo) {
	info, err := r.rec.Close(ctx, ci)
	r.rec = nil
	if err != nil {
		r.log.Error("close session", "error", err)
	}
	if info.SourcePath != "" {
		r.saved++
		fmt.Fprintf(r.out, "saved %s\n", info.SourcePath)
	}
}

func (r *runner) close() {
	if c, ok := r.overlay.(io.Closer); ok {
		c.Close()
	}
	if r.catalog != nil {
		r.catalog.Close()
	}
}
