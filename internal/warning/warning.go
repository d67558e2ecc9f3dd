// Package warning detects input anomalies from the per-tick (room, time)
// stream of a recording session.
//
// Trackers only detect. They queue Warnings internally; the recorder drains
// them into a buffered section and persists them on its own cadence, then
// calls ClearWarnings.
package warning

import (
	"strconv"
	"strings"
)

// Kind identifies the tracker that produced a warning.
type Kind uint8

const (
	Speed Kind = iota + 1
	Hit
)

func (k Kind) String() string {
	switch k {
	case Speed:
		return "speed"
	case Hit:
		return "hit"
	default:
		return "unknown"
	}
}

// Warning is one detected anomaly. It is never modified after creation.
type Warning struct {
	Kind      Kind
	Room      string
	Timestamp int64 // unix millis
	Message   string
}

// Line renders the warning as a log line: !<kind>|<room>|<timestamp>|<message>|
// Pipes in the room or message are replaced so the line stays parseable.
func (w Warning) Line() string {
	var b strings.Builder
	b.Grow(len(w.Room) + len(w.Message) + 32)
	b.WriteByte('!')
	b.WriteString(w.Kind.String())
	b.WriteByte('|')
	b.WriteString(sanitize(w.Room))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(w.Timestamp, 10))
	b.WriteByte('|')
	b.WriteString(sanitize(w.Message))
	b.WriteByte('|')
	return b.String()
}

func sanitize(s string) string {
	return strings.NewReplacer("|", "/", "\n", " ", "\r", " ").Replace(s)
}

// Lines renders a batch of warnings in order.
func Lines(ws []Warning) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Line()
	}
	return out
}

// Tracker is the behaviour shared by all anomaly detectors.
type Tracker interface {
	// Kind reports which warnings this tracker emits.
	Kind() Kind

	// Update feeds one sample. Called once per processed event.
	Update(room string, timestampMs int64)

	// Warnings returns the pending warnings in insertion order.
	Warnings() []Warning

	// ClearWarnings drops all pending warnings. Call it only after the
	// warnings returned by Warnings have been handed off.
	ClearWarnings()
}

// predicate inspects a window and reports whether it is in violation, with
// a human-readable description.
type predicate func(samples []int64) (bool, string)

// tracker is the room-scoped sliding window shared by the concrete trackers.
type tracker struct {
	kind       Kind
	lookbackMs int64
	violates   predicate

	room      string
	started   bool
	samples   []int64
	violating bool
	pending   []Warning
}

func (t *tracker) Kind() Kind {
	return t.kind
}

func (t *tracker) Update(room string, ts int64) {
	if !t.started || room != t.room {
		t.room = room
		t.started = true
		t.samples = t.samples[:0]
		t.violating = false
	}

	t.samples = append(t.samples, ts)
	t.evict(ts)

	bad, msg := t.violates(t.samples)
	switch {
	case bad && !t.violating:
		t.violating = true
		t.pending = append(t.pending, Warning{Kind: t.kind, Room: room, Timestamp: ts, Message: msg})
	case !bad:
		t.violating = false
	}
}

// evict drops samples older than the lookback relative to now.
func (t *tracker) evict(now int64) {
	cutoff := now - t.lookbackMs
	i := 0
	for i < len(t.samples) && t.samples[i] < cutoff {
		i++
	}
	if i > 0 {
		t.samples = append(t.samples[:0], t.samples[i:]...)
	}
}

func (t *tracker) Warnings() []Warning {
	out := make([]Warning, len(t.pending))
	copy(out, t.pending)
	return out
}

func (t *tracker) ClearWarnings() {
	t.pending = nil
}

// Window returns the samples currently counted, for diagnostics and tests.
func (t *tracker) Window() []int64 {
	out := make([]int64, len(t.samples))
	copy(out, t.samples)
	return out
}
