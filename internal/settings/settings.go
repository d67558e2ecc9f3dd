// Package settings collects textual summaries of third-party configuration
// so they can be framed into a session log header.
//
// Providers are probed once when a session starts. The result is a Snapshot
// that is either Available (with its lines) or Unavailable (with a reason);
// the recorder never re-probes during a session.
package settings

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnavailable = errors.New("settings: provider unavailable")

// Provider produces an ordered, opaque block of text lines.
type Provider interface {
	Name() string
	SettingsLines() ([]string, error)
}

// Snapshot is the resolved state of one provider.
type Snapshot struct {
	Name   string
	Lines  []string
	Reason string // set when unavailable
}

// Available reports whether the provider produced lines.
func (s Snapshot) Available() bool {
	return s.Reason == ""
}

// Resolve probes every provider once, in order. A provider that errors or
// panics is recorded as unavailable; it never aborts resolution.
func Resolve(providers []Provider) []Snapshot {
	out := make([]Snapshot, 0, len(providers))
	for _, p := range providers {
		out = append(out, resolveOne(p))
	}
	return out
}

func resolveOne(p Provider) (snap Snapshot) {
	snap.Name = p.Name()
	defer func() {
		if r := recover(); r != nil {
			snap.Lines = nil
			snap.Reason = fmt.Sprintf("panic: %v", r)
		}
	}()

	lines, err := p.SettingsLines()
	if err != nil {
		snap.Reason = err.Error()
		return snap
	}
	snap.Lines = make([]string, 0, len(lines))
	for _, l := range lines {
		// One log line per entry; embedded newlines would break framing.
		snap.Lines = append(snap.Lines, strings.ReplaceAll(strings.ReplaceAll(l, "\r", ""), "\n", " "))
	}
	return snap
}

// Block flattens snapshots into header lines: a "[name]" title followed by
// the provider's lines, or "[name] unavailable: reason". The caller frames the
// block with its separator.
func Block(snaps []Snapshot) []string {
	var out []string
	for _, s := range snaps {
		if !s.Available() {
			out = append(out, fmt.Sprintf("[%s] unavailable: %s", s.Name, s.Reason))
			continue
		}
		out = append(out, "["+s.Name+"]")
		out = append(out, s.Lines...)
	}
	return out
}

// Static is a provider with fixed lines, used for the recorder's own
// settings and in tests.
type Static struct {
	Label string
	Lines []string
}

func (s Static) Name() string { return s.Label }

func (s Static) SettingsLines() ([]string, error) {
	out := make([]string, len(s.Lines))
	copy(out, s.Lines)
	return out, nil
}

// Func adapts a function to Provider.
type Func struct {
	Label string
	Fn    func() ([]string, error)
}

func (f Func) Name() string { return f.Label }

func (f Func) SettingsLines() ([]string, error) {
	if f.Fn == nil {
		return nil, ErrUnavailable
	}
	return f.Fn()
}
