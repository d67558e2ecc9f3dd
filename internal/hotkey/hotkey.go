// Package hotkey records when debug/cheat keys are pressed during a session,
// and in which arena, so reviewers can correlate them with the input log.
package hotkey

import "strings"

// Activation is one press of a debug key. Never mutated after it is appended.
type Activation struct {
	KeyID         string `json:"key_id"`
	Arena         string `json:"arena"`
	PrevTimestamp int64  `json:"prev_timestamp"`
	Timestamp     int64  `json:"timestamp"`
}

// DefaultDebugKeys are the keys watched when no configuration is supplied.
var DefaultDebugKeys = []string{"F1", "F2", "F3", "F4", "F5", "F6", "F7", "F8", "F9", "F10", "F11", "F12"}

// Tracker is an append-only sink of activations for one session. Not safe for
// concurrent use.
type Tracker struct {
	keys        map[string]struct{}
	activations []Activation
}

// NewTracker watches the given key IDs. Matching is case-insensitive. An empty
// list selects DefaultDebugKeys.
func NewTracker(debugKeys []string) *Tracker {
	if len(debugKeys) == 0 {
		debugKeys = DefaultDebugKeys
	}
	keys := make(map[string]struct{}, len(debugKeys))
	for _, k := range debugKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys[strings.ToUpper(k)] = struct{}{}
		}
	}
	return &Tracker{keys: keys}
}

// IsDebugKey reports whether keyID is one of the watched keys.
func (t *Tracker) IsDebugKey(keyID string) bool {
	_, ok := t.keys[strings.ToUpper(keyID)]
	return ok
}

// TrackActivation appends an activation. The caller decides whether keyID
// qualifies; see IsDebugKey.
func (t *Tracker) TrackActivation(keyID, arena string, prevTimestamp, timestamp int64) {
	t.activations = append(t.activations, Activation{
		KeyID:         keyID,
		Arena:         arena,
		PrevTimestamp: prevTimestamp,
		Timestamp:     timestamp,
	})
}

// Activations returns a copy of the history in insertion order.
func (t *Tracker) Activations() []Activation {
	out := make([]Activation, len(t.activations))
	copy(out, t.activations)
	return out
}

// Len returns the number of recorded activations.
func (t *Tracker) Len() int {
	return len(t.activations)
}
