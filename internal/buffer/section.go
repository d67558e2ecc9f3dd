// Package buffer batches low-priority log lines (warnings) so they do not
// force a write on every tick.
package buffer

import "fmt"

// DefaultThreshold is the pending count at which ShouldFlush turns true.
const DefaultThreshold = 10

// LineWriter receives a flushed batch. session.Writer satisfies it by
// writing the whole batch or nothing.
type LineWriter interface {
	WriteLines(lines []string) error
}

// Section accumulates lines in memory until flushed. It is not safe for
// concurrent use.
type Section struct {
	pending   []string
	threshold int
}

// NewSection returns a Section that asks to be flushed once threshold lines
// are pending. A non-positive threshold selects DefaultThreshold.
func NewSection(threshold int) *Section {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Section{threshold: threshold}
}

// Add appends one line without any I/O.
func (s *Section) Add(line string) {
	s.pending = append(s.pending, line)
}

// AddRange appends lines in order without any I/O.
func (s *Section) AddRange(lines []string) {
	s.pending = append(s.pending, lines...)
}

// ShouldFlush reports whether the threshold has been reached.
func (s *Section) ShouldFlush() bool {
	return len(s.pending) >= s.threshold
}

// Len returns the number of pending lines.
func (s *Section) Len() int {
	return len(s.pending)
}

// Threshold returns the configured flush threshold.
func (s *Section) Threshold() int {
	return s.threshold
}

// Pending returns a copy of the pending lines in insertion order.
func (s *Section) Pending() []string {
	out := make([]string, len(s.pending))
	copy(out, s.pending)
	return out
}

// Flush hands every pending line to w as one ordered batch. Pending is cleared
// only when the batch is accepted; on failure it is left exactly as it was so
// a later Flush retries it.
func (s *Section) Flush(w LineWriter) error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := w.WriteLines(s.pending); err != nil {
		return fmt.Errorf("flush %d lines: %w", len(s.pending), err)
	}
	clear(s.pending)
	s.pending = s.pending[:0]
	return nil
}
