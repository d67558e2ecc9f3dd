// Package eventlog turns raw key transitions into canonical log records.
//
// A record is serialized as one pipe-delimited line:
//
//	+<deltaMs>|<keyID>|<+ or ->|<watermark number>|#<RRGGBBAA>|<fps>|
//
// Deltas are measured from the previous record of the same session (the first
// record is measured from session start), so a log replays by accumulating them.
package eventlog

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Errors
var (
	ErrMalformedTimestamp = errors.New("eventlog: timestamp precedes previous record")
	ErrMalformedLine      = errors.New("eventlog: malformed record line")
	ErrInvalidKeyID       = errors.New("eventlog: key id is empty or contains a field or line separator")
)

// ValidKeyID reports whether id can be written as the key field of a record.
func ValidKeyID(id string) bool {
	return id != "" && !strings.ContainsAny(id, "|\r\n")
}

// Transition is the direction of a key state change.
type Transition uint8

const (
	Press Transition = iota + 1
	Release
)

func (t Transition) String() string {
	switch t {
	case Press:
		return "press"
	case Release:
		return "release"
	default:
		return "unknown"
	}
}

func (t Transition) symbol() byte {
	if t == Release {
		return '-'
	}
	return '+'
}

// Record is one normalized input event.
type Record struct {
	ElapsedMillis int64
	KeyID         string
	Transition    Transition
	Watermark     Watermark
	FPS           int
}

// String returns the canonical line for r.
func (r Record) String() string {
	return string(appendRecord(nil, r))
}

// Encoder formats records into a reusable buffer. It is not safe for
// concurrent use; the recording tick owns one.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with a small preallocated buffer.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 64)}
}

// Encode builds the record for a transition observed at curMs and returns its
// line. prevMs is the timestamp of the previous record (or session start).
func (e *Encoder) Encode(prevMs, curMs int64, keyID string, tr Transition, wm Watermark, fps float64) (Record, string, error) {
	if curMs < prevMs {
		return Record{}, "", fmt.Errorf("%w: %d < %d", ErrMalformedTimestamp, curMs, prevMs)
	}
	if !ValidKeyID(keyID) {
		return Record{}, "", fmt.Errorf("%w: %q", ErrInvalidKeyID, keyID)
	}

	rec := Record{
		ElapsedMillis: curMs - prevMs,
		KeyID:         keyID,
		Transition:    tr,
		Watermark:     wm,
		FPS:           roundFPS(fps),
	}

	e.buf = appendRecord(e.buf[:0], rec)
	return rec, string(e.buf), nil
}

// Encode is a convenience wrapper around a throwaway Encoder.
func Encode(prevMs, curMs int64, keyID string, tr Transition, wm Watermark, fps float64) (string, error) {
	_, line, err := NewEncoder().Encode(prevMs, curMs, keyID, tr, wm, fps)
	return line, err
}

func appendRecord(dst []byte, r Record) []byte {
	dst = append(dst, '+')
	dst = strconv.AppendInt(dst, r.ElapsedMillis, 10)
	dst = append(dst, '|')
	dst = append(dst, r.KeyID...)
	dst = append(dst, '|', r.Transition.symbol(), '|')
	dst = r.Watermark.appendNumber(dst)
	dst = append(dst, '|', '#')
	dst = r.Watermark.Color.appendHex(dst)
	dst = append(dst, '|')
	dst = strconv.AppendInt(dst, int64(r.FPS), 10)
	return append(dst, '|')
}

func roundFPS(fps float64) int {
	if math.IsNaN(fps) || math.IsInf(fps, 0) || fps < 0 {
		return 0
	}
	return int(math.Round(fps))
}

// Parse decodes a canonical record line.
func Parse(line string) (Record, error) {
	if !strings.HasPrefix(line, "+") || !strings.HasSuffix(line, "|") {
		return Record{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	fields := strings.Split(strings.TrimSuffix(line[1:], "|"), "|")
	if len(fields) != 6 {
		return Record{}, fmt.Errorf("%w: expected 6 fields, got %d", ErrMalformedLine, len(fields))
	}

	var rec Record
	var err error

	if rec.ElapsedMillis, err = strconv.ParseInt(fields[0], 10, 64); err != nil || rec.ElapsedMillis < 0 {
		return Record{}, fmt.Errorf("%w: delta %q", ErrMalformedLine, fields[0])
	}
	if fields[1] == "" {
		return Record{}, fmt.Errorf("%w: empty key", ErrMalformedLine)
	}
	rec.KeyID = fields[1]

	switch fields[2] {
	case "+":
		rec.Transition = Press
	case "-":
		rec.Transition = Release
	default:
		return Record{}, fmt.Errorf("%w: transition %q", ErrMalformedLine, fields[2])
	}

	if len(fields[3]) != watermarkDigits {
		return Record{}, fmt.Errorf("%w: watermark %q", ErrMalformedLine, fields[3])
	}
	if rec.Watermark.Number, err = strconv.Atoi(fields[3]); err != nil {
		return Record{}, fmt.Errorf("%w: watermark %q", ErrMalformedLine, fields[3])
	}
	if rec.Watermark.Color, err = ParseColor(fields[4]); err != nil {
		return Record{}, err
	}
	if rec.FPS, err = strconv.Atoi(fields[5]); err != nil {
		return Record{}, fmt.Errorf("%w: fps %q", ErrMalformedLine, fields[5])
	}

	return rec, nil
}
