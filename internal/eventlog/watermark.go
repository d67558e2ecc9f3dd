package eventlog

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

const (
	watermarkDigits  = 8
	watermarkModulus = 100_000_000
)

// Color is an RGBA color rendered as 8 hex digits.
type Color struct {
	R, G, B, A uint8
}

const hexDigits = "0123456789ABCDEF"

func (c Color) appendHex(dst []byte) []byte {
	for _, b := range [4]uint8{c.R, c.G, c.B, c.A} {
		dst = append(dst, hexDigits[b>>4], hexDigits[b&0x0f])
	}
	return dst
}

// Hex returns the color as RRGGBBAA.
func (c Color) Hex() string {
	return string(c.appendHex(make([]byte, 0, 8)))
}

// ParseColor parses "#RRGGBBAA" (the leading '#' is required).
func ParseColor(s string) (Color, error) {
	if len(s) != 9 || s[0] != '#' {
		return Color{}, fmt.Errorf("%w: color %q", ErrMalformedLine, s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: color %q", ErrMalformedLine, s)
	}
	return Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// Watermark is the replay-integrity marker shown on the overlay and embedded
// in every record.
type Watermark struct {
	Number int
	Color  Color
}

func (w Watermark) appendNumber(dst []byte) []byte {
	n := w.Number % watermarkModulus
	if n < 0 {
		n = -n
	}
	var digits [watermarkDigits]byte
	for i := watermarkDigits - 1; i >= 0; i-- {
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return append(dst, digits[:]...)
}

// NumberString returns the zero-padded 8-digit number.
func (w Watermark) NumberString() string {
	return string(w.appendNumber(make([]byte, 0, watermarkDigits)))
}

// WatermarkChain derives watermarks from the key history of a session. Each
// transition folds into a running BLAKE2b-256 digest, so two sessions agree on
// a watermark only if they saw the same transitions in the same order.
type WatermarkChain struct {
	state   [blake2b.Size256]byte
	current Watermark
	scratch []byte
}

// NewWatermarkChain seeds a chain. The seed is usually the session ID.
func NewWatermarkChain(seed string) *WatermarkChain {
	c := &WatermarkChain{state: blake2b.Sum256([]byte("keytrail-watermark:" + seed))}
	c.current = deriveWatermark(c.state)
	return c
}

// Current returns the watermark for the history folded so far.
func (c *WatermarkChain) Current() Watermark {
	return c.current
}

// Advance folds one transition into the chain and returns the new watermark.
func (c *WatermarkChain) Advance(keyID string, tr Transition) Watermark {
	c.Commit(c.Next(keyID, tr))
	return c.current
}

// Step is a chain advance that has been computed but not applied.
type Step struct {
	state     [blake2b.Size256]byte
	Watermark Watermark
}

// Next computes the watermark that folding (keyID, tr) would produce without
// changing the chain. Pass the result to Commit once the record is logged.
func (c *WatermarkChain) Next(keyID string, tr Transition) Step {
	c.scratch = append(c.scratch[:0], c.state[:]...)
	c.scratch = append(c.scratch, keyID...)
	c.scratch = append(c.scratch, tr.symbol())

	var s Step
	s.state = blake2b.Sum256(c.scratch)
	s.Watermark = deriveWatermark(s.state)
	return s
}

// Commit applies a Step returned by Next. Steps must be committed in the order
// they were computed and at most once.
func (c *WatermarkChain) Commit(s Step) {
	c.state = s.state
	c.current = s.Watermark
}

func deriveWatermark(state [blake2b.Size256]byte) Watermark {
	return Watermark{
		Number: int(binary.BigEndian.Uint64(state[:8]) % watermarkModulus),
		Color:  Color{R: state[8], G: state[9], B: state[10], A: 0xFF},
	}
}
