package eventlog

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWatermark = Watermark{Number: 1234, Color: Color{R: 0x12, G: 0xAB, B: 0x00, A: 0xFF}}

func TestEncode_Format(t *testing.T) {
	line, err := Encode(1000, 1016, "A", Press, testWatermark, 59.7)
	require.NoError(t, err)
	assert.Equal(t, "+16|A|+|00001234|#12AB00FF|60|", line)

	line, err = Encode(1016, 1016, "Space", Release, testWatermark, 144)
	require.NoError(t, err)
	assert.Equal(t, "+0|Space|-|00001234|#12AB00FF|144|", line)
}

func TestEncode_MalformedTimestamp(t *testing.T) {
	_, err := Encode(20, 10, "A", Press, testWatermark, 60)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedTimestamp))
}

func TestEncode_NonFiniteFPS(t *testing.T) {
	for _, fps := range []float64{math.NaN(), math.Inf(1), -3} {
		line, err := Encode(0, 1, "A", Press, testWatermark, fps)
		require.NoError(t, err)
		assert.Equal(t, "+1|A|+|00001234|#12AB00FF|0|", line)
	}
}

func TestEncoder_MonotonicSequence(t *testing.T) {
	enc := NewEncoder()
	timestamps := []int64{0, 3, 3, 17, 250, 251}

	prev := int64(0)
	for _, ts := range timestamps {
		rec, line, err := enc.Encode(prev, ts, "W", Press, testWatermark, 60)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, rec.ElapsedMillis, int64(0))

		parsed, err := Parse(line)
		require.NoError(t, err)
		assert.Equal(t, rec, parsed)
		prev = ts
	}
}

func TestEncoder_ReusesBuffer(t *testing.T) {
	enc := NewEncoder()
	_, first, err := enc.Encode(0, 5, "LongKeyName", Press, testWatermark, 60)
	require.NoError(t, err)
	_, second, err := enc.Encode(5, 6, "A", Release, testWatermark, 60)
	require.NoError(t, err)

	// The returned strings must not alias the encoder buffer.
	assert.Equal(t, "+5|LongKeyName|+|00001234|#12AB00FF|60|", first)
	assert.Equal(t, "+1|A|-|00001234|#12AB00FF|60|", second)
}

func TestParse_Rejects(t *testing.T) {
	bad := []string{
		"",
		"16|A|+|00001234|#12AB00FF|60|",
		"+16|A|+|00001234|#12AB00FF|60",
		"+x|A|+|00001234|#12AB00FF|60|",
		"+-1|A|+|00001234|#12AB00FF|60|",
		"+1||+|00001234|#12AB00FF|60|",
		"+1|A|*|00001234|#12AB00FF|60|",
		"+1|A|+|1234|#12AB00FF|60|",
		"+1|A|+|00001234|12AB00FF|60|",
		"+1|A|+|00001234|#12AB00|60|",
		"+1|A|+|00001234|#12AB00FF|sixty|",
		"+1|A|+|00001234|#12AB00FF|60|extra|",
	}
	for _, line := range bad {
		_, err := Parse(line)
		assert.ErrorIs(t, err, ErrMalformedLine, "line %q", line)
	}
}

func TestWatermarkChain_Deterministic(t *testing.T) {
	a := NewWatermarkChain("session")
	b := NewWatermarkChain("session")
	assert.Equal(t, a.Current(), b.Current())

	keys := []struct {
		id string
		tr Transition
	}{{"A", Press}, {"A", Release}, {"Space", Press}}

	for _, k := range keys {
		wa := a.Advance(k.id, k.tr)
		wb := b.Advance(k.id, k.tr)
		assert.Equal(t, wa, wb)
		assert.Less(t, wa.Number, watermarkModulus)
		assert.Equal(t, uint8(0xFF), wa.Color.A)
		assert.Len(t, wa.NumberString(), 8)
	}

	c := NewWatermarkChain("session")
	c.Advance("A", Release)
	assert.NotEqual(t, NewWatermarkChain("session").Advance("A", Press), c.Current())
}

func TestWatermarkChain_NextDoesNotCommit(t *testing.T) {
	c := NewWatermarkChain("session")
	start := c.Current()

	step := c.Next("A", Press)
	assert.Equal(t, start, c.Current())
	assert.Equal(t, step, c.Next("A", Press))

	c.Commit(step)
	assert.Equal(t, step.Watermark, c.Current())
	assert.Equal(t, NewWatermarkChain("session").Advance("A", Press), c.Current())
}

func TestEncode_InvalidKeyID(t *testing.T) {
	for _, id := range []string{"", "Pipe|Key", "two\nlines", "cr\r"} {
		_, err := Encode(0, 1, id, Press, testWatermark, 60)
		assert.ErrorIs(t, err, ErrInvalidKeyID, "key %q", id)
	}

	line, err := Encode(0, 1, "Numpad Enter", Press, testWatermark, 60)
	require.NoError(t, err)
	rec, err := Parse(line)
	require.NoError(t, err)
	assert.Equal(t, "Numpad Enter", rec.KeyID)
}

func TestColor_HexRoundTrip(t *testing.T) {
	c := Color{R: 0xDE, G: 0xAD, B: 0xBE, A: 0xEF}
	assert.Equal(t, "DEADBEEF", c.Hex())

	parsed, err := ParseColor("#" + c.Hex())
	require.NoError(t, err)
	assert.Equal(t, c, parsed)
}

func TestKeyMap(t *testing.T) {
	km := DefaultKeyMap()

	assert.Equal(t, "A", km.Resolve(65))
	assert.Equal(t, "F1", km.Resolve(112))
	assert.Equal(t, "Space", km.Resolve(32))
	assert.Equal(t, "K999", km.Resolve(999))
	assert.Equal(t, km.Resolve(999), km.Resolve(999))

	assert.Equal(t, "Space", km.Canonical("space"))
	assert.Equal(t, "A", km.Canonical("a"))
	assert.Equal(t, "Gamepad1", km.Canonical("Gamepad1"))
	assert.Equal(t, "Pipe/Key", km.Canonical("Pipe|Key"))
	assert.Equal(t, "Two Lines", km.Canonical(" Two\nLines "))

	for _, name := range []string{"Pipe|Key", "x\r\ny", "||"} {
		id := km.Canonical(name)
		assert.True(t, ValidKeyID(id), "canonical %q of %q", id, name)
		line, err := Encode(0, 1, id, Press, testWatermark, 60)
		require.NoError(t, err)
		_, err = Parse(line)
		assert.NoError(t, err)
	}
}

func TestFrameRate(t *testing.T) {
	var fr FrameRate
	assert.Equal(t, 0.0, fr.Observe(0))
	assert.InDelta(t, 60.0, fr.Observe(1.0/60), 1e-9)
	assert.InDelta(t, 60.0, fr.Observe(0), 1e-9)
	assert.InDelta(t, 30.0, fr.Observe(1.0/30), 1e-9)
	assert.InDelta(t, 30.0, fr.FPS(), 1e-9)
}

func BenchmarkEncoder_Encode(b *testing.B) {
	enc := NewEncoder()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _, _ = enc.Encode(int64(i), int64(i+16), "Space", Press, testWatermark, 60)
	}
}
