package warning

import "fmt"

// SpeedConfig tunes the sample-density detector.
type SpeedConfig struct {
	// LookbackMs is the width of the sliding window.
	LookbackMs int64 `toml:"lookback_ms" json:"lookback_ms" yaml:"lookback_ms"`

	// MaxSamples is the most inputs allowed inside one window.
	MaxSamples int `toml:"max_samples" json:"max_samples" yaml:"max_samples"`
}

// DefaultSpeedConfig allows 20 inputs per second, comfortably above
// sustained human mashing (roughly 12-15/s).
func DefaultSpeedConfig() SpeedConfig {
	return SpeedConfig{LookbackMs: 1000, MaxSamples: 20}
}

// SpeedTracker warns when inputs in the current room arrive faster than a
// person can produce them.
type SpeedTracker struct {
	tracker
	cfg SpeedConfig
}

// NewSpeedTracker returns a SpeedTracker; zero fields fall back to defaults.
func NewSpeedTracker(cfg SpeedConfig) *SpeedTracker {
	def := DefaultSpeedConfig()
	if cfg.LookbackMs <= 0 {
		cfg.LookbackMs = def.LookbackMs
	}
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = def.MaxSamples
	}

	st := &SpeedTracker{cfg: cfg}
	st.tracker = tracker{kind: Speed, lookbackMs: cfg.LookbackMs, violates: st.check}
	return st
}

func (st *SpeedTracker) check(samples []int64) (bool, string) {
	if len(samples) <= st.cfg.MaxSamples {
		return false, ""
	}
	return true, fmt.Sprintf("%d inputs within %dms (limit %d)", len(samples), st.cfg.LookbackMs, st.cfg.MaxSamples)
}

// HitConfig tunes the cadence detector.
type HitConfig struct {
	// LookbackMs is the width of the sliding window.
	LookbackMs int64 `toml:"lookback_ms" json:"lookback_ms" yaml:"lookback_ms"`

	// MinRun is how many consecutive gaps must match before warning.
	MinRun int `toml:"min_run" json:"min_run" yaml:"min_run"`

	// ToleranceMs is the largest spread (max - min) between matching gaps.
	ToleranceMs int64 `toml:"tolerance_ms" json:"tolerance_ms" yaml:"tolerance_ms"`

	// MaxGapMs ignores slow, deliberate input even if perfectly regular.
	MaxGapMs int64 `toml:"max_gap_ms" json:"max_gap_ms" yaml:"max_gap_ms"`
}

// DefaultHitConfig flags eight back-to-back gaps that agree within 2ms and
// are all under 150ms: the signature of a turbo button or macro.
func DefaultHitConfig() HitConfig {
	return HitConfig{LookbackMs: 2000, MinRun: 8, ToleranceMs: 2, MaxGapMs: 150}
}

// HitTracker warns when inputs in the current room repeat with machine-like
// regularity.
type HitTracker struct {
	tracker
	cfg HitConfig
}

// NewHitTracker returns a HitTracker; zero fields fall back to defaults.
func NewHitTracker(cfg HitConfig) *HitTracker {
	def := DefaultHitConfig()
	if cfg.LookbackMs <= 0 {
		cfg.LookbackMs = def.LookbackMs
	}
	if cfg.MinRun <= 0 {
		cfg.MinRun = def.MinRun
	}
	if cfg.ToleranceMs < 0 {
		cfg.ToleranceMs = def.ToleranceMs
	}
	if cfg.MaxGapMs <= 0 {
		cfg.MaxGapMs = def.MaxGapMs
	}

	ht := &HitTracker{cfg: cfg}
	ht.tracker = tracker{kind: Hit, lookbackMs: cfg.LookbackMs, violates: ht.check}
	return ht
}

func (ht *HitTracker) check(samples []int64) (bool, string) {
	if len(samples) < ht.cfg.MinRun+1 {
		return false, ""
	}

	tail := samples[len(samples)-ht.cfg.MinRun-1:]
	lo, hi := int64(-1), int64(-1)
	for i := 1; i < len(tail); i++ {
		gap := tail[i] - tail[i-1]
		if gap > ht.cfg.MaxGapMs {
			return false, ""
		}
		if lo < 0 || gap < lo {
			lo = gap
		}
		if gap > hi {
			hi = gap
		}
	}
	if hi-lo > ht.cfg.ToleranceMs {
		return false, ""
	}
	return true, fmt.Sprintf("%d consecutive inputs spaced %d-%dms apart", ht.cfg.MinRun+1, lo, hi)
}
