package eventlog

// FrameRate turns frame intervals into an FPS figure. A zero interval reuses
// the previous value, so the encoder never sees Inf or NaN.
type FrameRate struct {
	fps float64
}

// Observe records a frame interval in seconds and returns the current FPS.
func (f *FrameRate) Observe(intervalSeconds float64) float64 {
	if intervalSeconds > 0 {
		f.fps = 1 / intervalSeconds
	}
	return f.fps
}

// FPS returns the last valid value.
func (f *FrameRate) FPS() float64 {
	return f.fps
}
