package querytime

import "time"

// Timer measures the latency of a single backend query.
type Timer interface {
	// Start resets the timer.
	Start()
	// ElapsedMicroseconds returns the time elapsed since the last call to Start.
	ElapsedMicroseconds() float32
}

// WallTimer is a [Timer] backed by the monotonic wall clock.
type WallTimer struct {
	start time.Time
}

var _ Timer = (*WallTimer)(nil)

func (w *WallTimer) Start() { w.start = time.Now() }

func (w *WallTimer) ElapsedMicroseconds() float32 {
	return float32(time.Since(w.start).Nanoseconds()) / 1e3
}
