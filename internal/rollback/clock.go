package rollback

import "time"

// Sleeper abstracts the stabilization wait so tests can substitute a fake
// clock instead of real timers. The wait is a plain timer, not tied to any
// external signal, and is not cancellable once started.
type Sleeper interface {
	Sleep(d time.Duration)
}

// realSleeper blocks on the monotonic clock
type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}

// NewRealSleeper returns the production Sleeper
func NewRealSleeper() Sleeper {
	return realSleeper{}
}
