package delivery

import (
	"context"
	"time"
)

// Clock abstracts pacing waits and deferred cleanup scheduling so the
// pipeline can be tested without wall-clock sleeps.
type Clock interface {
	Now() time.Time
	// Sleep waits d or until ctx is done, returning ctx.Err() in that case.
	Sleep(ctx context.Context, d time.Duration) error
	// AfterFunc schedules fn to run once after d and returns a stop func.
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

// SystemClock implements Clock on the runtime timer facilities.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (SystemClock) AfterFunc(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, fn)
	return t.Stop
}
