package attach

import (
	"context"
	"time"
)

// Clock provides the current time and cancellable sleeps.
type Clock interface {
	Now() time.Time

	// Sleep blocks for d or until ctx is done, in which case it returns the
	// context's error.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock returns a Clock backed by the system clock.
func RealClock() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
