package gpio

import (
	"context"
	"time"
)

// SystemClock implements Clock using the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (SystemClock) After(ctx context.Context, d time.Duration) <-chan time.Time {
	t := time.NewTimer(d)
	ch := make(chan time.Time, 1)
	go func() {
		defer t.Stop()
		select {
		case v := <-t.C:
			ch <- v
		case <-ctx.Done():
		}
	}()
	return ch
}
