package producer

import (
	"context"
	"math/rand"
	"time"
)

// jitter returns a delay source yielding a fresh random duration in
// [min, max] on every call.
func jitter(rnd *rand.Rand, min, max time.Duration) func() time.Duration {
	return func() time.Duration {
		d := min
		if max > min {
			d += time.Duration(rnd.Int63n(int64(max - min + 1)))
		}
		return d
	}
}

// runPeriodic invokes emit repeatedly, waiting next() before each
// invocation, until ctx is cancelled or emit fails. The pending timer is
// stopped on teardown, so cancellation never leaves a stray emission behind.
func runPeriodic(ctx context.Context, next func() time.Duration, emit func() error) error {
	for {
		timer := time.NewTimer(next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if err := emit(); err != nil {
			return err
		}
	}
}
