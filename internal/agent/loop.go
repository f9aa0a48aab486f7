package agent

import (
	"context"
	"time"
)

// runEvery calls fn immediately and then every interval until ctx is done.
func runEvery(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	fn(ctx)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			fn(ctx)
			timer.Reset(interval)
		}
	}
}
