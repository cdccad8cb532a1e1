package history

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper drops per-session state that has been idle for longer than idle.
type Sweeper interface {
	Sweep(ctx context.Context, idle time.Duration) int
}

// Janitor sweeps every sweeper once per interval until ctx is done. Sessions
// whose token has expired never call End, so this is what frees their clips.
func Janitor(ctx context.Context, interval, idle time.Duration, sweepers ...Sweeper) {
	if interval <= 0 || idle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, s := range sweepers {
			if n := s.Sweep(ctx, idle); n > 0 {
				slog.Info("released idle sessions", "count", n, "idle", idle.String())
			}
		}
	}
}
