package journal

import (
	"context"
	"time"
)

// Poll loads from s every interval and delivers each state whose cycle or
// generation time differs from the last one delivered. Load errors are
// skipped. The channel closes when ctx ends.
func Poll(ctx context.Context, s Store, interval time.Duration) <-chan *State {
	out := make(chan *State)
	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last *State
		for {
			if st, err := s.Load(ctx); err == nil && changed(last, st) {
				select {
				case out <- st:
					last = st
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

func changed(prev, next *State) bool {
	if prev == nil {
		return true
	}
	return prev.CurrentCycle != next.CurrentCycle || !prev.GeneratedAt.Equal(next.GeneratedAt)
}
