package locks

import (
	"context"
	"log"
	"time"
)

// DefaultSweepInterval is how often the background sweep runs.
const DefaultSweepInterval = 60 * time.Second

// RunSweeper deletes expired leases on a fixed interval until ctx is
// cancelled. Intended to run as a goroutine alongside the engine.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := m.SweepExpired()
			if err != nil {
				log.Printf("lock sweep: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("lock sweep: removed %d expired lock(s)", count)
			}
		}
	}
}
