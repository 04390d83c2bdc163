package match

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultSweepInterval is how often the janitor checks for expired state.
const DefaultSweepInterval = 5 * time.Second

// RunJanitor calls Sweep every interval until ctx is cancelled. It returns
// immediately when neither wait nor room expiry is configured.
func (c *Coordinator) RunJanitor(ctx context.Context, interval time.Duration) {
	if c.cfg.WaitTimeout <= 0 && c.cfg.RoomTTL <= 0 {
		log.Debug().Msg("match expiry disabled, janitor not started")
		return
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := c.cfg.Clock.NewTicker(interval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", interval).
		Dur("wait_timeout", c.cfg.WaitTimeout).
		Dur("room_ttl", c.cfg.RoomTTL).
		Msg("match janitor started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("match janitor stopped")
			return
		case <-ticker.Chan():
			c.Sweep()
		}
	}
}
