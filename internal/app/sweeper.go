package app

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically reclaims sessions nobody will come back to:
// empty rooms and rooms whose participants have all been disconnected
// longer than the TTL.
type Sweeper struct {
	Manager  *SessionManager
	Clock    clockwork.Clock
	Interval time.Duration
	TTL      time.Duration
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.Clock.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if count := s.Manager.Sweep(s.Clock.Now(), s.TTL); count > 0 {
				log.Info().Str("module", "app.sweeper").Int("removed", count).Msg("reclaimed idle sessions")
			}
		}
	}
}
