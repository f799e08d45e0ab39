package session

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper purges expired sessions on a cron schedule. It is an
// optional, additive layer: lazy eviction on read stays the source of
// truth and the sweeper only reclaims memory held by sessions nobody
// revisits.
type Sweeper struct {
	c      *cron.Cron
	logger *zap.Logger
}

// NewSweeper builds a sweeper for the cache using a standard cron
// expression, e.g. "*/10 * * * *".
func NewSweeper(schedule string, cache Cache, logger *zap.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if n := cache.Purge(); n > 0 {
			logger.Debug("swept expired sessions", zap.Int("evicted", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	return &Sweeper{c: c, logger: logger}, nil
}

// Start begins scheduled sweeping in its own goroutine.
func (s *Sweeper) Start() { s.c.Start() }

// Stop halts scheduled sweeping, waiting for a running sweep.
func (s *Sweeper) Stop() {
	ctx := s.c.Stop()
	<-ctx.Done()
}
