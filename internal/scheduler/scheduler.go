// Package scheduler runs the idle-session sweeper on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// Sweeper removes sessions idle for longer than a TTL and returns their IDs.
type Sweeper interface {
	SweepIdle(ttl time.Duration) []string
}

// Parser accepts optional seconds and descriptors such as "@every 1m".
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New schedules the sweep without starting it.
func New(schedule string, ttl time.Duration, store Sweeper, log zerolog.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithParser(Parser))
	_, err := c.AddFunc(schedule, func() { sweep(store, ttl, log) })
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", schedule, err)
	}
	log.Info().Str("schedule", schedule).Dur("idle_ttl", ttl).Msg("scheduled idle-session sweep")
	return c, nil
}

// Register ties the scheduler to the application lifecycle.
func Register(lc fx.Lifecycle, c *cron.Cron, log zerolog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msg("starting cron scheduler")
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("stopping cron scheduler")
			stopCtx := c.Stop()
			select {
			case <-stopCtx.Done():
				return nil
			case <-ctx.Done():
				log.Error().Msg("context cancelled while waiting for cron scheduler to stop")
				return ctx.Err()
			}
		},
	})
}

func sweep(store Sweeper, ttl time.Duration, log zerolog.Logger) {
	ids := store.SweepIdle(ttl)
	for _, id := range ids {
		log.Info().Str("session_id", id).Msg("idle session closed")
	}
	if len(ids) > 0 {
		log.Debug().Int("count", len(ids)).Msg("sweep finished")
	}
}
