package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// dayTracker is the part of the aggregator driven by the clock.
type dayTracker interface {
	CheckRollover(ctx context.Context) bool
	Retry(ctx context.Context) bool
}

type summarySender interface {
	SendDailySummary()
}

// newScheduler registers the midnight rollover, a coarse safety poll that
// catches a missed midnight (e.g. after suspend) and retries the sensor, and
// the daily summary. All specs are evaluated in loc.
func newScheduler(t dayTracker, summary summarySender, loc *time.Location, poll time.Duration, summarySpec string, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(loc))
	ctx := context.Background()

	rollover := func() {
		if t.CheckRollover(ctx) {
			logger.Info("midnight rollover done")
		}
	}

	if _, err := c.AddFunc("0 0 * * *", rollover); err != nil {
		return nil, fmt.Errorf("schedule rollover: %w", err)
	}

	if _, err := c.AddFunc(fmt.Sprintf("@every %s", poll), func() {
		rollover()
		t.Retry(ctx)
	}); err != nil {
		return nil, fmt.Errorf("schedule poll: %w", err)
	}

	if _, err := c.AddFunc(summarySpec, summary.SendDailySummary); err != nil {
		return nil, fmt.Errorf("schedule daily summary %q: %w", summarySpec, err)
	}

	return c, nil
}
