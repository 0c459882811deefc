package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher is the board operation the schedule re-runs.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// StartRefreshCron re-fetches the displayed day on spec (standard 5-field cron
// syntax, e.g. "*/5 * * * *") so changes made elsewhere show up without a
// reload. Stop the returned cron on shutdown.
func StartRefreshCron(spec string, board Refresher, loc *time.Location, logger *zap.Logger) (*cron.Cron, error) {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithLocation(loc))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := board.Refresh(ctx); err != nil {
			logger.Warn("Scheduled refresh failed", zap.Error(err))
			return
		}
		logger.Debug("Scheduled refresh done")
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	logger.Info("Refresh cron started", zap.String("spec", spec))
	return c, nil
}
