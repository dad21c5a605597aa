package jobs

import (
	"context"

	"github.com/robfig/cron/v3"

	"rookery/internal/logging"
)

// RunLoop runs batches on a cron cadence until ctx is cancelled. One batch
// runs immediately on start; overlapping ticks are skipped while a batch is
// still in flight (the collector session is exclusive anyway).
func RunLoop(ctx context.Context, d Deps, opts BatchOptions, cronSpec string) error {
	run := func() {
		if _, err := RunBatch(ctx, d, opts); err != nil {
			logging.L().Errorw("batch run", "error", err)
		}
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cronSpec, run); err != nil {
		return err
	}

	run()
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	logging.L().Infow("daemon stopped")
	return ctx.Err()
}
