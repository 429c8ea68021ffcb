// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/talkboard/internal/logging"
	"github.com/dmitrijs2005/talkboard/internal/server/repositories/resettokens"
	"github.com/robfig/cron/v3"
)

const runTimeout = time.Minute

// TokenJanitor deletes expired password reset tokens.
type TokenJanitor struct {
	tokens resettokens.Repository
	logger logging.Logger
	now    func() time.Time
	cron   *cron.Cron
}

func NewTokenJanitor(tokens resettokens.Repository, logger logging.Logger) *TokenJanitor {
	return &TokenJanitor{
		tokens: tokens,
		logger: logger.With("service", "TokenJanitor"),
		now:    time.Now,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// RunOnce deletes every token expired at the current time.
func (j *TokenJanitor) RunOnce(ctx context.Context) (int64, error) {
	n, err := j.tokens.DeleteExpired(ctx, j.now())
	if err != nil {
		return 0, fmt.Errorf("purge reset tokens: %w", err)
	}
	return n, nil
}

// Start schedules RunOnce with a cron spec such as "@every 15m".
func (j *TokenJanitor) Start(ctx context.Context, spec string) error {
	_, err := j.cron.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), runTimeout)
		defer cancel()
		n, err := j.RunOnce(runCtx)
		if err != nil {
			j.logger.Error(runCtx, "token purge failed", "error", err)
			return
		}
		if n > 0 {
			j.logger.Info(runCtx, "purged expired reset tokens", "count", n)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", spec, err)
	}
	j.cron.Start()
	j.logger.Info(ctx, "token janitor started", "schedule", spec)
	return nil
}

// Stop halts scheduling and waits for a running purge to finish.
func (j *TokenJanitor) Stop() {
	<-j.cron.Stop().Done()
}
