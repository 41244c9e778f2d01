package worker

import (
	"context"
	"time"

	"github.com/kube-rca/authd/internal/logging"
)

type Purger interface {
	PurgeExpired(ctx context.Context) (sessions, codes int64, err error)
}

type CleanupRecorder interface {
	ObserveCleanup(record string, deleted int64)
}

// Cleanup periodically removes expired sessions and verification codes.
type Cleanup struct {
	purger   Purger
	interval time.Duration
	logger   logging.Logger
	metrics  CleanupRecorder
}

func NewCleanup(purger Purger, interval time.Duration, logger logging.Logger, metrics CleanupRecorder) *Cleanup {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Cleanup{purger: purger, interval: interval, logger: logger, metrics: metrics}
}

// Run purges once immediately and then every interval until ctx is done.
func (c *Cleanup) Run(ctx context.Context) {
	c.logger.Info(ctx, "cleanup worker started", "interval", c.interval.String())
	c.runOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info(context.WithoutCancel(ctx), "cleanup worker stopped")
			return
		case <-ticker.C:
			c.runOnce(ctx)
		}
	}
}

func (c *Cleanup) runOnce(ctx context.Context) {
	sessions, codes, err := c.purger.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn(ctx, "cleanup failed", "error", err)
		}
		return
	}
	if c.metrics != nil {
		c.metrics.ObserveCleanup("sessions", sessions)
		c.metrics.ObserveCleanup("codes", codes)
	}
	c.logger.Debug(ctx, "cleanup finished", "sessions", sessions, "codes", codes)
}
