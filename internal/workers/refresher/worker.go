package refresher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cryptofolio/cryptofolio/internal/domain/services/portfolio"
	"github.com/cryptofolio/cryptofolio/internal/infrastructure/config"
	"github.com/cryptofolio/cryptofolio/pkg/jobqueue"
	"github.com/cryptofolio/cryptofolio/pkg/logger"
	"github.com/cryptofolio/cryptofolio/pkg/metrics"
	"github.com/google/uuid"
)

const jobName = "price-refresh"

// Worker periodically refreshes current prices for every user's
// holdings. Users are processed in a small bounded pool with a delay
// between batches so the upstream price API's rate limit is respected
// rather than hammered.
type Worker struct {
	service   *portfolio.Service
	scheduler *jobqueue.JobScheduler
	cfg       config.RefresherConfig
	logger    *logger.Logger
}

// NewWorker creates the price refresh worker.
func NewWorker(service *portfolio.Service, scheduler *jobqueue.JobScheduler, cfg config.RefresherConfig, log *logger.Logger) *Worker {
	if cfg.UserConcurrency <= 0 {
		cfg.UserConcurrency = 3
	}
	return &Worker{
		service:   service,
		scheduler: scheduler,
		cfg:       cfg,
		logger:    log,
	}
}

// Register adds the refresh job to the scheduler. The scheduler's own
// Start/Stop lifecycle drives execution.
func (w *Worker) Register() error {
	if !w.cfg.Enabled {
		w.logger.Info("Price refresher disabled")
		return nil
	}

	return w.scheduler.AddJob(jobqueue.ScheduledJob{
		Name:     jobName,
		Schedule: w.cfg.Schedule,
		Timeout:  30 * time.Minute,
		Handler:  w.RefreshAll,
	})
}

// RefreshAll refreshes prices for all users with holdings. One user's
// failure is logged and counted but does not stop the run.
func (w *Worker) RefreshAll(ctx context.Context) error {
	userIDs, err := w.service.ListUsersWithHoldings(ctx)
	if err != nil {
		metrics.RefreshRunsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to list users: %w", err)
	}
	if len(userIDs) == 0 {
		metrics.RefreshRunsTotal.WithLabelValues("ok").Inc()
		return nil
	}

	var (
		wg     sync.WaitGroup
		failed int64
		sem    = make(chan struct{}, w.cfg.UserConcurrency)
		delay  = time.Duration(w.cfg.BatchDelayMs) * time.Millisecond
	)

	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			break
		}

		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := w.service.RefreshUserPrices(ctx, userID); err != nil {
				w.logger.Warnw("Price refresh failed for user",
					"user_id", userID, "error", err)
				atomic.AddInt64(&failed, 1)
			}

			// Backpressure between users sharing a pool slot.
			if delay > 0 {
				time.Sleep(delay)
			}
		}(userID)
	}
	wg.Wait()

	if failed > 0 {
		metrics.RefreshRunsTotal.WithLabelValues("partial").Inc()
		w.logger.Warnw("Price refresh finished with failures",
			"users", len(userIDs), "failed", failed)
		return nil
	}

	metrics.RefreshRunsTotal.WithLabelValues("ok").Inc()
	w.logger.Infow("Price refresh finished", "users", len(userIDs))
	return nil
}
