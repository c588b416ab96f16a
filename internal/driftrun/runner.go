package driftrun

import (
	"context"
	"errors"
	"time"

	"github.com/driftwatch/driftwatch/internal/domain"
	"github.com/driftwatch/driftwatch/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Runner processes pending drift runs in small sequential batches and reaps
// runs stuck in running past the stale timeout. Runs are independent; each
// reads only its own two datasets and writes only its own rows, so batch
// members never contend with one another.
type Runner struct {
	service *Service
	runs    repository.DriftRunRepository
	logger  *zap.Logger

	interval     time.Duration
	batchSize    int
	staleTimeout time.Duration

	runsProcessed *prometheus.CounterVec
	staleReaped   prometheus.Counter

	stop chan struct{}
	done chan struct{}
}

// NewRunner wires the background processor.
func NewRunner(service *Service, runs repository.DriftRunRepository, logger *zap.Logger, interval time.Duration, batchSize int, staleTimeout time.Duration, reg prometheus.Registerer) *Runner {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 5
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	return &Runner{
		service:      service,
		runs:         runs,
		logger:       logger,
		interval:     interval,
		batchSize:    batchSize,
		staleTimeout: staleTimeout,
		runsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "driftwatch_runs_processed_total",
			Help: "Drift runs processed by the background runner, by outcome.",
		}, []string{"outcome"}),
		staleReaped: factory.NewCounter(prometheus.CounterOpts{
			Name: "driftwatch_stale_runs_reaped_total",
			Help: "Running drift runs re-marked as failed after the stale timeout.",
		}),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the processing loop.
func (r *Runner) Start(ctx context.Context) {
	go func() {
		defer close(r.done)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				r.reapStale(ctx)
				r.processBatch(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for the current batch to finish.
func (r *Runner) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Runner) reapStale(ctx context.Context) {
	if r.staleTimeout <= 0 {
		return
	}
	reaped, err := r.runs.FailStale(ctx, r.staleTimeout)
	if err != nil {
		r.logger.Error("failed to reap stale drift runs", zap.Error(err))
		return
	}
	if reaped > 0 {
		r.staleReaped.Add(float64(reaped))
		r.logger.Warn("reaped stale drift runs", zap.Int("count", reaped))
	}
}

func (r *Runner) processBatch(ctx context.Context) {
	pending, err := r.runs.ListPending(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("failed to list pending drift runs", zap.Error(err))
		return
	}

	for _, run := range pending {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		default:
		}

		result, err := r.service.Execute(ctx, run.ID)
		switch {
		case err == nil:
			r.runsProcessed.WithLabelValues(string(domain.DriftRunStatusCompleted)).Inc()
		case errors.Is(err, ErrRunNotRunnable):
			// Claimed by a concurrent worker or already terminal; not an outcome.
		case errors.Is(err, repository.ErrNotFound):
			r.runsProcessed.WithLabelValues(string(domain.DriftRunStatusFailed)).Inc()
			r.logger.Warn("pending drift run references missing data", zap.String("drift_run_id", run.ID.String()), zap.Error(err))
		default:
			status := result.Status
			if status == "" {
				status = domain.DriftRunStatusFailed
			}
			r.runsProcessed.WithLabelValues(string(status)).Inc()
		}
	}
}
