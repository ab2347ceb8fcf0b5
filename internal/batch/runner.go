// Package batch fetches fundamentals for many tickers concurrently and
// turns them into ratio rows.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mauv0809/stock-ratios/internal/ingest"
	"github.com/mauv0809/stock-ratios/internal/models"
	"github.com/mauv0809/stock-ratios/internal/ratios"
)

// DefaultWorkers is the size of the worker pool.
const DefaultWorkers = 5

// Fetcher is the part of a provider the batch needs.
type Fetcher interface {
	Fundamentals(ctx context.Context, ticker string) (*ingest.Fundamentals, error)
}

// Runner processes a ticker list across a bounded pool of workers.
type Runner struct {
	fetcher Fetcher
	workers int
	logger  zerolog.Logger
}

// NewRunner creates a runner. workers below one fall back to DefaultWorkers.
func NewRunner(fetcher Fetcher, workers int, logger zerolog.Logger) *Runner {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Runner{fetcher: fetcher, workers: workers, logger: logger}
}

// Run processes every ticker and returns the collected outcome. Rows arrive
// in completion order. A failing ticker never affects the others and Run
// itself does not fail; cancelling ctx turns unfinished tickers into failures.
func (r *Runner) Run(ctx context.Context, tickers []string) *Result {
	start := time.Now()
	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: start,
		collector: NewCollector(),
	}

	r.logger.Info().Str("run_id", res.RunID).Int("tickers", len(tickers)).Int("workers", r.workers).Msg("starting batch")

	rows := make(chan models.BatchRow)
	go func() {
		var g errgroup.Group
		g.SetLimit(r.workers)
		for _, ticker := range tickers {
			g.Go(func() error {
				rows <- r.process(ctx, ticker)
				return nil
			})
		}
		_ = g.Wait()
		close(rows)
	}()

	// Only this goroutine touches the collector.
	for row := range rows {
		if row.Failed() {
			r.logger.Warn().Str("ticker", row.Ticker).Err(row.Err).Msg("ticker failed")
		} else {
			r.logger.Debug().Str("ticker", row.Ticker).Msg("ticker processed")
		}
		res.collector.Add(row)
	}

	res.Elapsed = time.Since(start)
	r.logger.Info().
		Str("run_id", res.RunID).
		Int("succeeded", len(res.Rows())).
		Int("failed", len(res.Failed())).
		Dur("elapsed", res.Elapsed).
		Msg("batch complete")
	return res
}

// process fetches and computes one ticker. Every failure, including a
// panic, becomes a failed row.
func (r *Runner) process(ctx context.Context, ticker string) (row models.BatchRow) {
	defer func() {
		if p := recover(); p != nil {
			row = models.FailedRow(ticker, fmt.Errorf("processing %s: panic: %v", ticker, p))
		}
	}()

	if err := ctx.Err(); err != nil {
		return models.FailedRow(ticker, err)
	}

	f, err := r.fetcher.Fundamentals(ctx, ticker)
	if err != nil {
		return models.FailedRow(ticker, err)
	}
	if f == nil || f.Snapshot.Price == nil {
		return models.FailedRow(ticker, fmt.Errorf("%s: no market price: %w", ticker, models.ErrInvalidTicker))
	}

	snap := f.Snapshot
	snap.Ticker = ticker
	return models.NewBatchRow(ticker, snap, ratios.Compute(f.Statements))
}

// Result is the outcome of one batch run.
type Result struct {
	RunID     string
	StartedAt time.Time
	Elapsed   time.Duration
	collector *Collector
}

// Rows returns the successful rows in completion order.
func (r *Result) Rows() []models.BatchRow { return r.collector.Rows() }

// Failed returns the failed tickers in completion order.
func (r *Result) Failed() []string { return r.collector.Failed() }

// Errors returns the error recorded for each failed ticker.
func (r *Result) Errors() map[string]error { return r.collector.Errors() }

// Summary describes the run for logs and API responses.
func (r *Result) Summary() models.RunSummary {
	failed := r.Failed()
	if failed == nil {
		failed = []string{}
	}
	return models.RunSummary{
		RunID:     r.RunID,
		Succeeded: len(r.Rows()),
		Failed:    failed,
		StartedAt: r.StartedAt,
		Elapsed:   r.Elapsed.String(),
	}
}
