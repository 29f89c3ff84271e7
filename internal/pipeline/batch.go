package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/trustcrawl/internal/model"
)

const defaultBatchConcurrency = 4

// BatchProcessor runs one fresh pipeline per report, usually one report per
// chain. Neighbor lookups stay bounded by the crawl gate the pipelines share,
// whatever the batch concurrency.
type BatchProcessor struct {
	newPipeline func() *Pipeline
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the batch logger. Nil keeps slog.Default().
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithConcurrency caps the number of reports in flight. Values below one
// are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor returns a processor that calls newPipeline once per report.
func NewBatchProcessor(newPipeline func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	b := &BatchProcessor{
		newPipeline: newPipeline,
		concurrency: defaultBatchConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ProcessBatch runs every report and calls done, if not nil, as each one
// finishes. done runs on a worker goroutine, so it must be safe for
// concurrent use.
//
// A failed request is recorded in its report and does not stop its siblings.
// The returned error is non-nil only when ctx ends before every report has
// started; reports that never started are left untouched.
func (b *BatchProcessor) ProcessBatch(ctx context.Context, reports []*model.TrustReport, done func(*model.TrustReport)) error {
	start := time.Now()
	b.logger.Debug("batch started", "requests", len(reports), "concurrency", b.concurrency)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for _, report := range reports {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := b.newPipeline().Execute(ctx, report); err != nil {
				b.logger.Warn("request failed", "chain", report.Chain, "request_id", report.RequestID, "error", err)
			} else {
				b.logger.Info("request done", "chain", report.Chain, "request_id", report.RequestID, "scores", len(report.Scores))
			}
			if done != nil {
				done(report)
			}
			return nil
		})
	}

	err := g.Wait()
	b.logger.Debug("batch finished", "requests", len(reports), "elapsed", time.Since(start))
	return err
}
