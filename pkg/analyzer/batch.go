package analyzer

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"mercator-hq/aegis/pkg/safety"
	"mercator-hq/aegis/pkg/telemetry/tracing"
)

// Batch screens texts and returns their scores in input order.
func (a *Analyzer) Batch(ctx context.Context, texts []string) ([]*safety.Score, error) {
	reqs := make([]safety.Request, len(texts))
	for i, text := range texts {
		reqs[i] = safety.Request{Text: text}
	}
	return a.BatchRequests(ctx, reqs)
}

// BatchRequests screens reqs and returns their scores in input order.
//
// With parallel batching enabled every item runs on its own goroutine
// with its own timeout, bypassing the worker pool but sharing the registry
// and cache. Otherwise items run one at a time on the pool. Either way the
// first failure fails the whole batch; there are no partial results.
func (a *Analyzer) BatchRequests(ctx context.Context, reqs []safety.Request) (scores []*safety.Score, err error) {
	if len(reqs) == 0 {
		return []*safety.Score{}, nil
	}

	mode := "sequential"
	if a.cfg.EnableParallel {
		mode = "parallel"
	}
	ctx, span := a.tracer.Start(ctx, "analyzer.batch", trace.WithAttributes(
		attribute.Int(tracing.AttrBatchSize, len(reqs)),
		attribute.String(tracing.AttrBatchMode, mode),
	))
	defer func() {
		tracing.SetError(span, err)
		span.End()
	}()

	a.metrics.RecordBatch(len(reqs), a.cfg.EnableParallel)

	if a.cfg.EnableParallel {
		return a.parallelBatch(ctx, reqs)
	}
	return a.sequentialBatch(ctx, reqs)
}

type batchSlot struct {
	index int
	score *safety.Score
}

func (a *Analyzer) parallelBatch(ctx context.Context, reqs []safety.Request) ([]*safety.Score, error) {
	g, gctx := errgroup.WithContext(ctx)

	results := make(chan batchSlot, len(reqs))
	for i, req := range reqs {
		g.Go(func() error {
			score, err := a.analyze(gctx, req, a.cfg.Timeout, goDispatch)
			if err != nil {
				return fmt.Errorf("batch item %d: %w", i, err)
			}
			results <- batchSlot{index: i, score: score}
			return nil
		})
	}

	err := g.Wait()
	close(results)
	if err != nil {
		return nil, err
	}

	scores := make([]*safety.Score, len(reqs))
	for slot := range results {
		scores[slot.index] = slot.score
	}

	for i, score := range scores {
		if score == nil {
			return nil, &safety.ConcurrencyError{
				Op:    fmt.Sprintf("batch slot %d", i),
				Cause: errors.New("missing result"),
			}
		}
	}

	return scores, nil
}

func (a *Analyzer) sequentialBatch(ctx context.Context, reqs []safety.Request) ([]*safety.Score, error) {
	scores := make([]*safety.Score, 0, len(reqs))
	for i, req := range reqs {
		score, err := a.AnalyzeRequest(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		scores = append(scores, score)
	}
	return scores, nil
}
