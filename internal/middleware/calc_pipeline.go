package middleware

import (
	"context"
	"sync/atomic"

	"ReserveDesk/internal/domain/models"
	domrepo "ReserveDesk/internal/domain/repository"
	applogger "ReserveDesk/pkg/logger"
)

// CalcFn is one calculation the pipeline runs. The engine call inside stays
// fully synchronous; the pipeline only decides whether its result is still
// current when it completes.
type CalcFn func(ctx context.Context) (*models.ReservesOutput, error)

// CalcResult is an epoch-tagged calculation outcome. Stale results carry no
// output: callers treat them as "no update", never as a failure to retry.
type CalcResult struct {
	Epoch  int64
	Output *models.ReservesOutput
	Stale  bool
}

// CalcPipeline serializes "run calculation for current inputs" requests so
// only the most recently requested calculation's result is ever applied,
// even when calculations complete out of order. The epoch counter is the
// single piece of shared mutable state; everything else is request-local.
type CalcPipeline struct {
	epoch   atomic.Int64
	metrics domrepo.Metrics
	l       *applogger.Logger
}

// PipelineOption configures a CalcPipeline.
type PipelineOption func(*CalcPipeline)

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) PipelineOption {
	return func(p *CalcPipeline) { p.l = l }
}

// NewCalcPipeline creates a pipeline with its own epoch counter. Each
// session owns its own pipeline; there is no process-global counter.
func NewCalcPipeline(metrics domrepo.Metrics, opts ...PipelineOption) *CalcPipeline {
	p := &CalcPipeline{metrics: metrics}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run captures a fresh epoch token, executes fn to completion, and applies
// the result only if no newer request (or cancellation) advanced the
// counter in the meantime. Cancellation is advisory: a superseded fn still
// runs, its result is simply unobservable.
func (p *CalcPipeline) Run(ctx context.Context, requestID string, fn CalcFn) (CalcResult, error) {
	token := p.epoch.Add(1)

	out, err := fn(ctx)

	if p.epoch.Load() != token {
		if p.metrics != nil {
			p.metrics.RecordStaleDrop()
		}
		if p.l != nil {
			p.l.Debug("calculation superseded",
				applogger.String("request_id", requestID),
				applogger.Int64("epoch", token))
		}
		// Errors from superseded runs are dropped with the result; the
		// caller that superseded them owns the current outcome.
		return CalcResult{Epoch: token, Stale: true}, nil
	}
	if err != nil {
		return CalcResult{Epoch: token}, err
	}
	return CalcResult{Epoch: token, Output: out}, nil
}

// CancelAll invalidates every outstanding calculation by advancing the
// epoch without running anything. Returns the new epoch.
func (p *CalcPipeline) CancelAll() int64 {
	return p.epoch.Add(1)
}

// Epoch returns the current counter value.
func (p *CalcPipeline) Epoch() int64 {
	return p.epoch.Load()
}
