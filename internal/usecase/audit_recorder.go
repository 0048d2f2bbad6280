package usecase

import (
	"context"
	"sync"
	"time"

	domrepo "ReserveDesk/internal/domain/repository"
	applogger "ReserveDesk/pkg/logger"
)

// AuditRecorder is a write-behind buffer between the allocation service and
// the configured audit backend. Recording is best-effort: a full buffer or
// failing backend never blocks or fails an allocation request.
type AuditRecorder struct {
	sink    domrepo.AuditSink
	metrics domrepo.Metrics
	l       *applogger.Logger

	batchSz int
	batchTO time.Duration

	ch      chan domrepo.AuditRecord
	stopCh  chan struct{}
	mu      sync.Mutex
	started bool
}

// RecorderOption configures an AuditRecorder.
type RecorderOption func(*AuditRecorder)

// WithBatch sets flush batch size and timeout.
func WithBatch(size int, timeout time.Duration) RecorderOption {
	return func(r *AuditRecorder) {
		if size > 0 {
			r.batchSz = size
		}
		if timeout > 0 {
			r.batchTO = timeout
		}
	}
}

// WithRecorderLogger injects a structured logger.
func WithRecorderLogger(l *applogger.Logger) RecorderOption {
	return func(r *AuditRecorder) { r.l = l }
}

// NewAuditRecorder creates a recorder in front of sink.
func NewAuditRecorder(sink domrepo.AuditSink, metrics domrepo.Metrics, opts ...RecorderOption) *AuditRecorder {
	r := &AuditRecorder{
		sink:    sink,
		metrics: metrics,
		batchSz: 50,
		batchTO: 2 * time.Second,
		ch:      make(chan domrepo.AuditRecord, 1000),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the background flush loop.
func (r *AuditRecorder) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(r.batchTO)
		defer ticker.Stop()

		batch := make([]domrepo.AuditRecord, 0, r.batchSz)
		flush := func() {
			if len(batch) == 0 {
				return
			}
			if err := r.sink.RecordBatch(ctx, batch); err != nil {
				if r.metrics != nil {
					r.metrics.RecordError("audit_flush")
				}
				if r.l != nil {
					r.l.Warn("audit flush failed", applogger.Error(err), applogger.Int("batch", len(batch)))
				}
			}
			batch = batch[:0]
		}

		for {
			select {
			case <-r.stopCh:
				flush()
				return
			case rec := <-r.ch:
				batch = append(batch, rec)
				if len(batch) >= r.batchSz {
					flush()
				}
			case <-ticker.C:
				flush()
			}
		}
	}()
}

// Enqueue buffers one record without blocking; drops on overflow.
func (r *AuditRecorder) Enqueue(rec domrepo.AuditRecord) {
	select {
	case r.ch <- rec:
	default:
		if r.metrics != nil {
			r.metrics.RecordError("audit_buffer_full")
		}
	}
}

// Stop stops the flush loop, flushing whatever is batched.
func (r *AuditRecorder) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	r.mu.Unlock()
	close(r.stopCh)
}

// Close releases the underlying sink.
func (r *AuditRecorder) Close() error {
	return r.sink.Close()
}
