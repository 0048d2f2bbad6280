package repository

import (
	"context"

	"ReserveDesk/internal/domain/models"
	"ReserveDesk/internal/domain/units"
)

// PortfolioSource supplies the companies an allocation runs against. The
// synthetic generator and any real-portfolio adapter implement the same
// interface so the engine never knows which one it got.
type PortfolioSource interface {
	Companies(ctx context.Context) ([]models.Company, error)
}

// AuditSink persists completed allocation outputs as audit records. The
// ranking and conservation flag must be stored verbatim for later
// reconciliation.
type AuditSink interface {
	Record(ctx context.Context, requestID string, out *models.ReservesOutput) error
	RecordBatch(ctx context.Context, records []AuditRecord) error
	Close() error
}

// AuditRecord pairs an output with its originating request.
type AuditRecord struct {
	RequestID string
	Output    *models.ReservesOutput
}

// Metrics abstracts the Prometheus recorder so domain code stays free of
// client_golang types.
type Metrics interface {
	RecordRun(status string)
	RecordError(kind string)
	RecordRemainingReserve(cents units.Cents)
	RecordLatency(op string, seconds float64)
	RecordStaleDrop()
}
