package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ReserveDesk/internal/domain/models"
	domrepo "ReserveDesk/internal/domain/repository"
	pkgkafka "ReserveDesk/pkg/kafka"
	"ReserveDesk/pkg/util"
)

// ClickHouseAuditStore persists allocation outputs to a reserve_audit
// table. The full output is stored as JSON alongside the reconciliation
// columns so the ranking and conservation flag survive verbatim.
type ClickHouseAuditStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseAuditStore creates the ClickHouse audit sink.
func NewClickHouseAuditStore(db *sql.DB, table string) domrepo.AuditSink {
	return &ClickHouseAuditStore{db: db, table: table}
}

func (s *ClickHouseAuditStore) Record(ctx context.Context, requestID string, out *models.ReservesOutput) error {
	return s.RecordBatch(ctx, []domrepo.AuditRecord{{RequestID: requestID, Output: out}})
}

func (s *ClickHouseAuditStore) RecordBatch(ctx context.Context, records []domrepo.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}
	const chunkSize = 500
	for start := 0; start < len(records); start += chunkSize {
		end := start + chunkSize
		if end > len(records) {
			end = len(records)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, rec := range records[start:end] {
			if rec.Output == nil {
				continue
			}
			payload, err := json.Marshal(rec.Output)
			if err != nil {
				return fmt.Errorf("audit marshal: %w", err)
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				rec.RequestID,
				time.Now().UTC(),
				rec.Output.Metadata.QuarterIndex,
				int64(rec.Output.Metadata.TotalAvailableCents),
				int64(rec.Output.Metadata.TotalAllocatedCents),
				int64(rec.Output.RemainingCents),
				rec.Output.Metadata.CompaniesFunded,
				boolToUint8(rec.Output.Metadata.ConservationCheckPassed),
				string(payload),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (request_id, run_at, quarter_index, available_cents, allocated_cents, remaining_cents, companies_funded, conservation_ok, payload) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("audit insert: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseAuditStore) Close() error {
	return nil // pool owned by pkg/clickhouse client
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// KafkaAuditPublisher emits allocation outputs as JSON events on an audit
// topic, keyed by request id so replays for one request stay in order.
type KafkaAuditPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaAuditPublisher creates the Kafka audit sink.
func NewKafkaAuditPublisher(producer *pkgkafka.Producer, topic string) domrepo.AuditSink {
	return &KafkaAuditPublisher{producer: producer, topic: topic}
}

func (p *KafkaAuditPublisher) Record(ctx context.Context, requestID string, out *models.ReservesOutput) error {
	return p.producer.Publish(ctx, p.topic, []byte(requestID), auditEvent(requestID, out))
}

func (p *KafkaAuditPublisher) RecordBatch(ctx context.Context, records []domrepo.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(records))
	for _, rec := range records {
		if rec.Output == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(rec.RequestID),
			Value: auditEvent(rec.RequestID, rec.Output),
		})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaAuditPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

func auditEvent(requestID string, out *models.ReservesOutput) map[string]interface{} {
	return map[string]interface{}{
		"request_id":       requestID,
		"run_at":           time.Now().UTC().Format(time.RFC3339Nano),
		"quarter_index":    out.Metadata.QuarterIndex,
		"quarter_label":    util.QuarterLabel(out.Metadata.QuarterIndex),
		"available_cents":  int64(out.Metadata.TotalAvailableCents),
		"allocated_cents":  int64(out.Metadata.TotalAllocatedCents),
		"remaining_cents":  int64(out.RemainingCents),
		"conservation_ok":  out.Metadata.ConservationCheckPassed,
		"companies_funded": out.Metadata.CompaniesFunded,
		"output":           out,
	}
}

// NoopAuditSink discards records; used when audit.backend is "none".
type NoopAuditSink struct{}

func (NoopAuditSink) Record(context.Context, string, *models.ReservesOutput) error { return nil }
func (NoopAuditSink) RecordBatch(context.Context, []domrepo.AuditRecord) error     { return nil }
func (NoopAuditSink) Close() error                                                { return nil }
