package repositories

import (
	"context"
	"time"

	"github.com/corebanking/pipeline-audit/models"
)

// EventFilter narrows event queries. Zero-value fields are not applied.
type EventFilter struct {
	SourceSystem string
	ModuleName   string
	Status       models.Status
	Checkpoint   models.Checkpoint
}

// IsZero reports whether no filter field is set
func (f EventFilter) IsZero() bool {
	return f.SourceSystem == "" && f.ModuleName == "" && f.Status == "" && f.Checkpoint == ""
}

// EventStore is the gateway to durable audit event storage. Events are
// append-only: no update or delete is exposed, so everything read back can
// be treated as an immutable snapshot of the run.
type EventStore interface {
	// Insert appends one audit event
	Insert(ctx context.Context, event *models.AuditEvent) error

	// FindByCorrelationID returns every event of one run, timestamp-ascending
	FindByCorrelationID(ctx context.Context, correlationID string) ([]models.AuditEvent, error)

	// FindByFilter returns a page of events matching the filter,
	// timestamp-descending
	FindByFilter(ctx context.Context, filter EventFilter, page, size int) ([]models.AuditEvent, error)

	// FindCorrelationIDs returns a page of distinct correlation ids whose
	// runs contain at least one event matching the filter, most recently
	// active run first. Callers that need a run's events must follow up
	// with FindByCorrelationID so they always see the run in full.
	FindCorrelationIDs(ctx context.Context, filter EventFilter, page, size int) ([]string, error)

	// CountByFilter returns the number of events matching the filter
	CountByFilter(ctx context.Context, filter EventFilter) (int64, error)

	// FindByTimestampRange returns events with start <= timestamp <= end,
	// timestamp-ascending
	FindByTimestampRange(ctx context.Context, start, end time.Time) ([]models.AuditEvent, error)
}
