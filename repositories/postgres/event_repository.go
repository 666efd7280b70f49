package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/corebanking/pipeline-audit/models"
	"github.com/corebanking/pipeline-audit/observability"
	"github.com/corebanking/pipeline-audit/repositories"
)

// observe records the duration of one gateway operation
func observe(op string, start time.Time) {
	observability.EventStoreRequestDuration.WithLabelValues(op).
		Observe(time.Since(start).Seconds())
}

const eventColumns = `event_id, correlation_id, source_system, module_name,
	process_name, source_entity, destination_entity, key_identifier,
	checkpoint, event_timestamp, status, message, details`

// EventRepository implements the repositories.EventStore interface
type EventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewEventRepository creates a new audit event repository
func NewEventRepository(db *DB, logger *zap.Logger) repositories.EventStore {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// Insert appends one audit event. Events are immutable after this point;
// no update or delete statement exists in this repository.
func (r *EventRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	defer observe("insert", time.Now())

	query := `
		INSERT INTO audit_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	err := withWriteRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, query,
			event.EventID,
			event.CorrelationID,
			event.SourceSystem,
			event.ModuleName,
			event.ProcessName,
			event.SourceEntity,
			event.DestinationEntity,
			event.KeyIdentifier,
			event.Checkpoint,
			event.EventTimestamp,
			event.Status,
			event.Message,
			event.Details,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	r.logger.Debug("audit event inserted",
		zap.String("event_id", event.EventID.String()),
		zap.String("correlation_id", event.CorrelationID),
		zap.String("checkpoint", string(event.Checkpoint)))
	return nil
}

// FindByCorrelationID retrieves every event of one run, timestamp-ascending
func (r *EventRepository) FindByCorrelationID(ctx context.Context, correlationID string) ([]models.AuditEvent, error) {
	defer observe("find_by_correlation_id", time.Now())

	query := `
		SELECT ` + eventColumns + `
		FROM audit_events
		WHERE correlation_id = $1
		ORDER BY event_timestamp ASC
	`

	return r.queryEvents(ctx, query, correlationID)
}

// FindByFilter retrieves a page of events matching the filter, newest first
func (r *EventRepository) FindByFilter(ctx context.Context, filter repositories.EventFilter, page, size int) ([]models.AuditEvent, error) {
	defer observe("find_by_filter", time.Now())

	where, args := buildFilter(filter)
	args = append(args, size, page*size)

	query := fmt.Sprintf(`
		SELECT `+eventColumns+`
		FROM audit_events
		%s
		ORDER BY event_timestamp DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	return r.queryEvents(ctx, query, args...)
}

// FindCorrelationIDs retrieves a page of distinct correlation ids with at
// least one event matching the filter, most recently active run first
func (r *EventRepository) FindCorrelationIDs(ctx context.Context, filter repositories.EventFilter, page, size int) ([]string, error) {
	defer observe("find_correlation_ids", time.Now())

	where, args := buildFilter(filter)
	args = append(args, size, page*size)

	query := fmt.Sprintf(`
		SELECT correlation_id
		FROM audit_events
		%s
		GROUP BY correlation_id
		ORDER BY MAX(event_timestamp) DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	var ids []string
	err := withReadRetry(ctx, func() error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		ids = ids[:0]
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return backoff.Permanent(err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query correlation ids: %w", err)
	}
	return ids, nil
}

// CountByFilter counts events matching the filter
func (r *EventRepository) CountByFilter(ctx context.Context, filter repositories.EventFilter) (int64, error) {
	defer observe("count_by_filter", time.Now())

	where, args := buildFilter(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM audit_events %s`, where)

	var count int64
	err := withReadRetry(ctx, func() error {
		return r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return count, nil
}

// FindByTimestampRange retrieves events within [start, end], oldest first
func (r *EventRepository) FindByTimestampRange(ctx context.Context, start, end time.Time) ([]models.AuditEvent, error) {
	defer observe("find_by_timestamp_range", time.Now())

	query := `
		SELECT ` + eventColumns + `
		FROM audit_events
		WHERE event_timestamp >= $1 AND event_timestamp <= $2
		ORDER BY event_timestamp ASC
	`

	return r.queryEvents(ctx, query, start, end)
}

// buildFilter assembles the WHERE clause for the optional filter fields
func buildFilter(filter repositories.EventFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.SourceSystem != "" {
		add("source_system", filter.SourceSystem)
	}
	if filter.ModuleName != "" {
		add("module_name", filter.ModuleName)
	}
	if filter.Status != "" {
		add("status", filter.Status)
	}
	if filter.Checkpoint != "" {
		add("checkpoint", filter.Checkpoint)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// queryEvents is a helper method to query multiple audit events
func (r *EventRepository) queryEvents(ctx context.Context, query string, args ...interface{}) ([]models.AuditEvent, error) {
	var events []models.AuditEvent

	err := withReadRetry(ctx, func() error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		events = events[:0]
		for rows.Next() {
			var ev models.AuditEvent
			err := rows.Scan(
				&ev.EventID,
				&ev.CorrelationID,
				&ev.SourceSystem,
				&ev.ModuleName,
				&ev.ProcessName,
				&ev.SourceEntity,
				&ev.DestinationEntity,
				&ev.KeyIdentifier,
				&ev.Checkpoint,
				&ev.EventTimestamp,
				&ev.Status,
				&ev.Message,
				&ev.Details,
			)
			if err != nil {
				return backoff.Permanent(err)
			}
			events = append(events, ev)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}

	return events, nil
}
