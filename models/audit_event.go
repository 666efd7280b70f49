package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Status represents the outcome reported by a checkpoint event
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusWarning Status = "WARNING"
)

// IsValid reports whether s is a known status value
func (s Status) IsValid() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusWarning:
		return true
	}
	return false
}

// Checkpoint represents a stage of the batch pipeline.
// The set is fixed and totally ordered; the order is used for report
// presentation and timeout calculation only. Events arriving out of order
// are never rejected, since retries and partial failures are expected.
type Checkpoint string

const (
	CheckpointRhelLanding       Checkpoint = "RHEL_LANDING"
	CheckpointSQLLoaderStart    Checkpoint = "SQLLOADER_START"
	CheckpointSQLLoaderComplete Checkpoint = "SQLLOADER_COMPLETE"
	CheckpointLogicApplied      Checkpoint = "LOGIC_APPLIED"
	CheckpointFileGenerated     Checkpoint = "FILE_GENERATED"
)

// checkpointOrder maps each stage to its position in the pipeline
var checkpointOrder = map[Checkpoint]int{
	CheckpointRhelLanding:       0,
	CheckpointSQLLoaderStart:    1,
	CheckpointSQLLoaderComplete: 2,
	CheckpointLogicApplied:      3,
	CheckpointFileGenerated:     4,
}

// AllCheckpoints returns the pipeline stages in execution order
func AllCheckpoints() []Checkpoint {
	return []Checkpoint{
		CheckpointRhelLanding,
		CheckpointSQLLoaderStart,
		CheckpointSQLLoaderComplete,
		CheckpointLogicApplied,
		CheckpointFileGenerated,
	}
}

// Order returns the position of the checkpoint in the pipeline,
// or -1 for an unknown stage
func (c Checkpoint) Order() int {
	if ord, ok := checkpointOrder[c]; ok {
		return ord
	}
	return -1
}

// IsValid reports whether c is a known pipeline stage
func (c Checkpoint) IsValid() bool {
	_, ok := checkpointOrder[c]
	return ok
}

// IsTerminal reports whether c is the final pipeline stage.
// A run is complete only once a terminal event exists.
func (c Checkpoint) IsTerminal() bool {
	return c == CheckpointFileGenerated
}

// Successors returns the stages that logically follow c in pipeline order
func (c Checkpoint) Successors() []Checkpoint {
	ord := c.Order()
	if ord < 0 {
		return nil
	}
	all := AllCheckpoints()
	return all[ord+1:]
}

// ParseCheckpoint parses a stored stage name. Unknown names are reported
// so that aggregation sites can skip the record instead of aborting.
func ParseCheckpoint(s string) (Checkpoint, bool) {
	c := Checkpoint(s)
	return c, c.IsValid()
}

// AuditEvent represents one immutable record of a pipeline action.
// Events are appended once by upstream stages and never mutated; the
// reconciliation engine only reads them.
type AuditEvent struct {
	EventID           uuid.UUID       `json:"event_id" db:"event_id"`
	CorrelationID     string          `json:"correlation_id" db:"correlation_id"`
	SourceSystem      string          `json:"source_system" db:"source_system"`
	ModuleName        *string         `json:"module_name,omitempty" db:"module_name"`
	ProcessName       *string         `json:"process_name,omitempty" db:"process_name"`
	SourceEntity      *string         `json:"source_entity,omitempty" db:"source_entity"`
	DestinationEntity *string         `json:"destination_entity,omitempty" db:"destination_entity"`
	KeyIdentifier     *string         `json:"key_identifier,omitempty" db:"key_identifier"`
	Checkpoint        Checkpoint      `json:"checkpoint" db:"checkpoint"`
	EventTimestamp    time.Time       `json:"event_timestamp" db:"event_timestamp"`
	Status            Status          `json:"status" db:"status"`
	Message           *string         `json:"message,omitempty" db:"message"`
	Details           json.RawMessage `json:"details,omitempty" db:"details"` // JSONB, stage-specific metrics
}

// TableName returns the table name for the AuditEvent model
func (AuditEvent) TableName() string {
	return "audit_events"
}

// NewAuditEvent creates a new AuditEvent instance
func NewAuditEvent(correlationID, sourceSystem string, checkpoint Checkpoint, status Status) *AuditEvent {
	return &AuditEvent{
		EventID:        uuid.New(),
		CorrelationID:  correlationID,
		SourceSystem:   sourceSystem,
		Checkpoint:     checkpoint,
		Status:         status,
		EventTimestamp: time.Now().UTC(),
	}
}

// WithModule sets the executing module name
func (e *AuditEvent) WithModule(moduleName string) *AuditEvent {
	e.ModuleName = &moduleName
	return e
}

// WithProcess sets the process name
func (e *AuditEvent) WithProcess(processName string) *AuditEvent {
	e.ProcessName = &processName
	return e
}

// WithEntities sets the source and destination entities
func (e *AuditEvent) WithEntities(source, destination string) *AuditEvent {
	e.SourceEntity = &source
	e.DestinationEntity = &destination
	return e
}

// WithKey sets the key identifier
func (e *AuditEvent) WithKey(key string) *AuditEvent {
	e.KeyIdentifier = &key
	return e
}

// WithMessage sets the human-readable message
func (e *AuditEvent) WithMessage(message string) *AuditEvent {
	e.Message = &message
	return e
}

// WithTimestamp overrides the event timestamp (normalized to UTC)
func (e *AuditEvent) WithTimestamp(ts time.Time) *AuditEvent {
	e.EventTimestamp = ts.UTC()
	return e
}

// WithDetails sets the stage-specific details payload
func (e *AuditEvent) WithDetails(details interface{}) *AuditEvent {
	if data, err := json.Marshal(details); err == nil {
		e.Details = data
	}
	return e
}

// Details payload accessors.
//
// The details column is schema-less JSONB; each stage documents an expected
// shape but nothing enforces it, so every accessor reports whether the key
// was present and parseable. Money-like control totals use exact decimal
// arithmetic to avoid reconciliation false positives.

// detailInt extracts an integer field from the details payload.
// Fractional values are malformed for counts, so they are rejected
// rather than truncated.
func (e *AuditEvent) detailInt(keys ...string) (int64, bool) {
	if len(e.Details) == 0 {
		return 0, false
	}
	for _, key := range keys {
		v := gjson.GetBytes(e.Details, key)
		if !v.Exists() {
			continue
		}
		raw := v.Raw
		switch v.Type {
		case gjson.String:
			raw = v.Str
		case gjson.Number:
		default:
			return 0, false
		}
		d, err := decimal.NewFromString(raw)
		if err != nil || !d.IsInteger() {
			return 0, false
		}
		return d.IntPart(), true
	}
	return 0, false
}

// detailDecimal extracts an exact decimal field from the details payload
func (e *AuditEvent) detailDecimal(keys ...string) (decimal.Decimal, bool) {
	if len(e.Details) == 0 {
		return decimal.Zero, false
	}
	for _, key := range keys {
		v := gjson.GetBytes(e.Details, key)
		if !v.Exists() {
			continue
		}
		// Parse from the raw token so float formatting never rounds money
		raw := v.Raw
		if v.Type == gjson.String {
			raw = v.Str
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}

// RecordCount returns the record count reported by this event. FILE_GENERATED
// events report recordCount; loader events report rowsLoaded.
func (e *AuditEvent) RecordCount() (int64, bool) {
	return e.detailInt("recordCount", "rowsLoaded", "rowCount")
}

// RowsRead returns the rows read by the SQL loader
func (e *AuditEvent) RowsRead() (int64, bool) {
	return e.detailInt("rowsRead")
}

// RowsLoaded returns the rows committed by the SQL loader
func (e *AuditEvent) RowsLoaded() (int64, bool) {
	return e.detailInt("rowsLoaded")
}

// RowsRejected returns the rows rejected by the SQL loader
func (e *AuditEvent) RowsRejected() (int64, bool) {
	return e.detailInt("rowsRejected")
}

// ControlTotal returns the money-like control total carried by this event
func (e *AuditEvent) ControlTotal() (decimal.Decimal, bool) {
	return e.detailDecimal("controlTotal", "debitTotal", "creditTotal", "amount")
}

// FileSize returns the landed file size in bytes
func (e *AuditEvent) FileSize() (int64, bool) {
	return e.detailInt("fileSizeBytes", "fileSize")
}

// FileHash returns the landed file content hash
func (e *AuditEvent) FileHash() (string, bool) {
	if len(e.Details) == 0 {
		return "", false
	}
	v := gjson.GetBytes(e.Details, "fileHash")
	if v.Type != gjson.String {
		return "", false
	}
	return v.Str, true
}
