package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DetailLevel selects how much of a reconciliation report is populated
type DetailLevel string

const (
	DetailSummary  DetailLevel = "summary"
	DetailStandard DetailLevel = "standard"
	DetailDetailed DetailLevel = "detailed"
)

// IsValid reports whether d is a known detail level
func (d DetailLevel) IsValid() bool {
	switch d {
	case DetailSummary, DetailStandard, DetailDetailed:
		return true
	}
	return false
}

// RunStatus is the overall outcome derived for one pipeline run
type RunStatus string

const (
	RunSuccess    RunStatus = "SUCCESS"
	RunWarning    RunStatus = "WARNING"
	RunFailure    RunStatus = "FAILURE"
	RunInProgress RunStatus = "IN_PROGRESS"
)

// CheckpointSummary is the per-stage summary row of a report. When a stage
// has multiple events the most recent event's details are authoritative,
// since retries overwrite provisional figures.
type CheckpointSummary struct {
	Checkpoint   Checkpoint       `json:"checkpoint"`
	EventCount   int              `json:"event_count"`
	Status       Status           `json:"status"` // status of the most recent event at this stage
	RecordCount  *int64           `json:"record_count,omitempty"`
	ControlTotal *decimal.Decimal `json:"control_total,omitempty"`
	FirstEvent   time.Time        `json:"first_event"`
	LastEvent    time.Time        `json:"last_event"`
	Duration     time.Duration    `json:"duration_ns"`
}

// ReconciliationReport is the composed view of one pipeline run. It is a
// single variant type: the DetailLevel tag says which optional sections are
// populated, since the three shapes share the same underlying computation.
type ReconciliationReport struct {
	CorrelationID  string      `json:"correlation_id"`
	SourceSystem   string      `json:"source_system"`
	DetailLevel    DetailLevel `json:"detail_level"`
	OverallStatus  RunStatus   `json:"overall_status"`
	GeneratedAt    time.Time   `json:"generated_at"`
	TotalEvents    int         `json:"total_events"`
	SuccessEvents  int         `json:"success_events"`
	FailureEvents  int         `json:"failure_events"`
	WarningEvents  int         `json:"warning_events"`
	SuccessRate    float64     `json:"success_rate"`
	CriticalIssues int         `json:"critical_issues"` // CRITICAL and HIGH findings
	SkippedRecords int         `json:"skipped_records"` // malformed rows excluded from the computation

	// standard and detailed
	Checkpoints      []CheckpointSummary `json:"checkpoints,omitempty"`
	DiscrepancyCount *int                `json:"discrepancy_count,omitempty"`

	// detailed only
	Discrepancies    []Discrepancy  `json:"discrepancies,omitempty"`
	RunStarted       *time.Time     `json:"run_started,omitempty"`
	RunEnded         *time.Time     `json:"run_ended,omitempty"`
	RunDuration      *time.Duration `json:"run_duration_ns,omitempty"`
	RecordsPerSecond *float64       `json:"records_per_second,omitempty"`
}
