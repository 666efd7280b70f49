package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DiscrepancyType classifies a reconciliation finding
type DiscrepancyType string

const (
	DiscrepancyRecordCountMismatch  DiscrepancyType = "RECORD_COUNT_MISMATCH"
	DiscrepancyMissingCheckpoint    DiscrepancyType = "MISSING_CHECKPOINT"
	DiscrepancyControlTotalMismatch DiscrepancyType = "CONTROL_TOTAL_MISMATCH"
	DiscrepancyProcessingTimeout    DiscrepancyType = "PROCESSING_TIMEOUT"
	DiscrepancyStatusFailurePresent DiscrepancyType = "STATUS_FAILURE_PRESENT"
)

// Severity ranks how serious a finding is
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// severityRank maps severities to a comparable weight
var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the comparable weight of the severity
func (s Severity) Rank() int {
	return severityRank[s]
}

// AtLeast reports whether s is at least as severe as other
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// DiscrepancyStatus is the caller-managed lifecycle state of a finding.
// Detection always emits OPEN; transitions belong to an external workflow.
type DiscrepancyStatus string

const (
	DiscrepancyOpen          DiscrepancyStatus = "OPEN"
	DiscrepancyInvestigating DiscrepancyStatus = "INVESTIGATING"
	DiscrepancyResolved      DiscrepancyStatus = "RESOLVED"
	DiscrepancyFalsePositive DiscrepancyStatus = "FALSE_POSITIVE"
	DiscrepancyAcknowledged  DiscrepancyStatus = "ACKNOWLEDGED"
)

// Discrepancy represents one typed reconciliation finding for a run
type Discrepancy struct {
	ID            uuid.UUID         `json:"id"`
	CorrelationID string            `json:"correlation_id"`
	SourceSystem  string            `json:"source_system"`
	ModuleName    *string           `json:"module_name,omitempty"`
	Type          DiscrepancyType   `json:"type"`
	Severity      Severity          `json:"severity"`
	Expected      string            `json:"expected"`
	Actual        string            `json:"actual"`
	Description   string            `json:"description"`
	Status        DiscrepancyStatus `json:"status"`
	DetectedAt    time.Time         `json:"detected_at"` // timestamp of the event that triggered the finding
}

// SortDiscrepancies orders findings severity-descending, then detection time
// descending, with correlation id as the final tie break for determinism.
func SortDiscrepancies(findings []Discrepancy) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity.Rank() != findings[j].Severity.Rank() {
			return findings[i].Severity.Rank() > findings[j].Severity.Rank()
		}
		if !findings[i].DetectedAt.Equal(findings[j].DetectedAt) {
			return findings[i].DetectedAt.After(findings[j].DetectedAt)
		}
		return findings[i].CorrelationID < findings[j].CorrelationID
	})
}
