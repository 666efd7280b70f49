package statistics

import (
	"time"

	"go.uber.org/zap"

	"github.com/corebanking/pipeline-audit/models"
	"github.com/corebanking/pipeline-audit/services"
)

// Window is the closed time range a statistics computation covers.
// The caller (or the event store query) is responsible for fetching the
// events of the window; the aggregator only validates and describes it.
type Window struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days the window touches, minimum 1
func (w Window) Days() int {
	start := w.Start.UTC().Truncate(24 * time.Hour)
	end := w.End.UTC().Truncate(24 * time.Hour)
	days := int(end.Sub(start).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

// Result holds everything derived from one pass over a window's events
type Result struct {
	Window Window `json:"-"`

	Total         int     `json:"total"`
	SuccessCount  int     `json:"success_count"`
	FailureCount  int     `json:"failure_count"`
	WarningCount  int     `json:"warning_count"`
	SuccessRate   float64 `json:"success_rate"`
	FailureRate   float64 `json:"failure_rate"`
	WarningRate   float64 `json:"warning_rate"`
	AvgPerDay     float64 `json:"avg_per_day"`
	PeakDay       string  `json:"peak_day,omitempty"` // YYYY-MM-DD, UTC
	PeakDayCount  int     `json:"peak_day_count"`
	SkippedEvents int     `json:"skipped_events"` // malformed rows excluded rather than aborting

	BySourceSystem map[string]int            `json:"by_source_system"`
	ByModule       map[string]int            `json:"by_module"`
	ByCheckpoint   map[models.Checkpoint]int `json:"by_checkpoint"`
}

// Service computes aggregate statistics over bounded event sets. It holds
// no state between calls; concurrent use needs no coordination.
type Service struct {
	logger *zap.Logger
}

// NewService creates a new statistics Service instance
func NewService(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// Compute derives counts, rates and breakdowns from the events of one
// window in a single pass. Malformed stored events are skipped and counted
// instead of failing the whole computation.
func (s *Service) Compute(window Window, events []models.AuditEvent) (*Result, error) {
	if window.Start.IsZero() || window.End.IsZero() {
		return nil, services.ErrInvalidWindow
	}
	if window.End.Before(window.Start) {
		return nil, services.NewDomainError(services.ErrorTypeValidation,
			"window end must not precede start", nil).
			WithDetail("start", window.Start).
			WithDetail("end", window.End)
	}

	result := &Result{
		Window:         window,
		BySourceSystem: make(map[string]int),
		ByModule:       make(map[string]int),
		ByCheckpoint:   make(map[models.Checkpoint]int),
	}

	perDay := make(map[string]int)

	for i := range events {
		ev := &events[i]
		if !ev.Status.IsValid() || !ev.Checkpoint.IsValid() || ev.EventTimestamp.IsZero() {
			result.SkippedEvents++
			s.logger.Warn("skipping malformed audit event",
				zap.String("event_id", ev.EventID.String()),
				zap.String("correlation_id", ev.CorrelationID),
				zap.String("status", string(ev.Status)),
				zap.String("checkpoint", string(ev.Checkpoint)))
			continue
		}

		result.Total++
		switch ev.Status {
		case models.StatusSuccess:
			result.SuccessCount++
		case models.StatusFailure:
			result.FailureCount++
		case models.StatusWarning:
			result.WarningCount++
		}

		if ev.SourceSystem != "" {
			result.BySourceSystem[ev.SourceSystem]++
		}
		if ev.ModuleName != nil && *ev.ModuleName != "" {
			result.ByModule[*ev.ModuleName]++
		}
		result.ByCheckpoint[ev.Checkpoint]++

		perDay[ev.EventTimestamp.UTC().Format("2006-01-02")]++
	}

	if result.Total > 0 {
		result.SuccessRate = float64(result.SuccessCount) / float64(result.Total) * 100
		result.FailureRate = float64(result.FailureCount) / float64(result.Total) * 100
		result.WarningRate = float64(result.WarningCount) / float64(result.Total) * 100
	}

	result.AvgPerDay = float64(result.Total) / float64(window.Days())

	// Peak calendar day; lexicographic comparison of YYYY-MM-DD breaks
	// count ties toward the earliest date.
	for day, count := range perDay {
		if count > result.PeakDayCount || (count == result.PeakDayCount && (result.PeakDay == "" || day < result.PeakDay)) {
			result.PeakDay = day
			result.PeakDayCount = count
		}
	}

	return result, nil
}
