package reconciliation

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/corebanking/pipeline-audit/models"
	"github.com/corebanking/pipeline-audit/repositories"
	"github.com/corebanking/pipeline-audit/services"
	"github.com/corebanking/pipeline-audit/services/discrepancy"
)

// Service composes one coherent reconciliation report per pipeline run.
// Every report is derived fresh from the event store; nothing is cached
// or written back.
type Service struct {
	store    repositories.EventStore
	detector *discrepancy.Detector
	logger   *zap.Logger
}

// NewService creates a new reconciliation Service instance
func NewService(store repositories.EventStore, detector *discrepancy.Detector, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		detector: detector,
		logger:   logger,
	}
}

// Build fetches the events of one run and assembles the report at the
// requested detail level. A correlation id with zero events is NotFound,
// which is distinct from the gateway failing to answer: "this run never
// started" must never be confused with "the store is down" or with a run
// that is merely mid-flight.
func (s *Service) Build(ctx context.Context, correlationID string, level models.DetailLevel) (*models.ReconciliationReport, error) {
	if correlationID == "" {
		return nil, services.ErrMissingCorrelationID
	}
	if !level.IsValid() {
		return nil, services.NewDomainError(services.ErrorTypeValidation,
			"unknown report detail level", nil).WithDetail("detail_level", string(level))
	}

	events, err := s.store.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, services.WrapUpstream("fetching run events", err)
	}
	if len(events) == 0 {
		return nil, services.NewDomainError(services.ErrorTypeNotFound,
			"no events found for correlation id", nil).WithDetail("correlation_id", correlationID)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].EventTimestamp.Before(events[j].EventTimestamp)
	})

	report := &models.ReconciliationReport{
		CorrelationID: correlationID,
		DetailLevel:   level,
		GeneratedAt:   time.Now().UTC(),
	}

	valid := make([]models.AuditEvent, 0, len(events))
	for i := range events {
		ev := events[i]
		if !ev.Status.IsValid() || !ev.Checkpoint.IsValid() || ev.EventTimestamp.IsZero() {
			report.SkippedRecords++
			s.logger.Warn("skipping malformed audit event in report",
				zap.String("event_id", ev.EventID.String()),
				zap.String("correlation_id", correlationID))
			continue
		}
		valid = append(valid, ev)
	}
	if len(valid) == 0 {
		// every stored row was unreadable; surface it rather than report success
		return nil, services.WrapError(services.ErrorTypeInconsistentData,
			"all stored events for the run are malformed", nil)
	}

	report.SourceSystem = valid[0].SourceSystem
	hasTerminal := false
	for i := range valid {
		ev := &valid[i]
		report.TotalEvents++
		switch ev.Status {
		case models.StatusSuccess:
			report.SuccessEvents++
		case models.StatusFailure:
			report.FailureEvents++
		case models.StatusWarning:
			report.WarningEvents++
		}
		if ev.Checkpoint.IsTerminal() {
			hasTerminal = true
		}
	}
	if report.TotalEvents > 0 {
		report.SuccessRate = float64(report.SuccessEvents) / float64(report.TotalEvents) * 100
	}

	findings := s.detector.Detect(valid)
	for i := range findings {
		if findings[i].Severity.AtLeast(models.SeverityHigh) {
			report.CriticalIssues++
		}
	}

	report.OverallStatus = deriveOverallStatus(findings, report.FailureEvents > 0, hasTerminal)

	if level == models.DetailStandard || level == models.DetailDetailed {
		report.Checkpoints = checkpointSummaries(valid)
		count := len(findings)
		report.DiscrepancyCount = &count
	}

	if level == models.DetailDetailed {
		report.Discrepancies = findings
		started := valid[0].EventTimestamp
		ended := valid[len(valid)-1].EventTimestamp
		duration := ended.Sub(started)
		report.RunStarted = &started
		report.RunEnded = &ended
		report.RunDuration = &duration

		if throughput, ok := recordsPerSecond(report.Checkpoints, duration); ok {
			report.RecordsPerSecond = &throughput
		}
	}

	return report, nil
}

// deriveOverallStatus folds findings and run state into one status:
// any failure event or CRITICAL/HIGH finding fails the run; LOW/MEDIUM
// findings only degrade it to WARNING; a run without a terminal event that
// has raised nothing yet is still in progress.
func deriveOverallStatus(findings []models.Discrepancy, hasFailureEvent, hasTerminal bool) models.RunStatus {
	if hasFailureEvent {
		return models.RunFailure
	}
	worst := models.Severity("")
	for i := range findings {
		if worst == "" || findings[i].Severity.Rank() > worst.Rank() {
			worst = findings[i].Severity
		}
	}
	switch {
	case worst != "" && worst.AtLeast(models.SeverityHigh):
		return models.RunFailure
	case worst != "":
		return models.RunWarning
	case !hasTerminal:
		return models.RunInProgress
	default:
		return models.RunSuccess
	}
}

// checkpointSummaries builds the per-stage summary rows in pipeline order.
// The most recent event at a stage is authoritative for its figures.
func checkpointSummaries(run []models.AuditEvent) []models.CheckpointSummary {
	type acc struct {
		summary models.CheckpointSummary
		seen    bool
	}
	perStage := make(map[models.Checkpoint]*acc)

	for i := range run {
		ev := &run[i]
		a, ok := perStage[ev.Checkpoint]
		if !ok {
			a = &acc{summary: models.CheckpointSummary{
				Checkpoint: ev.Checkpoint,
				FirstEvent: ev.EventTimestamp,
			}}
			perStage[ev.Checkpoint] = a
		}
		a.seen = true
		a.summary.EventCount++
		a.summary.Status = ev.Status
		a.summary.LastEvent = ev.EventTimestamp

		// last-writer-wins: retries overwrite provisional figures
		if n, ok := ev.RecordCount(); ok {
			count := n
			a.summary.RecordCount = &count
		}
		if total, ok := ev.ControlTotal(); ok {
			t := total
			a.summary.ControlTotal = &t
		}
	}

	var rows []models.CheckpointSummary
	for _, stage := range models.AllCheckpoints() {
		a, ok := perStage[stage]
		if !ok {
			continue
		}
		a.summary.Duration = a.summary.LastEvent.Sub(a.summary.FirstEvent)
		rows = append(rows, a.summary)
	}
	return rows
}

// recordsPerSecond derives throughput from the terminal stage's record
// count over the whole run duration
func recordsPerSecond(rows []models.CheckpointSummary, duration time.Duration) (float64, bool) {
	if duration <= 0 {
		return 0, false
	}
	for i := range rows {
		if rows[i].Checkpoint.IsTerminal() && rows[i].RecordCount != nil {
			return float64(*rows[i].RecordCount) / duration.Seconds(), true
		}
	}
	return 0, false
}
