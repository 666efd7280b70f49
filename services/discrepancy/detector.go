package discrepancy

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/corebanking/pipeline-audit/config"
	"github.com/corebanking/pipeline-audit/models"
)

// findingNamespace seeds deterministic finding ids, so re-detecting over the
// same immutable event set yields identical findings.
var findingNamespace = uuid.MustParse("8c9e347a-52f1-4b0e-9d26-d1a5c0f7b2e9")

// Detector evaluates the reconciliation rules over the event set of a run.
// It is stateless apart from its configuration; detection is deterministic
// and always emits findings with lifecycle status OPEN.
type Detector struct {
	cfg    config.ReconciliationConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewDetector creates a new Detector instance
func NewDetector(cfg config.ReconciliationConfig, logger *zap.Logger) *Detector {
	return &Detector{
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the wall clock used by the timeout rule
func (d *Detector) WithClock(now func() time.Time) *Detector {
	d.now = now
	return d
}

// Detect runs every rule over the events of one correlation id and returns
// the findings ordered severity-descending. The input does not need to be
// pre-sorted; malformed events are skipped, not fatal.
func (d *Detector) Detect(events []models.AuditEvent) []models.Discrepancy {
	run := make([]models.AuditEvent, 0, len(events))
	for i := range events {
		ev := events[i]
		if !ev.Status.IsValid() || !ev.Checkpoint.IsValid() || ev.EventTimestamp.IsZero() {
			d.logger.Warn("skipping malformed audit event during detection",
				zap.String("event_id", ev.EventID.String()),
				zap.String("correlation_id", ev.CorrelationID))
			continue
		}
		run = append(run, ev)
	}
	if len(run) == 0 {
		return nil
	}

	sort.SliceStable(run, func(i, j int) bool {
		return run[i].EventTimestamp.Before(run[j].EventTimestamp)
	})

	var findings []models.Discrepancy
	findings = append(findings, d.recordCountMismatches(run)...)
	findings = append(findings, d.missingCheckpoints(run)...)
	findings = append(findings, d.controlTotalMismatch(run)...)
	findings = append(findings, d.processingTimeout(run)...)
	findings = append(findings, d.statusFailures(run)...)

	models.SortDiscrepancies(findings)
	return findings
}

// Scan detects over many runs at once, grouping a flat event set by
// correlation id. Runs are visited in id order so repeated scans over the
// same set produce identical output.
func (d *Detector) Scan(events []models.AuditEvent) []models.Discrepancy {
	byRun := make(map[string][]models.AuditEvent)
	for i := range events {
		byRun[events[i].CorrelationID] = append(byRun[events[i].CorrelationID], events[i])
	}

	ids := make([]string, 0, len(byRun))
	for id := range byRun {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var findings []models.Discrepancy
	for _, id := range ids {
		findings = append(findings, d.Detect(byRun[id])...)
	}

	models.SortDiscrepancies(findings)
	return findings
}

// newFinding builds a finding with a deterministic id derived from its
// identifying fields
func (d *Detector) newFinding(ev *models.AuditEvent, typ models.DiscrepancyType, sev models.Severity, expected, actual, description, discriminator string) models.Discrepancy {
	seed := ev.CorrelationID + "|" + string(typ) + "|" + discriminator
	return models.Discrepancy{
		ID:            uuid.NewSHA1(findingNamespace, []byte(seed)),
		CorrelationID: ev.CorrelationID,
		SourceSystem:  ev.SourceSystem,
		ModuleName:    ev.ModuleName,
		Type:          typ,
		Severity:      sev,
		Expected:      expected,
		Actual:        actual,
		Description:   description,
		Status:        models.DiscrepancyOpen,
		DetectedAt:    ev.EventTimestamp,
	}
}

// stageFigures is the last-writer-wins view of one stage: when retries
// produce several events, the most recent figures are authoritative.
type stageFigures struct {
	event       *models.AuditEvent
	recordCount *int64
}

// latestPerStage reduces the chronologically sorted run to one entry per
// stage carrying the most recent event and its record count
func latestPerStage(run []models.AuditEvent) map[models.Checkpoint]*stageFigures {
	out := make(map[models.Checkpoint]*stageFigures)
	for i := range run {
		ev := &run[i]
		fig, ok := out[ev.Checkpoint]
		if !ok {
			fig = &stageFigures{}
			out[ev.Checkpoint] = fig
		}
		fig.event = ev
		if n, ok := ev.RecordCount(); ok {
			count := n
			fig.recordCount = &count
		} else {
			fig.recordCount = nil
		}
	}
	return out
}

// recordCountMismatches compares the record count reported at each
// count-bearing stage against the next count-bearing stage downstream.
// Tolerance is zero: any inequality is a finding.
func (d *Detector) recordCountMismatches(run []models.AuditEvent) []models.Discrepancy {
	perStage := latestPerStage(run)

	type stageCount struct {
		stage models.Checkpoint
		fig   *stageFigures
	}
	var counted []stageCount
	for _, stage := range models.AllCheckpoints() {
		fig, ok := perStage[stage]
		if !ok || fig.recordCount == nil {
			continue
		}
		counted = append(counted, stageCount{stage: stage, fig: fig})
	}

	var findings []models.Discrepancy
	for i := 0; i+1 < len(counted); i++ {
		up, down := counted[i], counted[i+1]
		upCount, downCount := *up.fig.recordCount, *down.fig.recordCount
		if upCount == downCount {
			continue
		}

		sev := d.countGapSeverity(upCount, downCount)
		desc := fmt.Sprintf("record count dropped from %d at %s to %d at %s",
			upCount, up.stage, downCount, down.stage)
		if downCount > upCount {
			desc = fmt.Sprintf("record count grew from %d at %s to %d at %s",
				upCount, up.stage, downCount, down.stage)
		}

		findings = append(findings, d.newFinding(down.fig.event,
			models.DiscrepancyRecordCountMismatch, sev,
			fmt.Sprintf("%d", upCount), fmt.Sprintf("%d", downCount),
			desc, string(up.stage)+"->"+string(down.stage)))
	}
	return findings
}

// countGapSeverity bands the severity of a count gap by its size relative
// to the upstream count
func (d *Detector) countGapSeverity(upstream, downstream int64) models.Severity {
	if downstream == 0 && upstream != 0 {
		return models.SeverityCritical
	}
	if upstream == 0 {
		// records appeared from nowhere; treat as the highest band
		return models.SeverityHigh
	}
	gap := upstream - downstream
	if gap < 0 {
		gap = -gap
	}
	pct := float64(gap) / float64(upstream) * 100
	switch {
	case pct < d.cfg.RecordCountLowPct:
		return models.SeverityLow
	case pct <= d.cfg.RecordCountHighPct:
		return models.SeverityMedium
	default:
		return models.SeverityHigh
	}
}

// missingCheckpoints flags the first expected stage that never appears
// after the furthest stage with an observed SUCCESS event. A hole between
// observed stages is flagged immediately; a missing tail is only flagged
// once the run has been in flight longer than the timeout threshold, since
// before that the run is simply not done yet.
func (d *Detector) missingCheckpoints(run []models.AuditEvent) []models.Discrepancy {
	observed := make(map[models.Checkpoint]bool)
	var furthestSuccess *models.AuditEvent
	for i := range run {
		ev := &run[i]
		observed[ev.Checkpoint] = true
		if ev.Status == models.StatusSuccess {
			if furthestSuccess == nil || ev.Checkpoint.Order() > furthestSuccess.Checkpoint.Order() {
				furthestSuccess = ev
			}
		}
	}
	if furthestSuccess == nil || furthestSuccess.Checkpoint.IsTerminal() {
		return nil
	}

	for _, next := range furthestSuccess.Checkpoint.Successors() {
		if observed[next] {
			continue
		}

		laterObserved := false
		for _, later := range next.Successors() {
			if observed[later] {
				laterObserved = true
				break
			}
		}
		if !laterObserved {
			stale := d.now().Sub(run[0].EventTimestamp) > d.cfg.ProcessingTimeout
			if !stale {
				return nil
			}
		}

		desc := fmt.Sprintf("%s succeeded but no %s event was recorded for the run",
			furthestSuccess.Checkpoint, next)
		return []models.Discrepancy{d.newFinding(furthestSuccess,
			models.DiscrepancyMissingCheckpoint, models.SeverityHigh,
			string(next), "no events", desc, string(next))}
	}
	return nil
}

// controlTotalMismatch compares the control totals of the earliest and
// latest total-bearing events using exact decimal arithmetic
func (d *Detector) controlTotalMismatch(run []models.AuditEvent) []models.Discrepancy {
	var first, last *models.AuditEvent
	var firstTotal, lastTotal decimal.Decimal
	for i := range run {
		ev := &run[i]
		total, ok := ev.ControlTotal()
		if !ok {
			continue
		}
		if first == nil {
			first, firstTotal = ev, total
		}
		last, lastTotal = ev, total
	}
	if first == nil || first == last {
		return nil
	}
	if firstTotal.Equal(lastTotal) {
		return nil
	}

	sev := d.totalGapSeverity(firstTotal, lastTotal)
	desc := fmt.Sprintf("control total changed from %s at %s to %s at %s",
		firstTotal.String(), first.Checkpoint, lastTotal.String(), last.Checkpoint)

	return []models.Discrepancy{d.newFinding(last,
		models.DiscrepancyControlTotalMismatch, sev,
		firstTotal.String(), lastTotal.String(), desc,
		string(first.Checkpoint)+"->"+string(last.Checkpoint))}
}

// totalGapSeverity bands control total differences on the relative
// monetary difference
func (d *Detector) totalGapSeverity(expected, actual decimal.Decimal) models.Severity {
	if actual.IsZero() && !expected.IsZero() {
		return models.SeverityCritical
	}
	if expected.IsZero() {
		return models.SeverityHigh
	}
	pct, _ := actual.Sub(expected).Abs().
		Div(expected.Abs()).
		Mul(decimal.NewFromInt(100)).
		Float64()
	switch {
	case pct < d.cfg.ControlTotalLowPct:
		return models.SeverityLow
	case pct <= d.cfg.ControlTotalHighPct:
		return models.SeverityMedium
	default:
		return models.SeverityHigh
	}
}

// processingTimeout flags a run that has been in flight longer than the
// configured threshold without reaching the terminal stage. Elapsed time is
// measured from the earliest event to now, since a stalled run stops
// producing events long before anyone looks at it.
func (d *Detector) processingTimeout(run []models.AuditEvent) []models.Discrepancy {
	for i := range run {
		if run[i].Checkpoint.IsTerminal() {
			return nil
		}
	}

	earliest := &run[0]
	elapsed := d.now().Sub(earliest.EventTimestamp)
	if elapsed <= d.cfg.ProcessingTimeout {
		return nil
	}

	sev := models.SeverityMedium
	if elapsed > 2*d.cfg.ProcessingTimeout {
		sev = models.SeverityHigh
	}
	desc := fmt.Sprintf("run started %s ago and has not produced a %s event (threshold %s)",
		elapsed.Round(time.Second), models.CheckpointFileGenerated, d.cfg.ProcessingTimeout)

	return []models.Discrepancy{d.newFinding(earliest,
		models.DiscrepancyProcessingTimeout, sev,
		fmt.Sprintf("completion within %s", d.cfg.ProcessingTimeout),
		fmt.Sprintf("in flight for %s", elapsed.Round(time.Second)),
		desc, "run")}
}

// statusFailures surfaces every FAILURE event as a finding, so failures do
// not hide from bulk scans that never filter on status. Terminal-stage
// failures are rated higher than earlier ones.
func (d *Detector) statusFailures(run []models.AuditEvent) []models.Discrepancy {
	var findings []models.Discrepancy
	for i := range run {
		ev := &run[i]
		if ev.Status != models.StatusFailure {
			continue
		}
		sev := models.SeverityMedium
		if ev.Checkpoint.IsTerminal() {
			sev = models.SeverityHigh
		}
		msg := ""
		if ev.Message != nil {
			msg = ": " + *ev.Message
		}
		desc := fmt.Sprintf("%s reported FAILURE%s", ev.Checkpoint, msg)
		findings = append(findings, d.newFinding(ev,
			models.DiscrepancyStatusFailurePresent, sev,
			string(models.StatusSuccess), string(models.StatusFailure),
			desc, string(ev.Checkpoint)+"|"+ev.EventID.String()))
	}
	return findings
}
