package statistics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/corebanking/pipeline-audit/models"
	"github.com/corebanking/pipeline-audit/services"
)

func newService(t *testing.T) *Service {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return NewService(logger)
}

func makeEvents(day time.Time, status models.Status, count int) []models.AuditEvent {
	events := make([]models.AuditEvent, 0, count)
	for i := 0; i < count; i++ {
		ev := models.NewAuditEvent("run-1", "MAINFRAME_GL", models.CheckpointRhelLanding, status).
			WithTimestamp(day.Add(time.Duration(i) * time.Second))
		events = append(events, *ev)
	}
	return events
}

func TestCompute_InvalidWindow(t *testing.T) {
	svc := newService(t)
	now := time.Now().UTC()

	t.Run("inverted range", func(t *testing.T) {
		_, err := svc.Compute(Window{Start: now, End: now.Add(-time.Hour)}, nil)
		require.Error(t, err)
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("zero bounds", func(t *testing.T) {
		_, err := svc.Compute(Window{}, nil)
		require.Error(t, err)
		assert.True(t, services.IsValidationError(err))
	})
}

func TestCompute_EmptySet(t *testing.T) {
	svc := newService(t)
	now := time.Now().UTC()

	result, err := svc.Compute(Window{Start: now.Add(-24 * time.Hour), End: now}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Total)
	assert.Equal(t, 0.0, result.SuccessRate)
	assert.Equal(t, 0.0, result.FailureRate)
	assert.Equal(t, 0.0, result.WarningRate)
	assert.Empty(t, result.BySourceSystem)
	assert.Empty(t, result.PeakDay)
}

func TestCompute_RatesExact(t *testing.T) {
	svc := newService(t)
	day := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	var events []models.AuditEvent
	events = append(events, makeEvents(day, models.StatusSuccess, 900)...)
	events = append(events, makeEvents(day, models.StatusFailure, 80)...)
	events = append(events, makeEvents(day, models.StatusWarning, 20)...)

	result, err := svc.Compute(Window{Start: day, End: day.Add(24 * time.Hour)}, events)
	require.NoError(t, err)

	assert.Equal(t, 1000, result.Total)
	assert.Equal(t, 90.0, result.SuccessRate)
	assert.Equal(t, 8.0, result.FailureRate)
	assert.Equal(t, 2.0, result.WarningRate)
}

func TestCompute_StatusCountsSumToTotal(t *testing.T) {
	svc := newService(t)
	day := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	var events []models.AuditEvent
	events = append(events, makeEvents(day, models.StatusSuccess, 17)...)
	events = append(events, makeEvents(day, models.StatusFailure, 5)...)
	events = append(events, makeEvents(day, models.StatusWarning, 3)...)

	result, err := svc.Compute(Window{Start: day, End: day.Add(time.Hour)}, events)
	require.NoError(t, err)

	assert.Equal(t, result.Total, result.SuccessCount+result.FailureCount+result.WarningCount)
	for _, rate := range []float64{result.SuccessRate, result.FailureRate, result.WarningRate} {
		assert.GreaterOrEqual(t, rate, 0.0)
		assert.LessOrEqual(t, rate, 100.0)
	}
}

func TestCompute_Groupings(t *testing.T) {
	svc := newService(t)
	day := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	evA := models.NewAuditEvent("run-1", "MAINFRAME_GL", models.CheckpointRhelLanding, models.StatusSuccess).
		WithTimestamp(day)
	evB := models.NewAuditEvent("run-1", "MAINFRAME_GL", models.CheckpointLogicApplied, models.StatusSuccess).
		WithModule("fx-rules").
		WithTimestamp(day)
	evC := models.NewAuditEvent("run-2", "BRANCH_FEED", models.CheckpointLogicApplied, models.StatusSuccess).
		WithModule("fx-rules").
		WithTimestamp(day)

	result, err := svc.Compute(Window{Start: day, End: day.Add(time.Hour)},
		[]models.AuditEvent{*evA, *evB, *evC})
	require.NoError(t, err)

	assert.Equal(t, 2, result.BySourceSystem["MAINFRAME_GL"])
	assert.Equal(t, 1, result.BySourceSystem["BRANCH_FEED"])
	assert.Equal(t, 2, result.ByModule["fx-rules"])
	assert.Equal(t, 2, result.ByCheckpoint[models.CheckpointLogicApplied])
	assert.Equal(t, 1, result.ByCheckpoint[models.CheckpointRhelLanding])

	// no zero-filling of absent keys
	_, present := result.ByCheckpoint[models.CheckpointFileGenerated]
	assert.False(t, present)
}

func TestCompute_PeakDay(t *testing.T) {
	svc := newService(t)
	day1 := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)
	day3 := time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC)

	t.Run("single peak", func(t *testing.T) {
		var events []models.AuditEvent
		events = append(events, makeEvents(day1, models.StatusSuccess, 3)...)
		events = append(events, makeEvents(day2, models.StatusSuccess, 10)...)
		events = append(events, makeEvents(day3, models.StatusSuccess, 5)...)

		result, err := svc.Compute(Window{Start: day1, End: day3.Add(time.Hour)}, events)
		require.NoError(t, err)

		assert.Equal(t, "2026-02-02", result.PeakDay)
		assert.Equal(t, 10, result.PeakDayCount)
	})

	t.Run("tie broken by earliest date", func(t *testing.T) {
		var events []models.AuditEvent
		events = append(events, makeEvents(day1, models.StatusSuccess, 7)...)
		events = append(events, makeEvents(day3, models.StatusSuccess, 7)...)

		result, err := svc.Compute(Window{Start: day1, End: day3.Add(time.Hour)}, events)
		require.NoError(t, err)

		assert.Equal(t, "2026-02-01", result.PeakDay)
		assert.Equal(t, 7, result.PeakDayCount)
	})
}

func TestCompute_AvgPerDay(t *testing.T) {
	svc := newService(t)
	day1 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("multi-day window", func(t *testing.T) {
		events := makeEvents(day1, models.StatusSuccess, 40)

		// window touches four calendar days
		result, err := svc.Compute(Window{Start: day1, End: day1.Add(3 * 24 * time.Hour)}, events)
		require.NoError(t, err)
		assert.Equal(t, 10.0, result.AvgPerDay)
	})

	t.Run("sub-day window counts as one day", func(t *testing.T) {
		events := makeEvents(day1, models.StatusSuccess, 6)

		result, err := svc.Compute(Window{Start: day1, End: day1.Add(2 * time.Hour)}, events)
		require.NoError(t, err)
		assert.Equal(t, 6.0, result.AvgPerDay)
	})
}

func TestCompute_SkipsMalformedEvents(t *testing.T) {
	svc := newService(t)
	day := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	good := makeEvents(day, models.StatusSuccess, 4)
	bad := models.AuditEvent{
		CorrelationID:  "run-1",
		SourceSystem:   "MAINFRAME_GL",
		Checkpoint:     models.Checkpoint("GARBAGE"),
		Status:         models.StatusSuccess,
		EventTimestamp: day,
	}

	result, err := svc.Compute(Window{Start: day, End: day.Add(time.Hour)}, append(good, bad))
	require.NoError(t, err)

	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 1, result.SkippedEvents)
}
