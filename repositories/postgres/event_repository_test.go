package postgres

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/corebanking/pipeline-audit/models"
	"github.com/corebanking/pipeline-audit/repositories"
)

var eventColumnList = []string{
	"event_id", "correlation_id", "source_system", "module_name",
	"process_name", "source_entity", "destination_entity", "key_identifier",
	"checkpoint", "event_timestamp", "status", "message", "details",
}

func newMockRepo(t *testing.T) (repositories.EventStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := &DB{DB: mockDB, logger: zap.NewNop()}
	return NewEventRepository(db, zap.NewNop()), mock
}

func sampleEvent(corr string, cp models.Checkpoint, ts time.Time) *models.AuditEvent {
	return models.NewAuditEvent(corr, "MAINFRAME_GL", cp, models.StatusSuccess).
		WithModule("GL_POSTING").
		WithTimestamp(ts)
}

func nullable(s *string) driver.Value {
	if s == nil {
		return nil
	}
	return *s
}

func eventRow(rows *sqlmock.Rows, ev *models.AuditEvent) *sqlmock.Rows {
	return rows.AddRow(
		ev.EventID.String(), ev.CorrelationID, ev.SourceSystem, nullable(ev.ModuleName),
		nullable(ev.ProcessName), nullable(ev.SourceEntity), nullable(ev.DestinationEntity),
		nullable(ev.KeyIdentifier), string(ev.Checkpoint), ev.EventTimestamp,
		string(ev.Status), nullable(ev.Message), []byte(ev.Details),
	)
}

func TestInsert(t *testing.T) {
	ts := time.Date(2026, 3, 15, 2, 0, 0, 0, time.UTC)

	t.Run("inserts one row", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		ev := sampleEvent("run-1", models.CheckpointRhelLanding, ts)
		ev.Details = json.RawMessage(`{"recordCount": 1000}`)

		mock.ExpectExec("INSERT INTO audit_events").
			WithArgs(ev.EventID, "run-1", "MAINFRAME_GL", ev.ModuleName,
				nil, nil, nil, nil,
				"RHEL_LANDING", ts, "SUCCESS", nil, []byte(`{"recordCount": 1000}`)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Insert(context.Background(), ev)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retries once then surfaces the error", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		ev := sampleEvent("run-2", models.CheckpointRhelLanding, ts)

		dbErr := errors.New("connection reset")
		mock.ExpectExec("INSERT INTO audit_events").WillReturnError(dbErr)
		mock.ExpectExec("INSERT INTO audit_events").WillReturnError(dbErr)

		err := repo.Insert(context.Background(), ev)
		require.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("transient failure succeeds on retry", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		ev := sampleEvent("run-3", models.CheckpointSQLLoaderStart, ts)

		mock.ExpectExec("INSERT INTO audit_events").
			WillReturnError(errors.New("connection reset"))
		mock.ExpectExec("INSERT INTO audit_events").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Insert(context.Background(), ev)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindByCorrelationID(t *testing.T) {
	ts := time.Date(2026, 3, 15, 2, 0, 0, 0, time.UTC)

	t.Run("returns run events", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		first := sampleEvent("run-1", models.CheckpointRhelLanding, ts)
		second := sampleEvent("run-1", models.CheckpointSQLLoaderStart, ts.Add(5*time.Minute))
		rows := sqlmock.NewRows(eventColumnList)
		eventRow(rows, first)
		eventRow(rows, second)

		mock.ExpectQuery("SELECT (.+) FROM audit_events(.+)WHERE correlation_id").
			WithArgs("run-1").
			WillReturnRows(rows)

		events, err := repo.FindByCorrelationID(context.Background(), "run-1")
		require.NoError(t, err)

		require.Len(t, events, 2)
		assert.Equal(t, first.EventID, events[0].EventID)
		assert.Equal(t, models.CheckpointRhelLanding, events[0].Checkpoint)
		assert.Equal(t, models.StatusSuccess, events[0].Status)
		require.NotNil(t, events[0].ModuleName)
		assert.Equal(t, "GL_POSTING", *events[0].ModuleName)
		assert.Nil(t, events[0].ProcessName)
		assert.Equal(t, models.CheckpointSQLLoaderStart, events[1].Checkpoint)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown run is empty not an error", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery("SELECT (.+) FROM audit_events(.+)WHERE correlation_id").
			WithArgs("run-missing").
			WillReturnRows(sqlmock.NewRows(eventColumnList))

		events, err := repo.FindByCorrelationID(context.Background(), "run-missing")
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindByFilter(t *testing.T) {
	ts := time.Date(2026, 3, 15, 2, 0, 0, 0, time.UTC)

	t.Run("no filter paginates everything", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		rows := sqlmock.NewRows(eventColumnList)
		eventRow(rows, sampleEvent("run-1", models.CheckpointFileGenerated, ts))

		mock.ExpectQuery("SELECT (.+) FROM audit_events(.+)ORDER BY event_timestamp DESC").
			WithArgs(50, 0).
			WillReturnRows(rows)

		events, err := repo.FindByFilter(context.Background(), repositories.EventFilter{}, 0, 50)
		require.NoError(t, err)
		assert.Len(t, events, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("filter fields become positional predicates", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		filter := repositories.EventFilter{
			SourceSystem: "MAINFRAME_GL",
			Status:       models.StatusFailure,
		}

		mock.ExpectQuery("WHERE source_system = (.+) AND status = ").
			WithArgs("MAINFRAME_GL", models.StatusFailure, 20, 40).
			WillReturnRows(sqlmock.NewRows(eventColumnList))

		_, err := repo.FindByFilter(context.Background(), filter, 2, 20)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindCorrelationIDs(t *testing.T) {
	t.Run("no filter paginates distinct runs", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		rows := sqlmock.NewRows([]string{"correlation_id"}).
			AddRow("run-2").
			AddRow("run-1")

		mock.ExpectQuery(`SELECT correlation_id FROM audit_events(.+)GROUP BY correlation_id(.+)ORDER BY MAX\(event_timestamp\) DESC`).
			WithArgs(50, 0).
			WillReturnRows(rows)

		ids, err := repo.FindCorrelationIDs(context.Background(), repositories.EventFilter{}, 0, 50)
		require.NoError(t, err)
		assert.Equal(t, []string{"run-2", "run-1"}, ids)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("filter fields become positional predicates", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		filter := repositories.EventFilter{Checkpoint: models.CheckpointRhelLanding}

		mock.ExpectQuery(`WHERE checkpoint = (.+)GROUP BY correlation_id`).
			WithArgs(models.CheckpointRhelLanding, 20, 20).
			WillReturnRows(sqlmock.NewRows([]string{"correlation_id"}).AddRow("run-9"))

		ids, err := repo.FindCorrelationIDs(context.Background(), filter, 1, 20)
		require.NoError(t, err)
		assert.Equal(t, []string{"run-9"}, ids)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCountByFilter(t *testing.T) {
	t.Run("counts with filter", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_events WHERE checkpoint = `).
			WithArgs(models.CheckpointFileGenerated).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

		count, err := repo.CountByFilter(context.Background(),
			repositories.EventFilter{Checkpoint: models.CheckpointFileGenerated})
		require.NoError(t, err)
		assert.Equal(t, int64(42), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("counts without filter", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_events`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

		count, err := repo.CountByFilter(context.Background(), repositories.EventFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(7), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindByTimestampRange(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows(eventColumnList)
	eventRow(rows, sampleEvent("run-1", models.CheckpointRhelLanding, start.Add(time.Hour)))

	mock.ExpectQuery("WHERE event_timestamp >= (.+) AND event_timestamp <= ").
		WithArgs(start, end).
		WillReturnRows(rows)

	events, err := repo.FindByTimestampRange(context.Background(), start, end)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildFilter(t *testing.T) {
	t.Run("empty filter has no clause", func(t *testing.T) {
		where, args := buildFilter(repositories.EventFilter{})
		assert.Empty(t, where)
		assert.Empty(t, args)
	})

	t.Run("all fields in declaration order", func(t *testing.T) {
		filter := repositories.EventFilter{
			SourceSystem: "MAINFRAME_GL",
			ModuleName:   "GL_POSTING",
			Status:       models.StatusSuccess,
			Checkpoint:   models.CheckpointLogicApplied,
		}

		where, args := buildFilter(filter)
		assert.Equal(t,
			"WHERE source_system = $1 AND module_name = $2 AND status = $3 AND checkpoint = $4",
			where)
		require.Len(t, args, 4)
		assert.Equal(t, "MAINFRAME_GL", args[0])
		assert.Equal(t, models.CheckpointLogicApplied, args[3])
	})
}
