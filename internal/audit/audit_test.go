package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// anyInsertArgs matches the 12 bind arguments of the audit INSERT; pgxmock
// requires the expected and actual argument counts to agree even when the
// values themselves are not asserted.
func anyInsertArgs() []interface{} {
	args := make([]interface{}, 12)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestLogPersistsEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO audit_logs").
		WithArgs(anyInsertArgs()...).
		WillReturnRows(pgxmock.NewRows([]string{}))

	logger := NewLogger(mock, true)
	logger.Log(context.Background(), &Event{
		EventType: EventTypeToolInvoked,
		Severity:  SeverityInfo,
		CallerID:  42,
		Resource:  "query_transactions",
		Action:    "tool_call",
		Success:   true,
		RequestID: "req-1",
		Duration:  12,
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogDisabledSkipsPersistence(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	logger := NewLogger(mock, false)
	logger.Log(context.Background(), &Event{
		EventType: EventTypeQueryStarted,
		CallerID:  1,
	})

	// No expectations were registered; any query would fail the test.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogFillsDefaults(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO audit_logs").
		WithArgs(anyInsertArgs()...).
		WillReturnRows(pgxmock.NewRows([]string{}))

	logger := NewLogger(mock, true)
	event := &Event{
		EventType: EventTypeQueryStarted,
		CallerID:  7,
	}
	logger.Log(context.Background(), event)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.False(t, event.Timestamp.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogSurvivesPersistFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO audit_logs").
		WithArgs(anyInsertArgs()...).
		WillReturnError(assert.AnError)

	logger := NewLogger(mock, true)
	// Must not panic or propagate the error.
	logger.Log(context.Background(), &Event{
		EventType: EventTypeAccessDenied,
		Severity:  SeverityWarning,
		CallerID:  9,
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryWithFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "timestamp", "event_type", "severity", "caller_id",
		"resource", "action", "success", "error_message",
		"metadata", "request_id", "duration_ms",
	}).AddRow(
		id, now, EventType("ACCESS_DENIED"), Severity("WARNING"), int64(42),
		"query_transactions", "tool_call", false, "access denied",
		[]byte(`{"code":"ownership_violation"}`), "req-9", int64(0),
	)

	mock.ExpectQuery("SELECT").
		WithArgs("ACCESS_DENIED", int64(42), 25).
		WillReturnRows(rows)

	logger := NewLogger(mock, true)
	events, err := logger.Query(context.Background(), QueryFilters{
		EventType: EventTypeAccessDenied,
		CallerID:  42,
		Limit:     25,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, id, event.ID)
	assert.Equal(t, EventTypeAccessDenied, event.EventType)
	assert.Equal(t, int64(42), event.CallerID)
	assert.False(t, event.Success)
	assert.Equal(t, "ownership_violation", event.Metadata["code"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryNilPool(t *testing.T) {
	logger := NewLogger(nil, true)
	events, err := logger.Query(context.Background(), QueryFilters{})
	assert.NoError(t, err)
	assert.Nil(t, events)
}

func TestConvenienceHelpers(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	for i := 0; i < 4; i++ {
		mock.ExpectQuery("INSERT INTO audit_logs").
			WithArgs(anyInsertArgs()...).
			WillReturnRows(pgxmock.NewRows([]string{}))
	}

	logger := NewLogger(mock, true)
	ctx := context.Background()
	logger.LogQueryStarted(ctx, 42, "req-1", "show my transactions")
	logger.LogQueryCompleted(ctx, 42, "req-1", true, "", 150*time.Millisecond)
	logger.LogToolInvoked(ctx, 42, "req-1", "query_transactions", "success", true, "", 20*time.Millisecond)
	logger.LogAccessDenied(ctx, 42, "req-1", "analyze_risk_metrics", "ownership_violation", "portfolio belongs to another user")

	assert.NoError(t, mock.ExpectationsWereMet())
}
