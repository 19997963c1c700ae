// Package audit provides persistent audit logging for queries, tool
// invocations, and access decisions.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stratalabs/finsight/internal/metrics"
	"github.com/stratalabs/finsight/internal/store"
)

// EventType identifies the category of an audit event.
type EventType string

const (
	EventTypeQueryStarted   EventType = "QUERY_STARTED"
	EventTypeQueryCompleted EventType = "QUERY_COMPLETED"
	EventTypeQueryFailed    EventType = "QUERY_FAILED"
	EventTypeToolInvoked    EventType = "TOOL_INVOKED"
	EventTypeToolFailed     EventType = "TOOL_FAILED"
	EventTypeAccessDenied   EventType = "ACCESS_DENIED"
	EventTypeAuthFailure    EventType = "AUTH_FAILURE"
	EventTypeConfigChange   EventType = "CONFIG_CHANGE"
)

// Severity indicates how urgently an event should be reviewed.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Event is a single audit record.
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	EventType EventType              `json:"event_type"`
	Severity  Severity               `json:"severity"`
	CallerID  int64                  `json:"caller_id"`
	Resource  string                 `json:"resource"`
	Action    string                 `json:"action"`
	Success   bool                   `json:"success"`
	ErrorMsg  string                 `json:"error_message,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Duration  int64                  `json:"duration_ms"`
}

// Logger writes audit events to the log stream and, when a database is
// configured, persists them for later review.
type Logger struct {
	db      store.PoolInterface
	enabled bool
	log     zerolog.Logger
}

// NewLogger creates an audit logger. A nil pool disables persistence but
// structured log output still happens.
func NewLogger(db store.PoolInterface, enabled bool) *Logger {
	return &Logger{
		db:      db,
		enabled: enabled,
		log:     log.With().Str("component", "audit").Logger(),
	}
}

// Log records an audit event. Persistence failures are logged but never
// propagated; auditing must not break the request path.
func (l *Logger) Log(ctx context.Context, event *Event) {
	if !l.enabled {
		return
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	logEvent := l.log.Info()
	switch event.Severity {
	case SeverityWarning:
		logEvent = l.log.Warn()
	case SeverityError:
		logEvent = l.log.Error()
	case SeverityCritical:
		logEvent = l.log.Error().Bool("critical", true)
	}

	logEvent.
		Str("audit_id", event.ID.String()).
		Str("event_type", string(event.EventType)).
		Int64("caller_id", event.CallerID).
		Str("resource", event.Resource).
		Str("action", event.Action).
		Bool("success", event.Success).
		Str("request_id", event.RequestID).
		Int64("duration_ms", event.Duration).
		Msg("Audit event")

	if l.db != nil {
		if err := l.persistEvent(ctx, event); err != nil {
			l.log.Error().Err(err).
				Str("event_type", string(event.EventType)).
				Msg("Failed to persist audit event")
			metrics.RecordError("audit_persist", "audit")
		}
	}

	metrics.RecordAuditLog(string(event.EventType), event.Success)
}

func (l *Logger) persistEvent(ctx context.Context, event *Event) error {
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO audit_logs (
			id, timestamp, event_type, severity, caller_id,
			resource, action, success, error_message,
			metadata, request_id, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	rows, err := l.db.Query(ctx, query,
		event.ID,
		event.Timestamp,
		string(event.EventType),
		string(event.Severity),
		event.CallerID,
		event.Resource,
		event.Action,
		event.Success,
		event.ErrorMsg,
		metadataJSON,
		event.RequestID,
		event.Duration,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	rows.Close()
	return rows.Err()
}

// QueryFilters narrows an audit trail lookup.
type QueryFilters struct {
	EventType EventType
	CallerID  int64
	StartTime time.Time
	EndTime   time.Time
	Success   *bool
	Limit     int
}

// Query returns audit events matching the filters, newest first.
func (l *Logger) Query(ctx context.Context, filters QueryFilters) ([]Event, error) {
	if l.db == nil {
		return nil, nil
	}

	query := `
		SELECT
			id, timestamp, event_type, severity, caller_id,
			resource, action, success, error_message,
			metadata, request_id, duration_ms
		FROM audit_logs
		WHERE 1=1
	`

	args := []interface{}{}
	addClause := func(clause string, value interface{}) {
		args = append(args, value)
		query += fmt.Sprintf(" AND %s $%d", clause, len(args))
	}

	if filters.EventType != "" {
		addClause("event_type =", string(filters.EventType))
	}
	if filters.CallerID != 0 {
		addClause("caller_id =", filters.CallerID)
	}
	if !filters.StartTime.IsZero() {
		addClause("timestamp >=", filters.StartTime)
	}
	if !filters.EndTime.IsZero() {
		addClause("timestamp <=", filters.EndTime)
	}
	if filters.Success != nil {
		addClause("success =", *filters.Success)
	}

	query += " ORDER BY timestamp DESC"

	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var event Event
		var metadataJSON []byte

		err := rows.Scan(
			&event.ID,
			&event.Timestamp,
			&event.EventType,
			&event.Severity,
			&event.CallerID,
			&event.Resource,
			&event.Action,
			&event.Success,
			&event.ErrorMsg,
			&metadataJSON,
			&event.RequestID,
			&event.Duration,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				l.log.Warn().Err(err).Msg("Failed to unmarshal audit event metadata")
			}
		}

		events = append(events, event)
	}

	return events, rows.Err()
}

// LogQueryStarted records the start of a reasoning request.
func (l *Logger) LogQueryStarted(ctx context.Context, callerID int64, requestID, query string) {
	l.Log(ctx, &Event{
		EventType: EventTypeQueryStarted,
		Severity:  SeverityInfo,
		CallerID:  callerID,
		Resource:  "reasoning",
		Action:    "query",
		Success:   true,
		RequestID: requestID,
		Metadata:  map[string]interface{}{"query": query},
	})
}

// LogQueryCompleted records the terminal outcome of a reasoning request.
func (l *Logger) LogQueryCompleted(ctx context.Context, callerID int64, requestID string, success bool, errMsg string, duration time.Duration) {
	eventType := EventTypeQueryCompleted
	severity := SeverityInfo
	if !success {
		eventType = EventTypeQueryFailed
		severity = SeverityWarning
	}
	l.Log(ctx, &Event{
		EventType: eventType,
		Severity:  severity,
		CallerID:  callerID,
		Resource:  "reasoning",
		Action:    "query",
		Success:   success,
		ErrorMsg:  errMsg,
		RequestID: requestID,
		Duration:  duration.Milliseconds(),
	})
}

// LogToolInvoked records a single tool call and its outcome.
func (l *Logger) LogToolInvoked(ctx context.Context, callerID int64, requestID, tool, outcome string, success bool, errMsg string, duration time.Duration) {
	eventType := EventTypeToolInvoked
	severity := SeverityInfo
	if !success {
		eventType = EventTypeToolFailed
		severity = SeverityWarning
	}
	l.Log(ctx, &Event{
		EventType: eventType,
		Severity:  severity,
		CallerID:  callerID,
		Resource:  tool,
		Action:    "tool_call",
		Success:   success,
		ErrorMsg:  errMsg,
		RequestID: requestID,
		Duration:  duration.Milliseconds(),
		Metadata:  map[string]interface{}{"outcome": outcome},
	})
}

// LogAccessDenied records an authorization failure. These are kept at
// WARNING severity so denial spikes stand out in review.
func (l *Logger) LogAccessDenied(ctx context.Context, callerID int64, requestID, tool, code, reason string) {
	l.Log(ctx, &Event{
		EventType: EventTypeAccessDenied,
		Severity:  SeverityWarning,
		CallerID:  callerID,
		Resource:  tool,
		Action:    "tool_call",
		Success:   false,
		ErrorMsg:  reason,
		RequestID: requestID,
		Metadata:  map[string]interface{}{"code": code},
	})
}
