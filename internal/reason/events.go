// Package reason implements the reasoning orchestrator: it turns a natural
// language query into a bounded sequence of permission-checked tool calls
// and emits the lifecycle as an ordered event stream.
package reason

import (
	"errors"
	"time"

	"github.com/stratalabs/finsight/internal/auth"
)

// EventType identifies one kind of stream event
type EventType string

const (
	EventStart      EventType = "start"
	EventThinking   EventType = "thinking"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventAnswer     EventType = "answer"
	EventDone       EventType = "done"
	EventError      EventType = "error"
)

// Event is one entry in the reasoning stream. The wire shape is
// {"type": ..., "data": {...}}.
type Event struct {
	Type EventType              `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// Terminal reports whether the event ends the stream
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

func newStartEvent(requestID, query string) Event {
	return Event{Type: EventStart, Data: map[string]interface{}{
		"request_id": requestID,
		"query":      query,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}}
}

func newThinkingEvent(requestID, thought string) Event {
	return Event{Type: EventThinking, Data: map[string]interface{}{
		"request_id": requestID,
		"thought":    thought,
	}}
}

func newToolCallEvent(requestID string, step int, tool string, args map[string]interface{}) Event {
	return Event{Type: EventToolCall, Data: map[string]interface{}{
		"request_id": requestID,
		"step":       step,
		"tool":       tool,
		"args":       args,
	}}
}

func newToolResultEvent(requestID string, step int, tool string, result interface{}, err error, duration time.Duration) Event {
	data := map[string]interface{}{
		"request_id":  requestID,
		"step":        step,
		"tool":        tool,
		"success":     err == nil,
		"duration_ms": duration.Milliseconds(),
	}
	if err != nil {
		data["error"] = err.Error()
		var denied *auth.DeniedError
		if errors.As(err, &denied) {
			data["error_code"] = denied.Code
		}
	} else {
		data["result"] = result
	}
	return Event{Type: EventToolResult, Data: data}
}

func newAnswerEvent(requestID, answer string) Event {
	return Event{Type: EventAnswer, Data: map[string]interface{}{
		"request_id": requestID,
		"answer":     answer,
	}}
}

func newDoneEvent(requestID string, summary map[string]interface{}) Event {
	return Event{Type: EventDone, Data: map[string]interface{}{
		"request_id": requestID,
		"summary":    summary,
	}}
}

func newErrorEvent(requestID, code, message string) Event {
	return Event{Type: EventError, Data: map[string]interface{}{
		"request_id": requestID,
		"code":       code,
		"message":    message,
	}}
}
