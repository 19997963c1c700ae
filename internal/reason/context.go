package reason

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stratalabs/finsight/internal/auth"
	"github.com/stratalabs/finsight/internal/tools"
)

// TokenUsage accumulates LLM token consumption for one request
type TokenUsage struct {
	Input  int `json:"tokens_input"`
	Output int `json:"tokens_output"`
	Calls  int `json:"calls"`
}

// RequestContext carries per-request correlation state: the request id, the
// caller, an append-only tool call ledger, and token accounting. It is safe
// for concurrent use.
type RequestContext struct {
	ID        string
	Identity  auth.Identity
	Query     string
	StartedAt time.Time

	mu      sync.Mutex
	records []tools.CallRecord
	usage   TokenUsage
}

// NewRequestContext creates a context with a fresh correlation id
func NewRequestContext(identity auth.Identity, query string) *RequestContext {
	return &RequestContext{
		ID:        uuid.NewString(),
		Identity:  identity,
		Query:     query,
		StartedAt: time.Now(),
	}
}

// RecordToolCall appends one dispatch record to the ledger. Records are
// never mutated or removed once appended.
func (rc *RequestContext) RecordToolCall(record tools.CallRecord) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.records = append(rc.records, record)
}

// AddTokenUsage accumulates one LLM completion's token counts
func (rc *RequestContext) AddTokenUsage(input, output int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.usage.Input += input
	rc.usage.Output += output
	rc.usage.Calls++
}

// Records returns a copy of the ledger
func (rc *RequestContext) Records() []tools.CallRecord {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]tools.CallRecord, len(rc.records))
	copy(out, rc.records)
	return out
}

// Usage returns the accumulated token usage
func (rc *RequestContext) Usage() TokenUsage {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.usage
}

// Summary builds the terminal event payload: ledger totals, per-call
// details, token usage, and elapsed time
func (rc *RequestContext) Summary() map[string]interface{} {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	succeeded := 0
	failed := 0
	details := make([]map[string]interface{}, 0, len(rc.records))
	for _, r := range rc.records {
		if r.Succeeded() {
			succeeded++
		} else {
			failed++
		}
		detail := map[string]interface{}{
			"tool":        r.Tool,
			"outcome":     r.Outcome,
			"duration_ms": r.Duration.Milliseconds(),
		}
		if r.Error != "" {
			detail["error"] = r.Error
		}
		details = append(details, detail)
	}

	return map[string]interface{}{
		"tool_calls": map[string]interface{}{
			"total":     len(rc.records),
			"succeeded": succeeded,
			"failed":    failed,
			"details":   details,
		},
		"llm_usage":   rc.usage,
		"duration_ms": time.Since(rc.StartedAt).Milliseconds(),
	}
}

var _ tools.Recorder = (*RequestContext)(nil)
