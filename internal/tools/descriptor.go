package tools

import (
	"context"
	"time"

	"github.com/stratalabs/finsight/internal/auth"
)

// Handler executes a tool against validated, authorized arguments. The
// identity is the already-authorized caller; handlers use it to scope
// queries, never to re-check access.
type Handler func(ctx context.Context, identity auth.Identity, args map[string]interface{}) (interface{}, error)

// Descriptor declares one callable tool: its wire schema, its access
// requirements, and its handler
type Descriptor struct {
	Name        string
	Description string
	// InputSchema is the JSON-schema object advertised over MCP and used
	// for argument validation before dispatch
	InputSchema map[string]interface{}
	// Required permissions, OR semantics: any one grants the role tier
	Required []auth.Permission
	// OwnedArgs are argument names whose values must match the caller id
	// unless the caller holds AllDataPerm
	OwnedArgs   []string
	AllDataPerm auth.Permission
	Handler     Handler
}

// Access returns the guard declaration for this tool
func (d Descriptor) Access() auth.ToolAccess {
	return auth.ToolAccess{
		Tool:        d.Name,
		Required:    d.Required,
		OwnedArgs:   d.OwnedArgs,
		AllDataPerm: d.AllDataPerm,
	}
}

// CallRecord is one ledger entry for a dispatched tool call
type CallRecord struct {
	Tool      string                 `json:"tool"`
	Args      map[string]interface{} `json:"args"`
	Outcome   string                 `json:"outcome"`
	Error     string                 `json:"error,omitempty"`
	StartedAt time.Time              `json:"started_at"`
	Duration  time.Duration          `json:"duration"`
}

// Succeeded reports whether the call completed without error
func (r CallRecord) Succeeded() bool {
	return r.Error == ""
}

// Recorder receives one CallRecord per dispatch, success or failure.
// The reasoning layer's request context implements this.
type Recorder interface {
	RecordToolCall(record CallRecord)
}

// NopRecorder discards records; used by callers with no request context
type NopRecorder struct{}

func (NopRecorder) RecordToolCall(CallRecord) {}
