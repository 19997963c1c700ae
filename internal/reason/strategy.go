package reason

import (
	"context"
	"errors"
	"time"
)

// ErrPlanningFailure means the strategy could not produce a next step
// before any tool result was gathered
var ErrPlanningFailure = errors.New("planning failure")

// PlannedCall is a strategy's request to invoke one tool
type PlannedCall struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args"`
}

// Proposal is a strategy's next move: exactly one of Call or Answer is set.
// Thought, when present, is narrated to the stream before acting.
type Proposal struct {
	Thought string
	Call    *PlannedCall
	Answer  string
}

// Step is one completed tool call the orchestrator feeds back to the
// strategy on the next planning round
type Step struct {
	Call     PlannedCall
	Result   interface{}
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the step's tool call completed without error
func (s Step) Succeeded() bool {
	return s.Err == nil
}

// Strategy decides the next move given the query and the steps taken so
// far. Implementations must be stateless across requests; all per-request
// state lives in the RequestContext and the history slice.
type Strategy interface {
	Name() string
	ProposeNext(ctx context.Context, rc *RequestContext, history []Step) (Proposal, error)
}
