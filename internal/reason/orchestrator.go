package reason

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stratalabs/finsight/internal/auth"
	"github.com/stratalabs/finsight/internal/metrics"
	"github.com/stratalabs/finsight/internal/tools"
)

// State names the orchestrator's position in the request lifecycle
type State string

const (
	StateStart       State = "start"
	StatePlanning    State = "planning"
	StateToolCalling State = "tool_calling"
	StateAnswering   State = "answering"
	StateDone        State = "done"
	StateError       State = "error"
)

// DefaultMaxToolSteps caps the tool calls per request when no limit is
// configured
const DefaultMaxToolSteps = 5

// Request is one reasoning request
type Request struct {
	Identity auth.Identity
	Query    string
}

// Orchestrator runs the reasoning loop: plan, call tools, answer. Events
// are delivered in order on an unbuffered channel; a slow consumer
// suspends the loop rather than losing events.
type Orchestrator struct {
	registry *tools.Registry
	strategy Strategy
	maxSteps int
	logger   zerolog.Logger
}

// NewOrchestrator creates an orchestrator. maxSteps <= 0 selects the
// default cap.
func NewOrchestrator(registry *tools.Registry, strategy Strategy, maxSteps int) *Orchestrator {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxToolSteps
	}
	return &Orchestrator{
		registry: registry,
		strategy: strategy,
		maxSteps: maxSteps,
		logger:   log.With().Str("component", "orchestrator").Logger(),
	}
}

// Run starts the reasoning loop and returns its event stream. The channel
// carries exactly one start event first and one done or error event last,
// and is closed when the request finishes or the context is cancelled.
func (o *Orchestrator) Run(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event)
	go o.run(ctx, req, events)
	return events
}

func (o *Orchestrator) run(ctx context.Context, req Request, events chan<- Event) {
	defer close(events)

	rc := NewRequestContext(req.Identity, req.Query)
	state := StateStart
	outcome := "cancelled"

	defer func() {
		metrics.RecordReasoningRequest(
			o.strategy.Name(), outcome,
			float64(time.Since(rc.StartedAt).Milliseconds()),
			len(rc.Records()),
		)
		o.logger.Info().
			Str("request_id", rc.ID).
			Int64("caller_id", req.Identity.CallerID).
			Str("strategy", o.strategy.Name()).
			Str("outcome", outcome).
			Int("tool_calls", len(rc.Records())).
			Msg("reasoning request finished")
	}()

	// Emission doubles as the suspension point: a blocked send parks the
	// loop, and cancellation unblocks it.
	emit := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(newStartEvent(rc.ID, req.Query)) {
		return
	}

	var history []Step
	for {
		if ctx.Err() != nil {
			return
		}

		state = StatePlanning
		proposal, err := o.strategy.ProposeNext(ctx, rc, history)
		if err != nil {
			if len(history) == 0 {
				state = StateError
				outcome = "error"
				emit(newErrorEvent(rc.ID, "planning_failure", err.Error()))
				return
			}
			// Results already gathered are worth answering with
			o.logger.Warn().Err(err).Str("request_id", rc.ID).Msg("strategy failed mid-request, answering with partial results")
			o.finishWithAnswer(rc, emit, partialAnswer(history), &state, &outcome)
			return
		}

		if proposal.Thought != "" {
			if !emit(newThinkingEvent(rc.ID, proposal.Thought)) {
				return
			}
		}

		if proposal.Call == nil {
			o.finishWithAnswer(rc, emit, proposal.Answer, &state, &outcome)
			return
		}

		if len(history) >= o.maxSteps {
			// The strategy wants another call but the budget is spent
			o.logger.Warn().
				Str("request_id", rc.ID).
				Int("max_steps", o.maxSteps).
				Msg("tool call budget exhausted")
			o.finishWithAnswer(rc, emit, partialAnswer(history), &state, &outcome)
			return
		}

		state = StateToolCalling
		stepNum := len(history) + 1
		call := *proposal.Call

		if !emit(newToolCallEvent(rc.ID, stepNum, call.Tool, call.Args)) {
			return
		}

		callStart := time.Now()
		result, callErr := o.registry.Dispatch(ctx, call.Tool, call.Args, req.Identity, rc)
		callDuration := time.Since(callStart)

		if !emit(newToolResultEvent(rc.ID, stepNum, call.Tool, result, callErr, callDuration)) {
			return
		}

		// A denial on the opening call means the request as posed is off
		// limits for this caller; there is nothing to answer with.
		if callErr != nil && stepNum == 1 && errors.Is(callErr, tools.ErrAccessDenied) {
			state = StateError
			outcome = "error"
			emit(newErrorEvent(rc.ID, "access_denied", callErr.Error()))
			return
		}

		history = append(history, Step{
			Call:     call,
			Result:   result,
			Err:      callErr,
			Duration: callDuration,
		})
	}
}

func (o *Orchestrator) finishWithAnswer(rc *RequestContext, emit func(Event) bool, answer string, state *State, outcome *string) {
	*state = StateAnswering
	if answer == "" {
		answer = "I was unable to produce an answer for that query."
	}
	if !emit(newAnswerEvent(rc.ID, answer)) {
		return
	}
	*state = StateDone
	*outcome = "done"
	emit(newDoneEvent(rc.ID, rc.Summary()))
}

// partialAnswer summarizes what was gathered before the loop stopped early
func partialAnswer(history []Step) string {
	succeeded := 0
	for _, step := range history {
		if step.Succeeded() {
			succeeded++
		}
	}
	return fmt.Sprintf(
		"I could not complete the full analysis. Of %d tool calls, %d returned data; the results above are partial.",
		len(history), succeeded)
}
