package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stratalabs/finsight/internal/auth"
	"github.com/stratalabs/finsight/internal/metrics"
)

// Registry holds the tool set and runs every dispatch through the same
// pipeline: resolve, validate, authorize, execute, record. It is immutable
// after construction.
type Registry struct {
	guard  *auth.Guard
	order  []string
	byName map[string]Descriptor
	logger zerolog.Logger
}

// NewRegistry builds a registry from the given descriptors. Duplicate or
// unnamed tools and nil handlers are configuration errors that must abort
// startup.
func NewRegistry(guard *auth.Guard, descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{
		guard:  guard,
		byName: make(map[string]Descriptor, len(descriptors)),
		logger: log.With().Str("component", "tool_registry").Logger(),
	}
	for _, d := range descriptors {
		if d.Name == "" {
			return nil, fmt.Errorf("tool registered without a name")
		}
		if d.Handler == nil {
			return nil, fmt.Errorf("tool %s registered without a handler", d.Name)
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("tool %s registered twice", d.Name)
		}
		r.byName[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// List returns the descriptors in registration order
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Get returns the named descriptor
func (r *Registry) Get(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Dispatch runs one tool call end to end. The handler never runs unless the
// arguments validate and the guard authorizes the caller. Every dispatch,
// whatever its outcome, is appended to the recorder's ledger with its
// duration and mirrored to Prometheus.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]interface{}, identity auth.Identity, rec Recorder) (interface{}, error) {
	start := time.Now()
	if rec == nil {
		rec = NopRecorder{}
	}

	finish := func(outcome string, result interface{}, err error) (interface{}, error) {
		elapsed := time.Since(start)
		record := CallRecord{
			Tool:      name,
			Args:      args,
			Outcome:   outcome,
			StartedAt: start,
			Duration:  elapsed,
		}
		if err != nil {
			record.Error = err.Error()
		}
		rec.RecordToolCall(record)
		metrics.RecordToolCall(name, outcome, float64(elapsed.Milliseconds()))

		r.logger.Debug().
			Str("tool", name).
			Str("outcome", outcome).
			Int64("caller_id", identity.CallerID).
			Dur("duration", elapsed).
			Msg("tool dispatched")
		return result, err
	}

	desc, ok := r.byName[name]
	if !ok {
		return finish(metrics.OutcomeNotFound, nil, fmt.Errorf("%w: %s", ErrNotFound, name))
	}

	if err := validateArgs(desc.InputSchema, args); err != nil {
		return finish(metrics.OutcomeInvalidArguments, nil, err)
	}

	if err := r.guard.Authorize(identity, desc.Access(), args); err != nil {
		var denied *auth.DeniedError
		if errors.As(err, &denied) {
			metrics.RecordAccessDenial(name, denied.Code)
		}
		return finish(metrics.OutcomeAccessDenied, nil, err)
	}

	result, err := r.execute(ctx, desc, identity, args)
	if err != nil {
		return finish(metrics.OutcomeExecutionError, nil, fmt.Errorf("%w: %v", ErrExecutionFailed, err))
	}
	return finish(metrics.OutcomeSuccess, result, nil)
}

// execute runs the handler with panic capture so a handler bug becomes an
// execution error instead of tearing down the request
func (r *Registry) execute(ctx context.Context, desc Descriptor, identity auth.Identity, args map[string]interface{}) (result interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().
				Str("tool", desc.Name).
				Interface("panic", p).
				Msg("tool handler panicked")
			err = fmt.Errorf("handler panicked: %v", p)
		}
	}()
	return desc.Handler(ctx, identity, args)
}
