package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Circuit breaker thresholds for the completions endpoint. Timeouts are
// longer than a typical service breaker because gateway recovery is slow.
const (
	breakerMinRequests     = 3
	breakerFailureRatio    = 0.6
	breakerOpenTimeout     = 60 * time.Second
	breakerHalfOpenMaxReqs = 2
	breakerCountInterval   = 10 * time.Second
)

// BreakerClient wraps a Completer with a circuit breaker so a failing
// gateway sheds load fast instead of holding every reasoning request until
// its timeout
type BreakerClient struct {
	inner   Completer
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerClient wraps the given completer
func NewBreakerClient(inner Completer) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        "llm",
		MaxRequests: breakerHalfOpenMaxReqs,
		Interval:    breakerCountInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= breakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("LLM circuit breaker state changed")
		},
	}

	return &BreakerClient{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Complete runs the wrapped completion through the breaker
func (b *BreakerClient) Complete(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (*ChatResponse, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Complete(ctx, messages, tools)
	})
	if err != nil {
		return nil, err
	}
	return result.(*ChatResponse), nil
}
