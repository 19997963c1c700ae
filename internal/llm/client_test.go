package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolCallResponse(t *testing.T) string {
	t.Helper()
	resp := map[string]interface{}{
		"id":    "chatcmpl-1",
		"model": "gpt-4o-mini",
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role": "assistant",
					"tool_calls": []map[string]interface{}{
						{
							"id":   "call_1",
							"type": "function",
							"function": map[string]interface{}{
								"name":      "query_transactions",
								"arguments": `{"user_id": 42}`,
							},
						},
					},
				},
				"finish_reason": "tool_calls",
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     120,
			"completion_tokens": 18,
			"total_tokens":      138,
		},
	}
	body, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(body)
}

func TestClientCompleteToolCall(t *testing.T) {
	var gotReq ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(toolCallResponse(t)))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Endpoint: server.URL, APIKey: "test-key"})

	tools := []ToolDefinition{{
		Type: "function",
		Function: FunctionDefinition{
			Name:       "query_transactions",
			Parameters: map[string]interface{}{"type": "object"},
		},
	}}
	resp, err := client.Complete(context.Background(), []ChatMessage{
		{Role: "user", Content: "show my transactions"},
	}, tools)

	require.NoError(t, err)
	require.Len(t, gotReq.Tools, 1)
	assert.Equal(t, "query_transactions", gotReq.Tools[0].Function.Name)

	msg := resp.Message()
	require.NotNil(t, msg)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "query_transactions", msg.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"user_id": 42}`, msg.ToolCalls[0].Function.Arguments)
	assert.Equal(t, 120, resp.Usage.PromptTokens)
}

func TestClientCompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit_error"}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Endpoint: server.URL})

	_, err := client.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestClientCompleteWithRetryGivesUp(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"message": "upstream down"}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Endpoint: server.URL})

	_, err := client.CompleteWithRetry(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, nil, 0)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "failed after 1 attempts")
}

func TestClientCompleteWithRetryHonorsCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Endpoint: server.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.CompleteWithRetry(ctx, []ChatMessage{{Role: "user", Content: "hi"}}, nil, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

type failingCompleter struct {
	calls int
}

func (f *failingCompleter) Complete(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (*ChatResponse, error) {
	f.calls++
	return nil, errors.New("gateway unreachable")
}

func TestBreakerClientTrips(t *testing.T) {
	inner := &failingCompleter{}
	client := NewBreakerClient(inner)

	// Enough consecutive failures to cross the ratio threshold
	for i := 0; i < breakerMinRequests; i++ {
		_, err := client.Complete(context.Background(), nil, nil)
		require.Error(t, err)
	}

	_, err := client.Complete(context.Background(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	// The open breaker never reached the inner completer
	assert.Equal(t, breakerMinRequests, inner.calls)
}
