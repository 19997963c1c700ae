package reason

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stratalabs/finsight/internal/llm"
	"github.com/stratalabs/finsight/internal/tools"
)

const directedSystemPrompt = `You are a financial reasoning assistant. Answer the user's question ` +
	`by calling the provided tools for any data you need; never invent transaction, risk, or market figures. ` +
	`When a tool call fails because access was denied, do not retry it with different arguments for the same data; ` +
	`work with what you are allowed to see. When you have enough data, reply with a concise plain-text answer.`

// DirectedStrategy lets a tool-calling model drive the loop: each planning
// round replays the conversation so far and asks the model for the next
// tool call or the final answer
type DirectedStrategy struct {
	client      llm.Completer
	definitions []llm.ToolDefinition
	logger      zerolog.Logger
}

// NewDirectedStrategy builds the strategy over the registry's tool set
func NewDirectedStrategy(client llm.Completer, registry *tools.Registry) *DirectedStrategy {
	descriptors := registry.List()
	definitions := make([]llm.ToolDefinition, 0, len(descriptors))
	for _, d := range descriptors {
		definitions = append(definitions, llm.ToolDefinition{
			Type: "function",
			Function: llm.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.InputSchema,
			},
		})
	}
	return &DirectedStrategy{
		client:      client,
		definitions: definitions,
		logger:      log.With().Str("component", "directed_strategy").Logger(),
	}
}

func (s *DirectedStrategy) Name() string { return "directed" }

// ProposeNext asks the model for the next move given the full history
func (s *DirectedStrategy) ProposeNext(ctx context.Context, rc *RequestContext, history []Step) (Proposal, error) {
	messages := s.buildMessages(rc, history)

	resp, err := s.client.Complete(ctx, messages, s.definitions)
	if err != nil {
		return Proposal{}, fmt.Errorf("%w: %v", ErrPlanningFailure, err)
	}
	rc.AddTokenUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	msg := resp.Message()
	if msg == nil {
		return Proposal{}, fmt.Errorf("%w: empty completion", ErrPlanningFailure)
	}

	if len(msg.ToolCalls) > 0 {
		call := msg.ToolCalls[0]
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return Proposal{}, fmt.Errorf("%w: malformed tool arguments for %s: %v", ErrPlanningFailure, call.Function.Name, err)
		}
		s.logger.Debug().
			Str("request_id", rc.ID).
			Str("tool", call.Function.Name).
			Msg("model directed tool call")
		return Proposal{
			Thought: msg.Content,
			Call:    &PlannedCall{Tool: call.Function.Name, Args: args},
		}, nil
	}

	if msg.Content == "" {
		return Proposal{}, fmt.Errorf("%w: completion carried neither tool call nor answer", ErrPlanningFailure)
	}
	return Proposal{Answer: msg.Content}, nil
}

// buildMessages replays the conversation: system prompt, user query, then
// one assistant/tool message pair per completed step
func (s *DirectedStrategy) buildMessages(rc *RequestContext, history []Step) []llm.ChatMessage {
	messages := []llm.ChatMessage{
		{Role: "system", Content: directedSystemPrompt},
		{Role: "user", Content: rc.Query},
	}

	for i, step := range history {
		callID := fmt.Sprintf("call_%d", i)
		argsJSON, err := json.Marshal(step.Call.Args)
		if err != nil {
			argsJSON = []byte("{}")
		}
		messages = append(messages, llm.ChatMessage{
			Role: "assistant",
			ToolCalls: []llm.ToolCall{{
				ID:   callID,
				Type: "function",
				Function: llm.FunctionCall{
					Name:      step.Call.Tool,
					Arguments: string(argsJSON),
				},
			}},
		})

		var content string
		if step.Err != nil {
			content = fmt.Sprintf(`{"error": %q}`, step.Err.Error())
		} else if resultJSON, err := json.Marshal(step.Result); err == nil {
			content = string(resultJSON)
		} else {
			content = `{"error": "unserializable result"}`
		}
		messages = append(messages, llm.ChatMessage{
			Role:       "tool",
			ToolCallID: callID,
			Content:    content,
		})
	}
	return messages
}
