package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stratalabs/finsight/internal/auth"
	"github.com/stratalabs/finsight/internal/tools"
)

// Server routes JSON-RPC requests onto the tool registry. It owns no
// transport: ServeStdio speaks newline-delimited JSON over reader/writer
// pairs, and the HTTP layer calls Handle directly.
type Server struct {
	registry *tools.Registry
	name     string
	version  string
	logger   zerolog.Logger
}

// NewServer creates a protocol server over the registry
func NewServer(registry *tools.Registry, name, version string) *Server {
	return &Server{
		registry: registry,
		name:     name,
		version:  version,
		logger:   log.With().Str("component", "mcp_server").Logger(),
	}
}

// Handle processes one request for the given caller. Authorization runs
// inside the registry dispatch; a denial comes back as a tool-result error
// payload, not a protocol error, so clients can show it to the user.
func (s *Server) Handle(ctx context.Context, req *Request, identity auth.Identity, rec tools.Recorder) *Response {
	resp := &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
	}

	switch req.Method {
	case "initialize":
		resp.Result = map[string]interface{}{
			"protocolVersion": ProtocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]bool{
					"listChanged": false,
				},
			},
			"serverInfo": map[string]string{
				"name":    s.name,
				"version": s.version,
			},
		}

	case "tools/list":
		resp.Result = s.listTools()

	case "tools/call":
		resp.Result, resp.Error = s.callTool(ctx, req.Params, identity, rec)

	default:
		resp.Error = &Error{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}

	return resp
}

func (s *Server) listTools() interface{} {
	descriptors := s.registry.List()
	list := make([]map[string]interface{}, 0, len(descriptors))
	for _, d := range descriptors {
		list = append(list, map[string]interface{}{
			"name":        d.Name,
			"description": d.Description,
			"inputSchema": d.InputSchema,
		})
	}
	return map[string]interface{}{"tools": list}
}

func (s *Server) callTool(ctx context.Context, params Params, identity auth.Identity, rec tools.Recorder) (interface{}, *Error) {
	result, err := s.registry.Dispatch(ctx, params.Name, params.Arguments, identity, rec)
	if err != nil {
		switch {
		case errors.Is(err, tools.ErrNotFound), errors.Is(err, tools.ErrInvalidArguments):
			return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
		case errors.Is(err, tools.ErrAccessDenied), errors.Is(err, tools.ErrExecutionFailed):
			return textContent(err.Error(), true), nil
		default:
			return nil, &Error{Code: CodeInternalError, Message: err.Error()}
		}
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("marshal result: %v", err)}
	}
	return textContent(string(payload), false), nil
}

// ServeStdio reads newline-delimited JSON-RPC requests from r and writes
// responses to w until EOF or context cancellation. Every call runs as the
// given identity.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer, identity auth.Identity) error {
	decoder := json.NewDecoder(r)
	encoder := json.NewEncoder(w)

	s.logger.Info().
		Str("server", s.name).
		Int64("caller_id", identity.CallerID).
		Msg("MCP server ready, listening on stdio")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var request Request
		if err := decoder.Decode(&request); err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info().Msg("Client disconnected")
				return nil
			}
			// A decoder never recovers from a syntax error, so bail out
			// instead of spinning on the same broken input.
			s.logger.Error().Err(err).Msg("Failed to decode request")
			return fmt.Errorf("decode request: %w", err)
		}

		s.logger.Debug().
			Str("method", request.Method).
			Str("tool", request.Params.Name).
			Msg("Received request")

		response := s.Handle(ctx, &request, identity, nil)
		if err := encoder.Encode(response); err != nil {
			s.logger.Error().Err(err).Msg("Failed to encode response")
			return err
		}
	}
}
