package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratalabs/finsight/internal/auth"
	"github.com/stratalabs/finsight/internal/tools"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	registry, err := tools.NewRegistry(auth.NewGuard(auth.NewMatrix()), tools.Descriptor{
		Name:        "echo",
		Description: "echoes its arguments",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"user_id": map[string]interface{}{"type": "integer"},
			},
			"required": []string{"user_id"},
		},
		Required:    []auth.Permission{auth.PermReadTransactionsAll, auth.PermReadTransactionsOwn},
		OwnedArgs:   []string{"user_id"},
		AllDataPerm: auth.PermReadTransactionsAll,
		Handler: func(ctx context.Context, identity auth.Identity, args map[string]interface{}) (interface{}, error) {
			return map[string]interface{}{"echoed": args["user_id"]}, nil
		},
	})
	require.NoError(t, err)
	return NewServer(registry, "finsight-tools", "1.0.0")
}

func adminIdentity() auth.Identity {
	return auth.Identity{CallerID: 1, Roles: []auth.Role{auth.RoleAdmin}}
}

func TestHandleInitialize(t *testing.T) {
	s := testServer(t)

	resp := s.Handle(context.Background(), &Request{JSONRPC: "2.0", ID: 1, Method: "initialize"}, adminIdentity(), nil)

	require.Nil(t, resp.Error)
	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, 1, resp.ID)

	result := resp.Result.(map[string]interface{})
	assert.Equal(t, ProtocolVersion, result["protocolVersion"])
	info := result["serverInfo"].(map[string]string)
	assert.Equal(t, "finsight-tools", info["name"])
}

func TestHandleToolsList(t *testing.T) {
	s := testServer(t)

	resp := s.Handle(context.Background(), &Request{JSONRPC: "2.0", ID: 2, Method: "tools/list"}, adminIdentity(), nil)

	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	list := result["tools"].([]map[string]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "echo", list[0]["name"])
	assert.NotNil(t, list[0]["inputSchema"])
}

func TestHandleToolsCallSuccess(t *testing.T) {
	s := testServer(t)

	resp := s.Handle(context.Background(), &Request{
		JSONRPC: "2.0", ID: 3, Method: "tools/call",
		Params: Params{Name: "echo", Arguments: map[string]interface{}{"user_id": float64(1)}},
	}, adminIdentity(), nil)

	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	assert.Nil(t, result["isError"])
	content := result["content"].([]map[string]interface{})
	require.Len(t, content, 1)
	assert.Contains(t, content[0]["text"], `"echoed":1`)
}

func TestHandleToolsCallDeniedIsToolResultError(t *testing.T) {
	s := testServer(t)
	viewer := auth.Identity{CallerID: 5, Roles: []auth.Role{auth.RoleViewer}}

	resp := s.Handle(context.Background(), &Request{
		JSONRPC: "2.0", ID: 4, Method: "tools/call",
		Params: Params{Name: "echo", Arguments: map[string]interface{}{"user_id": float64(5)}},
	}, viewer, nil)

	// Denial is a tool result, not a protocol error
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	assert.Equal(t, true, result["isError"])
	content := result["content"].([]map[string]interface{})
	assert.Contains(t, content[0]["text"], "access denied")
}

func TestHandleToolsCallUnknownTool(t *testing.T) {
	s := testServer(t)

	resp := s.Handle(context.Background(), &Request{
		JSONRPC: "2.0", ID: 5, Method: "tools/call",
		Params: Params{Name: "missing"},
	}, adminIdentity(), nil)

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestHandleToolsCallInvalidArguments(t *testing.T) {
	s := testServer(t)

	resp := s.Handle(context.Background(), &Request{
		JSONRPC: "2.0", ID: 6, Method: "tools/call",
		Params: Params{Name: "echo", Arguments: map[string]interface{}{"user_id": "nope"}},
	}, adminIdentity(), nil)

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestHandleUnknownMethod(t *testing.T) {
	s := testServer(t)

	resp := s.Handle(context.Background(), &Request{JSONRPC: "2.0", ID: 7, Method: "resources/list"}, adminIdentity(), nil)

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "resources/list")
}

func TestServeStdioRoundTrip(t *testing.T) {
	s := testServer(t)

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"user_id":1}}}`,
	}, "\n")

	var out bytes.Buffer
	err := s.ServeStdio(context.Background(), strings.NewReader(input), &out, adminIdentity())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var first Response
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, 1, first.ID)
	assert.Nil(t, first.Error)

	var second Response
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, 2, second.ID)
	assert.Nil(t, second.Error)
}

func TestServeStdioStopsOnMalformedInput(t *testing.T) {
	s := testServer(t)

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc": not json at all`,
	}, "\n")

	var out bytes.Buffer
	err := s.ServeStdio(context.Background(), strings.NewReader(input), &out, adminIdentity())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request")

	// The well-formed request before the bad one is still answered.
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
	var first Response
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, 1, first.ID)
}
