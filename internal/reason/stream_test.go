package reason

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSSEWireFormat(t *testing.T) {
	events := make(chan Event, 3)
	events <- newStartEvent("req-1", "hello")
	events <- newAnswerEvent("req-1", "done deal")
	events <- newDoneEvent("req-1", map[string]interface{}{"duration_ms": int64(5)})
	close(events)

	rec := httptest.NewRecorder()
	require.NoError(t, StreamSSE(rec, events))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	frames := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	require.Len(t, frames, 3)

	for _, frame := range frames {
		require.True(t, strings.HasPrefix(frame, "data: "), "frame %q missing data prefix", frame)
	}

	// Each frame's payload is {"type": ..., "data": {...}}
	var first struct {
		Type string                 `json:"type"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[0], "data: ")), &first))
	assert.Equal(t, "start", first.Type)
	assert.Equal(t, "req-1", first.Data["request_id"])
	assert.Equal(t, "hello", first.Data["query"])

	var last struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[2], "data: ")), &last))
	assert.Equal(t, "done", last.Type)
}
