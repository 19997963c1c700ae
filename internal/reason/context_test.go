package reason

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratalabs/finsight/internal/auth"
	"github.com/stratalabs/finsight/internal/tools"
)

func TestRequestContextIDsAreUnique(t *testing.T) {
	id := auth.Identity{CallerID: 1}
	a := NewRequestContext(id, "q")
	b := NewRequestContext(id, "q")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestRequestContextLedgerAppendOnly(t *testing.T) {
	rc := NewRequestContext(auth.Identity{CallerID: 1}, "q")

	rc.RecordToolCall(tools.CallRecord{Tool: "a", Outcome: "success", Duration: time.Millisecond})
	rc.RecordToolCall(tools.CallRecord{Tool: "b", Outcome: "execution_error", Error: "boom"})

	records := rc.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Tool)
	assert.Equal(t, "b", records[1].Tool)

	// Mutating the returned copy must not touch the ledger
	records[0].Tool = "tampered"
	assert.Equal(t, "a", rc.Records()[0].Tool)
}

func TestRequestContextTokenAccounting(t *testing.T) {
	rc := NewRequestContext(auth.Identity{CallerID: 1}, "q")

	rc.AddTokenUsage(100, 20)
	rc.AddTokenUsage(250, 35)

	usage := rc.Usage()
	assert.Equal(t, 350, usage.Input)
	assert.Equal(t, 55, usage.Output)
	assert.Equal(t, 2, usage.Calls)
}

func TestRequestContextSummary(t *testing.T) {
	rc := NewRequestContext(auth.Identity{CallerID: 1}, "q")
	rc.RecordToolCall(tools.CallRecord{Tool: "a", Outcome: "success", Duration: 3 * time.Millisecond})
	rc.RecordToolCall(tools.CallRecord{Tool: "b", Outcome: "access_denied", Error: "access denied"})
	rc.AddTokenUsage(10, 5)

	summary := rc.Summary()

	ledger := summary["tool_calls"].(map[string]interface{})
	assert.Equal(t, 2, ledger["total"])
	assert.Equal(t, 1, ledger["succeeded"])
	assert.Equal(t, 1, ledger["failed"])

	details := ledger["details"].([]map[string]interface{})
	require.Len(t, details, 2)
	assert.Equal(t, "access denied", details[1]["error"])

	usage := summary["llm_usage"].(TokenUsage)
	assert.Equal(t, 10, usage.Input)
}

func TestRequestContextConcurrentRecording(t *testing.T) {
	rc := NewRequestContext(auth.Identity{CallerID: 1}, "q")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rc.RecordToolCall(tools.CallRecord{Tool: "x", Outcome: "success"})
			rc.AddTokenUsage(1, 1)
		}()
	}
	wg.Wait()

	assert.Len(t, rc.Records(), 50)
	assert.Equal(t, 50, rc.Usage().Calls)
}
