package metrics

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordToolCall(t *testing.T) {
	before := testutil.ToFloat64(ToolCalls.WithLabelValues("query_transactions", OutcomeSuccess))
	RecordToolCall("query_transactions", OutcomeSuccess, 12.5)
	after := testutil.ToFloat64(ToolCalls.WithLabelValues("query_transactions", OutcomeSuccess))
	assert.Equal(t, before+1, after)
}

func TestRecordAccessDenial(t *testing.T) {
	before := testutil.ToFloat64(AccessDenials.WithLabelValues("analyze_risk_metrics", "ownership_violation"))
	RecordAccessDenial("analyze_risk_metrics", "ownership_violation")
	after := testutil.ToFloat64(AccessDenials.WithLabelValues("analyze_risk_metrics", "ownership_violation"))
	assert.Equal(t, before+1, after)
}

func TestRecordLLMTokens(t *testing.T) {
	inBefore := testutil.ToFloat64(LLMTokens.WithLabelValues("input"))
	outBefore := testutil.ToFloat64(LLMTokens.WithLabelValues("output"))

	RecordLLMTokens(120, 45)

	assert.Equal(t, inBefore+120, testutil.ToFloat64(LLMTokens.WithLabelValues("input")))
	assert.Equal(t, outBefore+45, testutil.ToFloat64(LLMTokens.WithLabelValues("output")))
}

func TestRecordAuditLogStatusMapping(t *testing.T) {
	okBefore := testutil.ToFloat64(AuditLogs.WithLabelValues("TOOL_INVOKED", "success"))
	failBefore := testutil.ToFloat64(AuditLogs.WithLabelValues("TOOL_INVOKED", "failure"))

	RecordAuditLog("TOOL_INVOKED", true)
	RecordAuditLog("TOOL_INVOKED", false)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(AuditLogs.WithLabelValues("TOOL_INVOKED", "success")))
	assert.Equal(t, failBefore+1, testutil.ToFloat64(AuditLogs.WithLabelValues("TOOL_INVOKED", "failure")))
}

func TestServerStartShutdown(t *testing.T) {
	server := NewServer(0, zerolog.Nop())
	require.NoError(t, server.Start())

	// Port 0 asks the kernel for a free port; the bound address must be
	// visible so operators can find the scrape endpoint.
	addr := server.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))
}
