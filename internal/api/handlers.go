package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/stratalabs/finsight/internal/audit"
	"github.com/stratalabs/finsight/internal/auth"
	"github.com/stratalabs/finsight/internal/mcp"
	"github.com/stratalabs/finsight/internal/metrics"
	"github.com/stratalabs/finsight/internal/reason"
)

// ReasonRequest is the body of POST /api/v1/reason.
type ReasonRequest struct {
	Query string `json:"query" binding:"required"`
}

// handleReason runs a reasoning request and streams its events over SSE.
func (s *Server) handleReason(c *gin.Context) {
	var body ReasonRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	identity := identityFrom(c)

	events := s.orchestrator.Run(c.Request.Context(), reason.Request{
		Identity: identity,
		Query:    body.Query,
	})

	// Tee the stream through the audit trail: the lifecycle events carry
	// everything the trail needs, so no second bookkeeping path.
	ctx := c.Request.Context()
	audited := make(chan reason.Event)
	go func() {
		defer close(audited)
		started := time.Now()
		var requestID string
		for event := range events {
			switch event.Type {
			case reason.EventStart:
				requestID, _ = event.Data["request_id"].(string)
				s.audit.LogQueryStarted(ctx, identity.CallerID, requestID, body.Query)
			case reason.EventToolResult:
				s.auditToolResult(ctx, identity.CallerID, requestID, event)
			case reason.EventDone:
				s.audit.LogQueryCompleted(ctx, identity.CallerID, requestID, true, "", time.Since(started))
			case reason.EventError:
				msg, _ := event.Data["message"].(string)
				s.audit.LogQueryCompleted(ctx, identity.CallerID, requestID, false, msg, time.Since(started))
			}
			select {
			case audited <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := reason.StreamSSE(c.Writer, audited); err != nil {
		log.Error().Err(err).Msg("SSE stream failed")
		metrics.RecordError("sse_stream", "api")
	}
}

// auditToolResult records a tool step in the audit trail, distinguishing
// authorization denials from ordinary outcomes.
func (s *Server) auditToolResult(ctx context.Context, callerID int64, requestID string, event reason.Event) {
	tool, _ := event.Data["tool"].(string)
	success, _ := event.Data["success"].(bool)
	errMsg, _ := event.Data["error"].(string)
	durationMs, _ := event.Data["duration_ms"].(int64)

	if code, denied := event.Data["error_code"].(string); denied {
		s.audit.LogAccessDenied(ctx, callerID, requestID, tool, code, errMsg)
		return
	}

	outcome := "success"
	if !success {
		outcome = "error"
	}
	s.audit.LogToolInvoked(ctx, callerID, requestID, tool, outcome, success, errMsg,
		time.Duration(durationMs)*time.Millisecond)
}

// handleMCP serves a single JSON-RPC request over HTTP, an alternative to
// the stdio transport for clients that prefer plain POST.
func (s *Server) handleMCP(c *gin.Context) {
	var req mcp.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON-RPC request"})
		return
	}

	resp := s.mcp.Handle(c.Request.Context(), &req, identityFrom(c), nil)
	c.JSON(http.StatusOK, resp)
}

// handleListTools returns the tool catalog with its permission requirements.
func (s *Server) handleListTools(c *gin.Context) {
	type toolInfo struct {
		Name        string                 `json:"name"`
		Description string                 `json:"description"`
		InputSchema map[string]interface{} `json:"input_schema"`
		Required    []auth.Permission      `json:"required_permissions"`
	}

	descriptors := s.registry.List()
	infos := make([]toolInfo, 0, len(descriptors))
	for _, desc := range descriptors {
		infos = append(infos, toolInfo{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: desc.InputSchema,
			Required:    desc.Required,
		})
	}

	c.JSON(http.StatusOK, gin.H{"tools": infos})
}

// handleAuditQuery returns recent audit events. Admin only.
func (s *Server) handleAuditQuery(c *gin.Context) {
	filters := audit.QueryFilters{
		EventType: audit.EventType(c.Query("event_type")),
		Limit:     100,
	}

	if callerStr := c.Query("caller_id"); callerStr != "" {
		callerID, err := strconv.ParseInt(callerStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid caller_id"})
			return
		}
		filters.CallerID = callerID
	}

	if sinceStr := c.Query("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		filters.StartTime = since
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		filters.Limit = limit
	}

	events, err := s.audit.Query(c.Request.Context(), filters)
	if err != nil {
		log.Error().Err(err).Msg("Audit query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audit query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// handleHealth reports liveness and backend connectivity.
func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	dbStatus := "ok"

	if s.db != nil {
		if err := s.db.Ping(c.Request.Context()); err != nil {
			dbStatus = "unreachable"
			status = http.StatusServiceUnavailable
		}
	} else {
		dbStatus = "not configured"
	}

	c.JSON(status, gin.H{
		"status":   "ok",
		"database": dbStatus,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}
