package api

import "github.com/stratalabs/finsight/internal/auth"

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	v1.Use(IdentityMiddleware())
	{
		v1.POST("/reason", s.handleReason)
		v1.POST("/mcp", s.handleMCP)
		v1.GET("/tools", s.handleListTools)

		admin := v1.Group("/audit")
		admin.Use(RequireRole(auth.RoleAdmin))
		admin.GET("", s.handleAuditQuery)
	}
}
