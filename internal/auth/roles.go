package auth

import (
	"fmt"
	"strings"
)

// Role represents a caller role as issued by the upstream gateway
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleAnalyst Role = "analyst"
	RoleViewer  Role = "viewer"
)

// AllRoles lists every role the permission matrix must cover
var AllRoles = []Role{RoleAdmin, RoleAnalyst, RoleViewer}

// ParseRole converts a header/config string into a Role
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleAnalyst:
		return RoleAnalyst, nil
	case RoleViewer:
		return RoleViewer, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// ParseRoles parses a comma-separated role list, skipping empty entries
func ParseRoles(s string) ([]Role, error) {
	var roles []Role
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		role, err := ParseRole(part)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// Permission represents a single grantable capability
type Permission string

const (
	PermReadMarketData      Permission = "read:market_data"
	PermReadTransactionsAll Permission = "read:transactions:all"
	PermReadTransactionsOwn Permission = "read:transactions:own"
	PermReadPortfoliosAll   Permission = "read:portfolios:all"
	PermReadPortfoliosOwn   Permission = "read:portfolios:own"
	PermReadRiskMetrics     Permission = "read:risk_metrics"
)

// Identity describes the authenticated caller for a single request.
// Token verification happens upstream; this service only consumes the
// resolved caller id, display name, and role list.
type Identity struct {
	CallerID    int64  `json:"caller_id"`
	DisplayName string `json:"display_name"`
	Roles       []Role `json:"roles"`
}

// HasPermission reports whether any of the identity's roles grants perm
func (id Identity) HasPermission(m *Matrix, perm Permission) bool {
	for _, role := range id.Roles {
		if m.grants(role, perm) {
			return true
		}
	}
	return false
}

// PermissionUnion returns the union of permissions across the identity's roles
func (id Identity) PermissionUnion(m *Matrix) []Permission {
	seen := make(map[Permission]struct{})
	var union []Permission
	for _, role := range id.Roles {
		for _, perm := range m.PermissionsFor(role) {
			if _, ok := seen[perm]; ok {
				continue
			}
			seen[perm] = struct{}{}
			union = append(union, perm)
		}
	}
	return union
}
