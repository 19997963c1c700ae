package auth

import (
	"fmt"
	"sort"
)

// Matrix maps each role to its full permission set. Every role's set is
// enumerated independently; there is no structural inheritance between
// roles, so changing one role's grants never affects another.
type Matrix struct {
	perms map[Role]map[Permission]struct{}
}

// NewMatrix builds the production permission matrix
func NewMatrix() *Matrix {
	return &Matrix{
		perms: map[Role]map[Permission]struct{}{
			RoleViewer: permSet(
				PermReadMarketData,
			),
			RoleAnalyst: permSet(
				PermReadMarketData,
				PermReadTransactionsOwn,
				PermReadPortfoliosOwn,
				PermReadRiskMetrics,
			),
			RoleAdmin: permSet(
				PermReadMarketData,
				PermReadTransactionsAll,
				PermReadTransactionsOwn,
				PermReadPortfoliosAll,
				PermReadPortfoliosOwn,
				PermReadRiskMetrics,
			),
		},
	}
}

func permSet(perms ...Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// PermissionsFor returns the permission set for role in stable order.
// An unknown role yields an empty set.
func (m *Matrix) PermissionsFor(role Role) []Permission {
	set, ok := m.perms[role]
	if !ok {
		return nil
	}
	perms := make([]Permission, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

func (m *Matrix) grants(role Role, perm Permission) bool {
	_, ok := m.perms[role][perm]
	return ok
}

// Validate checks that every expected role has a non-empty permission set.
// A failure here is a startup configuration error and must abort the process.
func (m *Matrix) Validate(roles []Role) error {
	for _, role := range roles {
		set, ok := m.perms[role]
		if !ok {
			return fmt.Errorf("permission matrix missing role %q", role)
		}
		if len(set) == 0 {
			return fmt.Errorf("permission matrix has empty set for role %q", role)
		}
	}
	return nil
}
