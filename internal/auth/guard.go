package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrAccessDenied is the sentinel wrapped by every authorization denial
var ErrAccessDenied = errors.New("access denied")

// Denial reason codes carried on DeniedError and into audit records
const (
	DenyMissingPermission  = "missing_permission"
	DenyOwnershipViolation = "ownership_violation"
)

// DeniedError carries the denial reason for a single authorization check
type DeniedError struct {
	Tool   string
	Code   string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied for tool %s: %s", e.Tool, e.Reason)
}

func (e *DeniedError) Unwrap() error {
	return ErrAccessDenied
}

// ToolAccess declares what a tool demands from its caller: at least one of
// Required (OR semantics), plus ownership of any OwnedArgs values unless the
// caller holds AllDataPerm.
type ToolAccess struct {
	Tool        string
	Required    []Permission
	OwnedArgs   []string
	AllDataPerm Permission
}

// Guard performs the two-tier authorization check in front of tool handlers
type Guard struct {
	matrix *Matrix
	logger zerolog.Logger
}

// NewGuard creates a guard over the given permission matrix
func NewGuard(matrix *Matrix) *Guard {
	return &Guard{
		matrix: matrix,
		logger: log.With().Str("component", "access_guard").Logger(),
	}
}

// Authorize checks identity against the tool's access declaration. The
// role-permission tier always runs first; arguments are never inspected for
// a caller whose roles do not qualify, so a denial cannot leak whether the
// referenced records exist.
func (g *Guard) Authorize(identity Identity, access ToolAccess, args map[string]interface{}) error {
	if err := g.checkPermissions(identity, access); err != nil {
		return err
	}
	if err := g.checkOwnership(identity, access, args); err != nil {
		return err
	}
	g.logger.Debug().
		Str("tool", access.Tool).
		Int64("caller_id", identity.CallerID).
		Msg("authorization granted")
	return nil
}

func (g *Guard) checkPermissions(identity Identity, access ToolAccess) error {
	if len(access.Required) == 0 {
		return nil
	}
	for _, required := range access.Required {
		if identity.HasPermission(g.matrix, required) {
			return nil
		}
	}
	g.logger.Warn().
		Str("tool", access.Tool).
		Int64("caller_id", identity.CallerID).
		Msg("authorization denied: missing permission")
	return &DeniedError{
		Tool:   access.Tool,
		Code:   DenyMissingPermission,
		Reason: fmt.Sprintf("caller roles grant none of the required permissions for %s", access.Tool),
	}
}

func (g *Guard) checkOwnership(identity Identity, access ToolAccess, args map[string]interface{}) error {
	if len(access.OwnedArgs) == 0 {
		return nil
	}
	if access.AllDataPerm != "" && identity.HasPermission(g.matrix, access.AllDataPerm) {
		return nil
	}
	for _, arg := range access.OwnedArgs {
		raw, ok := args[arg]
		if !ok || raw == nil {
			continue
		}
		owner, ok := asInt64(raw)
		if !ok || owner != identity.CallerID {
			g.logger.Warn().
				Str("tool", access.Tool).
				Str("arg", arg).
				Int64("caller_id", identity.CallerID).
				Msg("authorization denied: ownership violation")
			return &DeniedError{
				Tool:   access.Tool,
				Code:   DenyOwnershipViolation,
				Reason: fmt.Sprintf("argument %s does not belong to the caller", arg),
			}
		}
	}
	return nil
}

// asInt64 coerces the id shapes JSON decoding produces
func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
