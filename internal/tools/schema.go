package tools

import (
	"fmt"
	"math"
	"time"
)

// validateArgs checks args against the descriptor's JSON schema: required
// fields present, property types match, numeric bounds and enums hold, and
// date-formatted strings parse. Unknown argument names are rejected so a
// typo fails loudly instead of silently widening a query.
func validateArgs(schema map[string]interface{}, args map[string]interface{}) error {
	properties, _ := schema["properties"].(map[string]interface{})

	for name := range args {
		if _, ok := properties[name]; !ok {
			return fmt.Errorf("%w: unknown argument %q", ErrInvalidArguments, name)
		}
	}

	if required, ok := schema["required"].([]string); ok {
		for _, name := range required {
			if _, present := args[name]; !present {
				return fmt.Errorf("%w: missing required argument %q", ErrInvalidArguments, name)
			}
		}
	}

	for name, raw := range args {
		prop, _ := properties[name].(map[string]interface{})
		if prop == nil {
			continue
		}
		if err := validateProperty(name, prop, raw); err != nil {
			return err
		}
	}
	return nil
}

func validateProperty(name string, prop map[string]interface{}, raw interface{}) error {
	if raw == nil {
		return fmt.Errorf("%w: argument %q is null", ErrInvalidArguments, name)
	}

	propType, _ := prop["type"].(string)
	switch propType {
	case "integer":
		n, ok := asFloat(raw)
		if !ok || n != math.Trunc(n) {
			return fmt.Errorf("%w: argument %q must be an integer", ErrInvalidArguments, name)
		}
		return validateBounds(name, prop, n)

	case "number":
		n, ok := asFloat(raw)
		if !ok {
			return fmt.Errorf("%w: argument %q must be a number", ErrInvalidArguments, name)
		}
		return validateBounds(name, prop, n)

	case "string":
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("%w: argument %q must be a string", ErrInvalidArguments, name)
		}
		if format, _ := prop["format"].(string); format == "date" {
			if _, err := time.Parse("2006-01-02", s); err != nil {
				return fmt.Errorf("%w: argument %q must be an ISO date (YYYY-MM-DD)", ErrInvalidArguments, name)
			}
		}
		if enum, ok := prop["enum"].([]string); ok {
			for _, allowed := range enum {
				if s == allowed {
					return nil
				}
			}
			return fmt.Errorf("%w: argument %q must be one of %v", ErrInvalidArguments, name, enum)
		}
		return nil

	case "array":
		items, ok := raw.([]interface{})
		if !ok {
			// Pre-decoded string slices arrive from internal callers
			if _, ok := raw.([]string); ok {
				return nil
			}
			return fmt.Errorf("%w: argument %q must be an array", ErrInvalidArguments, name)
		}
		itemProp, _ := prop["items"].(map[string]interface{})
		for i, item := range items {
			if itemProp != nil {
				if err := validateProperty(fmt.Sprintf("%s[%d]", name, i), itemProp, item); err != nil {
					return err
				}
			}
		}
		return nil

	default:
		return nil
	}
}

func validateBounds(name string, prop map[string]interface{}, n float64) error {
	if min, ok := asFloat(prop["minimum"]); ok && n < min {
		return fmt.Errorf("%w: argument %q below minimum %v", ErrInvalidArguments, name, min)
	}
	if max, ok := asFloat(prop["maximum"]); ok && n > max {
		return fmt.Errorf("%w: argument %q above maximum %v", ErrInvalidArguments, name, max)
	}
	return nil
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
