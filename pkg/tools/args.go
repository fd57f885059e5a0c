// pkg/tools/args.go
package tools

import "encoding/json"

// IntArg reads a numeric argument as an int. JSON decoding produces
// float64, while in-process callers pass native Go integers; executors
// must accept both.
func IntArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
	}
	return 0, false
}

// FloatArg reads a numeric argument as a float64.
func FloatArg(args map[string]interface{}, key string) (float64, bool) {
	switch v := args[key].(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}
