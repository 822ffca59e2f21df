package textutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SafeBool converts loosely typed values to bool.
func SafeBool(v any, def bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "y", "on":
			return true
		default:
			return false
		}
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	default:
		return def
	}
}

// SafeInt converts loosely typed values to int.
func SafeInt(v any, def int) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		if f, err := t.Float64(); err == nil {
			return int(f)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i
		}
	}
	return def
}

// SafeFloat converts loosely typed values to float64.
func SafeFloat(v any, def float64) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return def
}

// ParseJSONSafe decodes s into a T. Blank input returns def and no error;
// invalid input returns def and the decode error so callers can log it.
func ParseJSONSafe[T any](s string, def T) (T, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	var out T
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return def, fmt.Errorf("parsing json: %w", err)
	}
	return out, nil
}
