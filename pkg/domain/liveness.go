package domain

import (
	"encoding/json"
	"strings"
)

// LivenessRecord is what the node answers for a process at one point in time.
// Its shape is opaque apart from the readiness signal.
type LivenessRecord map[string]any

// IsReady is the default readiness predicate. A "ready" key decides on its
// own; without it any non-empty record means the process is registered.
func (r LivenessRecord) IsReady() bool {
	if v, ok := r[KeyReady]; ok {
		return truthy(v)
	}
	return len(r) > 0
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	default:
		return false
	}
}
