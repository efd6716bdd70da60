package domain

import (
	"encoding/json"
	"fmt"
)

// Result keys of a compute answer.
const (
	KeyOutput = "Output"
	KeyError  = "Error"
)

// OutputText extracts the printable output of an eval answer. Output.data
// may be plain text or an object carrying an "output" field.
func OutputText(result map[string]any) string {
	out, ok := result[KeyOutput].(map[string]any)
	if !ok {
		return ""
	}
	switch data := out[KeyData].(type) {
	case nil:
		return ""
	case string:
		return data
	case map[string]any:
		if s, ok := data["output"].(string); ok {
			return s
		}
		return compact(data)
	default:
		return compact(data)
	}
}

// ResultError returns the error a process reported in its answer.
func ResultError(result map[string]any) string {
	switch e := result[KeyError].(type) {
	case nil:
		return ""
	case string:
		return e
	default:
		return compact(e)
	}
}

func compact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
