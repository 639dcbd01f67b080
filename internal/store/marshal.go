package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/vecgrid/internal/ir"
)

// marshalValue converts a value to canonical JSON TEXT for storage, so
// identical writes always store identical text.
func marshalValue(v ir.Value) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

func marshalIndexes(indexes []int) (string, error) {
	if len(indexes) == 0 {
		return "[]", nil
	}
	data, err := ir.MarshalCanonical(indexes)
	if err != nil {
		return "", fmt.Errorf("marshal indexes: %w", err)
	}
	return string(data), nil
}

func unmarshalIndexes(data string) ([]int, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var out []int
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal indexes: %w", err)
	}
	return out, nil
}
