package util

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MarshalJSON marshals a value to JSON and returns the bytes and any error.
//
// Example:
//
//	data, err := util.MarshalJSON(payload)
//	if err != nil {
//	    return fmt.Errorf("failed to marshal payload: %w", err)
//	}
func MarshalJSON(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("JSON marshal error: %w", err)
	}
	return data, nil
}

// UnmarshalJSON unmarshals JSON bytes into a value.
func UnmarshalJSON(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("JSON unmarshal error: %w", err)
	}
	return nil
}

// Normalize rewrites values that do not have a stable wire form: time.Time
// becomes an RFC 3339 string and BSON object ids become hex strings. Maps and
// slices are walked recursively and copied; the input is never mutated.
func Normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format(time.RFC3339)
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC().Format(time.RFC3339)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = Normalize(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	case map[string][]string:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = item
		}
		return out
	default:
		return v
	}
}

// MarshalNormalized normalizes a map payload and encodes it.
func MarshalNormalized(payload map[string]interface{}) ([]byte, error) {
	return MarshalJSON(Normalize(payload))
}
