package shop

import (
	"encoding/json"
	"fmt"
)

// Fields holds client-supplied JSON keys the server does not interpret.
// They are stored and returned verbatim next to the typed fields.
type Fields map[string]json.RawMessage

// mergeJSON encodes known and lays its keys over extra.
func mergeJSON(extra Fields, known interface{}) ([]byte, error) {
	data, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return data, nil
	}

	var typed map[string]json.RawMessage
	if err := json.Unmarshal(data, &typed); err != nil {
		return nil, err
	}
	merged := make(map[string]json.RawMessage, len(extra)+len(typed))
	for k, v := range extra {
		merged[k] = v
	}
	for k, v := range typed {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// splitJSON decodes data into known and returns the keys not in reserved.
func splitJSON(data []byte, known interface{}, reserved []string) (Fields, error) {
	if err := json.Unmarshal(data, known); err != nil {
		return nil, err
	}
	var all Fields
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range reserved {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// decodeFields parses a request body that must be a JSON object.
func decodeFields(body []byte) (Fields, error) {
	var f Fields
	if err := json.Unmarshal(body, &f); err != nil || f == nil {
		return nil, fmt.Errorf("body must be a JSON object: %w", ErrInvalidInput)
	}
	return f, nil
}

// drop removes keys and returns f, or nil once it is empty.
func (f Fields) drop(keys ...string) Fields {
	for _, k := range keys {
		delete(f, k)
	}
	if len(f) == 0 {
		return nil
	}
	return f
}

// str returns the string under key. Missing keys, null and non-strings
// read as "".
func (f Fields) str(key string) string {
	var v string
	if raw, ok := f[key]; ok {
		_ = json.Unmarshal(raw, &v)
	}
	return v
}
