// Package jsonpath provides dotted-path access into JSON-shaped payloads.
// It backs the JSON ops node kind and the template instantiator's
// placeholder resolution.
package jsonpath

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Get extracts the value at a dotted path from an arbitrary JSON-shaped
// value. Returns ok=false if the path does not resolve.
func Get(value interface{}, path string) (interface{}, bool, error) {
	buf, err := json.Marshal(value)
	if err != nil {
		return nil, false, fmt.Errorf("marshal value: %w", err)
	}

	result := gjson.GetBytes(buf, path)
	if !result.Exists() {
		return nil, false, nil
	}
	return result.Value(), true, nil
}

// Has reports whether path resolves within value.
func Has(value interface{}, path string) (bool, error) {
	_, ok, err := Get(value, path)
	return ok, err
}

// Keys returns the top-level keys of value if it is a JSON object, or nil
// otherwise.
func Keys(value interface{}) []string {
	m, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// Values returns the top-level values of value if it is a JSON object, or
// nil otherwise. Order is not guaranteed.
func Values(value interface{}) []interface{} {
	m, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	vals := make([]interface{}, 0, len(m))
	for _, v := range m {
		vals = append(vals, v)
	}
	return vals
}

// Parse decodes a JSON string into a JSON-shaped value.
func Parse(s string) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return v, nil
}

// Stringify encodes a JSON-shaped value back to its string form.
func Stringify(value interface{}) (string, error) {
	buf, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("stringify JSON: %w", err)
	}
	return string(buf), nil
}
