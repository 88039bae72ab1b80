// Package nodeutil holds small helpers shared across node runtime
// implementations: numeric coercion, truthiness, and payload templating.
package nodeutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flowrt/flowrt/internal/jsonpath"
)

// AsMap returns payload as a map if it is one, or an empty map otherwise.
func AsMap(payload interface{}) map[string]interface{} {
	if m, ok := payload.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

// ExtractProperty returns payload[prop] if payload is an object and the
// property exists, otherwise payload itself when prop is "value" or empty
// (so scalar payloads work with nodes whose config names a "value" field
// by default).
func ExtractProperty(payload interface{}, prop string) (interface{}, bool) {
	if prop == "" {
		prop = "value"
	}
	if m, ok := payload.(map[string]interface{}); ok {
		if v, ok := m[prop]; ok {
			return v, true
		}
		return nil, false
	}
	if prop == "value" {
		return payload, true
	}
	return nil, false
}

// Numeric coerces a value into a float64. Non-numeric input yields (0,
// false) — callers that must tolerate bad input per the spec's "non
// numeric inputs yield 0" rule should ignore the bool.
func Numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// ExtractNumeric extracts prop from payload and coerces it to float64,
// defaulting to 0 for non-numeric or missing values.
func ExtractNumeric(payload interface{}, prop string) float64 {
	v, ok := ExtractProperty(payload, prop)
	if !ok {
		return 0
	}
	n, _ := Numeric(v)
	return n
}

// Truthy applies JavaScript-like truthiness rules to an arbitrary value.
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case map[string]interface{}:
		return true
	case []interface{}:
		return len(t) > 0
	default:
		return true
	}
}

// ConfigString reads a string property from a node config map.
func ConfigString(cfg map[string]interface{}, key, def string) string {
	if cfg == nil {
		return def
	}
	if v, ok := cfg[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// ConfigFloat reads a numeric property from a node config map.
func ConfigFloat(cfg map[string]interface{}, key string, def float64) float64 {
	if cfg == nil {
		return def
	}
	if v, ok := cfg[key]; ok {
		if f, ok := Numeric(v); ok {
			return f
		}
	}
	return def
}

// ConfigBool reads a bool property from a node config map.
func ConfigBool(cfg map[string]interface{}, key string, def bool) bool {
	if cfg == nil {
		return def
	}
	if v, ok := cfg[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// ConfigInt reads an int property from a node config map.
func ConfigInt(cfg map[string]interface{}, key string, def int) int {
	return int(ConfigFloat(cfg, key, float64(def)))
}

// RenderTemplate substitutes every "{{dotted.path}}" token in tmpl with the
// stringified value resolved from payload via jsonpath, leaving unresolved
// tokens untouched.
func RenderTemplate(tmpl string, payload interface{}) string {
	var out strings.Builder
	i := 0
	for i < len(tmpl) {
		start := strings.Index(tmpl[i:], "{{")
		if start == -1 {
			out.WriteString(tmpl[i:])
			break
		}
		start += i
		out.WriteString(tmpl[i:start])

		end := strings.Index(tmpl[start:], "}}")
		if end == -1 {
			out.WriteString(tmpl[start:])
			break
		}
		end += start

		key := strings.TrimSpace(tmpl[start+2 : end])
		value, ok, err := jsonpath.Get(payload, key)
		if err != nil || !ok {
			out.WriteString(tmpl[start : end+2])
		} else {
			out.WriteString(stringify(value))
		}
		i = end + 2
	}
	return out.String()
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
