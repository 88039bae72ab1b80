// Package dataops implements the data transform node kinds: smooth,
// aggregate, deadband, rate-of-change, timeline, type convert, string ops,
// array ops, and JSON ops.
package dataops

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/flowrt/flowrt/internal/flow"
	"github.com/flowrt/flowrt/internal/jsonpath"
	"github.com/flowrt/flowrt/internal/node"
	"github.com/flowrt/flowrt/internal/nodes/nodeutil"
	"github.com/flowrt/flowrt/internal/registry"
)

func io() ([]flow.Port, []flow.Port) {
	return []flow.Port{{Name: flow.PortInput, Direction: flow.DirectionInput}},
		[]flow.Port{{Name: flow.PortOutput, Direction: flow.DirectionOutput}}
}

// Install registers every data transform node kind.
func Install(reg *registry.Registry) {
	in, out := io()

	reg.Register(flow.Descriptor{Type: "data.smooth", Category: "data", Label: "Smooth", InputPorts: in, OutputPorts: out},
		func() node.Runtime { return &smooth{} })
	reg.Register(flow.Descriptor{Type: "data.aggregate", Category: "data", Label: "Aggregate", InputPorts: in, OutputPorts: out},
		func() node.Runtime { return &aggregate{} })
	reg.Register(flow.Descriptor{
		Type: "data.deadband", Category: "data", Label: "Deadband", InputPorts: in,
		OutputPorts: []flow.Port{{Name: flow.PortOutput, Direction: flow.DirectionOutput}, {Name: "suppressed", Direction: flow.DirectionOutput}},
	}, func() node.Runtime { return &deadband{} })
	reg.Register(flow.Descriptor{Type: "data.rate_of_change", Category: "data", Label: "Rate of Change", InputPorts: in, OutputPorts: out},
		func() node.Runtime { return &rateOfChange{} })
	reg.Register(flow.Descriptor{
		Type: "data.timeline", Category: "data", Label: "Timeline", InputPorts: in,
		OutputPorts: []flow.Port{{Name: flow.PortOutput, Direction: flow.DirectionOutput}, {Name: "buffer", Direction: flow.DirectionOutput}},
	}, func() node.Runtime { return &timeline{} })
	reg.Register(flow.Descriptor{Type: "data.type_convert", Category: "data", Label: "Type Convert", InputPorts: in, OutputPorts: out},
		func() node.Runtime { return &typeConvert{} })
	reg.Register(flow.Descriptor{Type: "data.string_ops", Category: "data", Label: "String Ops", InputPorts: in, OutputPorts: out},
		func() node.Runtime { return &stringOps{} })
	reg.Register(flow.Descriptor{Type: "data.array_ops", Category: "data", Label: "Array Ops", InputPorts: in, OutputPorts: out},
		func() node.Runtime { return &arrayOps{} })
	reg.Register(flow.Descriptor{Type: "data.json_ops", Category: "data", Label: "JSON Ops", InputPorts: in, OutputPorts: out},
		func() node.Runtime { return &jsonOps{} })
}

// smooth implements EMA, SMA, and median filtering, each owning its own
// private rolling state.
type smooth struct {
	emaValue float64
	emaSet   bool
	window   []float64
}

func (s *smooth) Execute(ctx context.Context, rc *node.Context) error {
	v := nodeutil.ExtractNumeric(rc.Message.Payload, "value")
	mode := nodeutil.ConfigString(rc.Config, "mode", "ema")

	var result float64
	switch mode {
	case "sma":
		n := nodeutil.ConfigInt(rc.Config, "window", 5)
		if n < 2 {
			n = 2
		}
		s.window = append(s.window, v)
		if len(s.window) > n {
			s.window = s.window[len(s.window)-n:]
		}
		sum := 0.0
		for _, x := range s.window {
			sum += x
		}
		result = sum / float64(len(s.window))
	case "median":
		n := nodeutil.ConfigInt(rc.Config, "window", 3)
		if n < 3 {
			n = 3
		}
		if n%2 == 0 {
			n++
		}
		s.window = append(s.window, v)
		if len(s.window) > n {
			s.window = s.window[len(s.window)-n:]
		}
		sorted := append([]float64(nil), s.window...)
		sort.Float64s(sorted)
		result = sorted[len(sorted)/2]
	default: // ema
		alpha := nodeutil.ConfigFloat(rc.Config, "factor", 0.2)
		if alpha < 0.01 {
			alpha = 0.01
		}
		if alpha > 1 {
			alpha = 1
		}
		if !s.emaSet {
			s.emaValue = v
			s.emaSet = true
		} else {
			s.emaValue = alpha*v + (1-alpha)*s.emaValue
		}
		result = s.emaValue
	}

	rc.Emit(flow.PortOutput, map[string]interface{}{"value": result})
	return nil
}

// aggregate reduces a rolling window with avg/sum/min/max/count.
type aggregate struct {
	window []float64
}

func (a *aggregate) Execute(ctx context.Context, rc *node.Context) error {
	v := nodeutil.ExtractNumeric(rc.Message.Payload, "value")
	n := nodeutil.ConfigInt(rc.Config, "window", 10)
	if n < 1 {
		n = 1
	}

	a.window = append(a.window, v)
	if len(a.window) > n {
		a.window = a.window[len(a.window)-n:]
	}

	fn := nodeutil.ConfigString(rc.Config, "function", "avg")
	var result float64
	switch fn {
	case "sum":
		for _, x := range a.window {
			result += x
		}
	case "min":
		result = a.window[0]
		for _, x := range a.window {
			result = math.Min(result, x)
		}
	case "max":
		result = a.window[0]
		for _, x := range a.window {
			result = math.Max(result, x)
		}
	case "count":
		result = float64(len(a.window))
	default: // avg
		sum := 0.0
		for _, x := range a.window {
			sum += x
		}
		result = sum / float64(len(a.window))
	}

	rc.Emit(flow.PortOutput, map[string]interface{}{"value": result})
	return nil
}

// deadband emits only when the change since the last emitted value exceeds
// a threshold; the first sample always passes.
type deadband struct {
	hasLast   bool
	lastValue float64
}

func (d *deadband) Execute(ctx context.Context, rc *node.Context) error {
	v := nodeutil.ExtractNumeric(rc.Message.Payload, "value")

	if !d.hasLast {
		d.hasLast = true
		d.lastValue = v
		rc.Emit(flow.PortOutput, rc.Message.Payload)
		return nil
	}

	threshold := nodeutil.ConfigFloat(rc.Config, "threshold", 0)
	isPercent := nodeutil.ConfigBool(rc.Config, "percent", false)
	bound := threshold
	if isPercent {
		bound = math.Abs(d.lastValue) * threshold / 100
	}

	if math.Abs(v-d.lastValue) > bound {
		d.lastValue = v
		rc.Emit(flow.PortOutput, rc.Message.Payload)
		return nil
	}

	rc.Emit("suppressed", rc.Message.Payload)
	return nil
}

// rateOfChange computes the first derivative over elapsed wall-clock time.
type rateOfChange struct {
	hasLast   bool
	lastValue float64
	lastAt    time.Time
}

func (r *rateOfChange) Execute(ctx context.Context, rc *node.Context) error {
	v := nodeutil.ExtractNumeric(rc.Message.Payload, "value")
	now := rc.Now()

	if !r.hasLast {
		r.hasLast = true
		r.lastValue = v
		r.lastAt = now
		rc.Emit(flow.PortOutput, map[string]interface{}{"value": 0.0})
		return nil
	}

	elapsed := now.Sub(r.lastAt)
	if elapsed < time.Millisecond {
		return nil
	}

	unit := nodeutil.ConfigString(rc.Config, "unit", "second")
	var divisor float64
	switch unit {
	case "minute":
		divisor = elapsed.Minutes()
	case "hour":
		divisor = elapsed.Hours()
	default:
		divisor = elapsed.Seconds()
	}

	rate := (v - r.lastValue) / divisor
	r.lastValue = v
	r.lastAt = now

	rc.Emit(flow.PortOutput, map[string]interface{}{"value": rate})
	return nil
}

// timeline keeps a rolling buffer windowed by both entry count and age.
type timeline struct {
	entries []timelineEntry
}

type timelineEntry struct {
	at    time.Time
	value interface{}
}

func (t *timeline) Execute(ctx context.Context, rc *node.Context) error {
	now := rc.Now()
	maxEntries := nodeutil.ConfigInt(rc.Config, "max_entries", 100)
	windowMS := nodeutil.ConfigFloat(rc.Config, "window_ms", 60000)

	t.entries = append(t.entries, timelineEntry{at: now, value: rc.Message.Payload})

	cutoff := now.Add(-time.Duration(windowMS) * time.Millisecond)
	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.at.After(cutoff) {
			kept = append(kept, e)
		}
	}
	t.entries = kept
	if len(t.entries) > maxEntries {
		t.entries = t.entries[len(t.entries)-maxEntries:]
	}

	rc.Emit(flow.PortOutput, rc.Message.Payload)

	buffer := make([]interface{}, len(t.entries))
	for i, e := range t.entries {
		buffer[i] = map[string]interface{}{
			"timestamp": e.at.UTC().Format(time.RFC3339Nano),
			"value":     e.value,
		}
	}
	rc.Emit("buffer", buffer)
	return nil
}

// typeConvert coerces a property to a declared kind, applying an error
// policy when coercion fails.
type typeConvert struct{}

func (tc *typeConvert) Execute(ctx context.Context, rc *node.Context) error {
	prop := nodeutil.ConfigString(rc.Config, "property", "value")
	target := nodeutil.ConfigString(rc.Config, "target", "number")
	errorPolicy := nodeutil.ConfigString(rc.Config, "error_policy", "null")

	v, _ := nodeutil.ExtractProperty(rc.Message.Payload, prop)

	result, ok := convert(v, target)
	if !ok {
		switch errorPolicy {
		case "original":
			result = v
		case "default":
			result = rc.Config["default"]
		default:
			result = nil
		}
	}

	rc.Emit(flow.PortOutput, map[string]interface{}{"value": result})
	return nil
}

func convert(v interface{}, target string) (interface{}, bool) {
	switch target {
	case "number":
		return nodeutil.Numeric(v)
	case "string":
		switch s := v.(type) {
		case string:
			return s, true
		case nil:
			return "", true
		default:
			return strconv.FormatFloat(toFloat(v), 'f', -1, 64), true
		}
	case "boolean":
		return nodeutil.Truthy(v), true
	default:
		return v, true
	}
}

func toFloat(v interface{}) float64 {
	f, _ := nodeutil.Numeric(v)
	return f
}

// stringOps dispatches to one of the spec's string operations.
type stringOps struct{}

func (s *stringOps) Execute(ctx context.Context, rc *node.Context) error {
	prop := nodeutil.ConfigString(rc.Config, "property", "value")
	op := nodeutil.ConfigString(rc.Config, "operation", "upper")

	raw, _ := nodeutil.ExtractProperty(rc.Message.Payload, prop)
	str, _ := raw.(string)

	var result interface{}
	switch op {
	case "upper":
		result = strings.ToUpper(str)
	case "lower":
		result = strings.ToLower(str)
	case "trim":
		result = strings.TrimSpace(str)
	case "length":
		result = float64(len(str))
	case "contains":
		result = strings.Contains(str, nodeutil.ConfigString(rc.Config, "value", ""))
	case "replace":
		result = strings.ReplaceAll(str, nodeutil.ConfigString(rc.Config, "search", ""), nodeutil.ConfigString(rc.Config, "replacement", ""))
	case "substring":
		start := nodeutil.ConfigInt(rc.Config, "start", 0)
		end := nodeutil.ConfigInt(rc.Config, "end", len(str))
		result = safeSubstring(str, start, end)
	case "split":
		result = toInterfaceSlice(strings.Split(str, nodeutil.ConfigString(rc.Config, "separator", ",")))
	case "concat":
		result = str + nodeutil.ConfigString(rc.Config, "value", "")
	case "startsWith":
		result = strings.HasPrefix(str, nodeutil.ConfigString(rc.Config, "value", ""))
	case "endsWith":
		result = strings.HasSuffix(str, nodeutil.ConfigString(rc.Config, "value", ""))
	case "reverse":
		result = reverseString(str)
	default:
		result = str
	}

	rc.Emit(flow.PortOutput, map[string]interface{}{"value": result})
	return nil
}

func safeSubstring(s string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(s) {
		end = len(s)
	}
	if start >= end {
		return ""
	}
	return s[start:end]
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// arrayOps dispatches to one of the spec's array operations.
type arrayOps struct{}

func (a *arrayOps) Execute(ctx context.Context, rc *node.Context) error {
	prop := nodeutil.ConfigString(rc.Config, "property", "value")
	op := nodeutil.ConfigString(rc.Config, "operation", "length")

	raw, _ := nodeutil.ExtractProperty(rc.Message.Payload, prop)
	arr, _ := raw.([]interface{})

	var result interface{}
	switch op {
	case "element":
		idx := nodeutil.ConfigInt(rc.Config, "index", 0)
		if idx >= 0 && idx < len(arr) {
			result = arr[idx]
		}
	case "length":
		result = float64(len(arr))
	case "first":
		if len(arr) > 0 {
			result = arr[0]
		}
	case "last":
		if len(arr) > 0 {
			result = arr[len(arr)-1]
		}
	case "join":
		sep := nodeutil.ConfigString(rc.Config, "separator", ",")
		parts := make([]string, len(arr))
		for i, v := range arr {
			parts[i] = stringifyAny(v)
		}
		result = strings.Join(parts, sep)
	case "slice":
		start := nodeutil.ConfigInt(rc.Config, "start", 0)
		end := nodeutil.ConfigInt(rc.Config, "end", len(arr))
		if start < 0 {
			start = 0
		}
		if end > len(arr) {
			end = len(arr)
		}
		if start < end {
			result = arr[start:end]
		} else {
			result = []interface{}{}
		}
	case "includes":
		target := rc.Config["value"]
		found := false
		for _, v := range arr {
			if v == target {
				found = true
				break
			}
		}
		result = found
	case "indexOf":
		target := rc.Config["value"]
		idx := -1
		for i, v := range arr {
			if v == target {
				idx = i
				break
			}
		}
		result = float64(idx)
	}

	rc.Emit(flow.PortOutput, map[string]interface{}{"value": result})
	return nil
}

func stringifyAny(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return strconv.FormatFloat(toFloat(v), 'f', -1, 64)
}

// jsonOps dispatches to one of the spec's JSON operations via the module's
// dotted-path helper package.
type jsonOps struct{}

func (j *jsonOps) Execute(ctx context.Context, rc *node.Context) error {
	op := nodeutil.ConfigString(rc.Config, "operation", "get")
	path := nodeutil.ConfigString(rc.Config, "path", "")
	prop := nodeutil.ConfigString(rc.Config, "property", "value")

	raw, _ := nodeutil.ExtractProperty(rc.Message.Payload, prop)

	var result interface{}
	switch op {
	case "parse":
		if s, ok := raw.(string); ok {
			parsed, err := jsonpath.Parse(s)
			if err != nil {
				rc.Logger.Warn("json ops: parse failed", "error", err)
			} else {
				result = parsed
			}
		}
	case "stringify":
		s, err := jsonpath.Stringify(raw)
		if err != nil {
			rc.Logger.Warn("json ops: stringify failed", "error", err)
		} else {
			result = s
		}
	case "has":
		has, _ := jsonpath.Has(raw, path)
		result = has
	case "keys":
		result = toInterfaceSliceStrings(jsonpath.Keys(raw))
	case "values":
		result = jsonpath.Values(raw)
	default: // get
		value, ok, err := jsonpath.Get(raw, path)
		if err == nil && ok {
			result = value
		}
	}

	rc.Emit(flow.PortOutput, map[string]interface{}{"value": result})
	return nil
}

func toInterfaceSliceStrings(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
