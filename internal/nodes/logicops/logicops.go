// Package logicops implements the logic node kinds: compare, branch, the
// boolean gates (AND/OR/XOR/NAND/NOR), NOT, gate, merge, range-check, and
// switch.
package logicops

import (
	"context"
	"math"

	"github.com/flowrt/flowrt/internal/expr"
	"github.com/flowrt/flowrt/internal/flow"
	"github.com/flowrt/flowrt/internal/node"
	"github.com/flowrt/flowrt/internal/nodes/nodeutil"
	"github.com/flowrt/flowrt/internal/registry"
)

const epsilon = 1e-4

func inPort() []flow.Port {
	return []flow.Port{{Name: flow.PortInput, Direction: flow.DirectionInput}}
}

// Install registers every logic node kind.
func Install(reg *registry.Registry) {
	reg.Register(flow.Descriptor{
		Type: "logic.compare", Category: "logic", Label: "Compare",
		InputPorts:  inPort(),
		OutputPorts: []flow.Port{{Name: flow.PortOutput, Direction: flow.DirectionOutput}},
		NewConfig:   func() interface{} { return &compareConfig{} },
	}, func() node.Runtime { return &compare{} })

	reg.Register(flow.Descriptor{
		Type: "logic.branch", Category: "logic", Label: "Branch",
		InputPorts: inPort(),
		OutputPorts: []flow.Port{
			{Name: "true", Direction: flow.DirectionOutput},
			{Name: "false", Direction: flow.DirectionOutput},
		},
	}, func() node.Runtime { return &branch{} })

	for _, kind := range []string{"and", "or", "xor", "nand", "nor"} {
		k := kind
		reg.Register(flow.Descriptor{
			Type: "logic." + k, Category: "logic", Label: k,
			InputPorts: []flow.Port{
				{Name: "a", Direction: flow.DirectionInput},
				{Name: "b", Direction: flow.DirectionInput},
			},
			OutputPorts: []flow.Port{{Name: flow.PortOutput, Direction: flow.DirectionOutput}},
		}, func() node.Runtime { return &gate2{kind: k} })
	}

	reg.Register(flow.Descriptor{
		Type: "logic.not", Category: "logic", Label: "NOT",
		InputPorts:  []flow.Port{{Name: "a", Direction: flow.DirectionInput}},
		OutputPorts: []flow.Port{{Name: flow.PortOutput, Direction: flow.DirectionOutput}},
	}, func() node.Runtime { return &not{} })

	reg.Register(flow.Descriptor{
		Type: "logic.gate", Category: "logic", Label: "Gate",
		InputPorts: []flow.Port{
			{Name: "data", Direction: flow.DirectionInput},
			{Name: "condition", Direction: flow.DirectionInput},
		},
		OutputPorts: []flow.Port{{Name: flow.PortOutput, Direction: flow.DirectionOutput}},
	}, func() node.Runtime { return &gateNode{} })

	reg.Register(flow.Descriptor{
		Type: "logic.merge", Category: "logic", Label: "Merge",
		InputPorts: []flow.Port{
			{Name: "a", Direction: flow.DirectionInput},
			{Name: "b", Direction: flow.DirectionInput},
		},
		OutputPorts: []flow.Port{{Name: flow.PortOutput, Direction: flow.DirectionOutput}},
	}, func() node.Runtime { return &merge{} })

	reg.Register(flow.Descriptor{
		Type: "logic.range_check", Category: "logic", Label: "Range Check",
		InputPorts:  inPort(),
		OutputPorts: []flow.Port{{Name: flow.PortOutput, Direction: flow.DirectionOutput}},
	}, func() node.Runtime { return &rangeCheck{} })

	reg.Register(flow.Descriptor{
		Type: "logic.switch", Category: "logic", Label: "Switch",
		InputPorts: inPort(),
		OutputPorts: []flow.Port{
			{Name: "output1", Direction: flow.DirectionOutput},
			{Name: "output2", Direction: flow.DirectionOutput},
			{Name: "default", Direction: flow.DirectionOutput},
		},
	}, func() node.Runtime { return &switchNode{} })

	reg.Register(flow.Descriptor{
		Type: "logic.expression", Category: "logic", Label: "Expression",
		InputPorts: inPort(),
		OutputPorts: []flow.Port{
			{Name: "true", Direction: flow.DirectionOutput},
			{Name: "false", Direction: flow.DirectionOutput},
			{Name: flow.PortError, Direction: flow.DirectionOutput},
		},
	}, func() node.Runtime { return &expression{evaluator: expr.New()} })
}

// expression evaluates a user-authored CEL boolean expression against the
// payload for branch conditions too irregular for the fixed operator set
// compare/range-check/switch cover — arbitrary field combinations, string
// matching, nested lookups. Compiled programs are cached by source text
// across activations of this instance.
type expression struct {
	evaluator *expr.Evaluator
}

func (e *expression) Execute(ctx context.Context, rc *node.Context) error {
	source := nodeutil.ConfigString(rc.Config, "expression", "")
	if source == "" {
		rc.Logger.Warn("logic expression: missing expression config")
		rc.Emit(flow.PortError, map[string]interface{}{"error": "missing expression config"})
		return nil
	}

	var sharedVars map[string]interface{}
	if rc.Shared != nil {
		sharedVars = map[string]interface{}{}
	}

	result, err := e.evaluator.EvalBool(source, rc.Message.Payload, sharedVars)
	if err != nil {
		rc.Logger.Warn("logic expression: evaluation failed", "error", err)
		rc.Emit(flow.PortError, map[string]interface{}{"error": err.Error()})
		return nil
	}

	if result {
		rc.Emit("true", rc.Message.Payload)
	} else {
		rc.Emit("false", rc.Message.Payload)
	}
	return nil
}

func evalOp(op string, a, b float64) bool {
	switch op {
	case "eq":
		return math.Abs(a-b) <= epsilon
	case "neq":
		return math.Abs(a-b) > epsilon
	case "gt":
		return a > b
	case "gte":
		return a >= b
	case "lt":
		return a < b
	case "lte":
		return a <= b
	default:
		return false
	}
}

// compareConfig is the strict schema for logic.compare: operator, if
// given, must be one of the fixed set evalOp understands. Declared as a
// NewConfig factory so the compiler validates it up front instead of
// silently falling through evalOp's default case at every activation.
type compareConfig struct {
	Property  string  `json:"property"`
	Operator  string  `json:"operator" validate:"omitempty,oneof=eq neq gt gte lt lte"`
	Threshold float64 `json:"threshold"`
}

type compare struct{}

func (c *compare) Execute(ctx context.Context, rc *node.Context) error {
	prop := nodeutil.ConfigString(rc.Config, "property", "value")
	op := nodeutil.ConfigString(rc.Config, "operator", "eq")
	threshold := nodeutil.ConfigFloat(rc.Config, "threshold", 0)

	v := nodeutil.ExtractNumeric(rc.Message.Payload, prop)
	rc.Emit(flow.PortOutput, map[string]interface{}{"value": evalOp(op, v, threshold)})
	return nil
}

type branch struct{}

func (b *branch) Execute(ctx context.Context, rc *node.Context) error {
	mode := nodeutil.ConfigString(rc.Config, "mode", "truthy")
	prop := nodeutil.ConfigString(rc.Config, "property", "value")
	v, _ := nodeutil.ExtractProperty(rc.Message.Payload, prop)

	var result bool
	switch mode {
	case "equals":
		result = v == rc.Config["value"]
	case "greater":
		n, _ := nodeutil.Numeric(v)
		result = n > nodeutil.ConfigFloat(rc.Config, "value", 0)
	case "less":
		n, _ := nodeutil.Numeric(v)
		result = n < nodeutil.ConfigFloat(rc.Config, "value", 0)
	default:
		result = nodeutil.Truthy(v)
	}

	if result {
		rc.Emit("true", rc.Message.Payload)
	} else {
		rc.Emit("false", rc.Message.Payload)
	}
	return nil
}

// gate2 implements AND/OR/XOR/NAND/NOR, keyed by the last-seen payload per
// input port. Before both inputs have been observed at least once, a
// missing port is treated as falsy.
type gate2 struct {
	kind    string
	lastA   interface{}
	lastB   interface{}
	haveA   bool
	haveB   bool
}

func (g *gate2) Execute(ctx context.Context, rc *node.Context) error {
	switch rc.InputPort {
	case "a":
		g.lastA = rc.Message.Payload
		g.haveA = true
	case "b":
		g.lastB = rc.Message.Payload
		g.haveB = true
	}

	a := g.haveA && nodeutil.Truthy(g.lastA)
	b := g.haveB && nodeutil.Truthy(g.lastB)

	var result bool
	switch g.kind {
	case "and":
		result = a && b
	case "or":
		result = a || b
	case "xor":
		result = a != b
	case "nand":
		result = !(a && b)
	case "nor":
		result = !(a || b)
	}

	rc.Emit(flow.PortOutput, map[string]interface{}{"value": result})
	return nil
}

type not struct{}

func (n *not) Execute(ctx context.Context, rc *node.Context) error {
	v, _ := nodeutil.ExtractProperty(rc.Message.Payload, "value")
	rc.Emit(flow.PortOutput, map[string]interface{}{"value": !nodeutil.Truthy(v)})
	return nil
}

// gateNode passes the latest data value whenever the condition is truthy;
// when false, either suppresses or re-emits the last data value, per mode.
type gateNode struct {
	lastData    interface{}
	haveData    bool
	lastCond    bool
}

func (g *gateNode) Execute(ctx context.Context, rc *node.Context) error {
	switch rc.InputPort {
	case "condition":
		g.lastCond = nodeutil.Truthy(rc.Message.Payload)
		return nil
	case "data":
		g.lastData = rc.Message.Payload
		g.haveData = true
	}

	if g.lastCond {
		rc.Emit(flow.PortOutput, g.lastData)
		return nil
	}

	mode := nodeutil.ConfigString(rc.Config, "mode", "null")
	if mode == "previous" && g.haveData {
		rc.Emit(flow.PortOutput, g.lastData)
	}
	return nil
}

// merge tracks the last value seen on each input port and combines them
// per strategy whenever either port fires.
type merge struct {
	lastA, lastB   float64
	haveA, haveB   bool
}

func (m *merge) Execute(ctx context.Context, rc *node.Context) error {
	v := nodeutil.ExtractNumeric(rc.Message.Payload, "value")
	switch rc.InputPort {
	case "a":
		m.lastA, m.haveA = v, true
	case "b":
		m.lastB, m.haveB = v, true
	}

	strategy := nodeutil.ConfigString(rc.Config, "strategy", "latest")
	var result float64
	switch strategy {
	case "first-valid":
		if m.haveA {
			result = m.lastA
		} else if m.haveB {
			result = m.lastB
		}
	case "min":
		result = math.Min(m.lastA, m.lastB)
	case "max":
		result = math.Max(m.lastA, m.lastB)
	case "average":
		result = (m.lastA + m.lastB) / 2
	case "sum":
		result = m.lastA + m.lastB
	default: // latest
		result = v
	}

	rc.Emit(flow.PortOutput, map[string]interface{}{"value": result})
	return nil
}

type rangeCheck struct{}

func (r *rangeCheck) Execute(ctx context.Context, rc *node.Context) error {
	prop := nodeutil.ConfigString(rc.Config, "property", "value")
	v := nodeutil.ExtractNumeric(rc.Message.Payload, prop)

	min := nodeutil.ConfigFloat(rc.Config, "min", 0)
	max := nodeutil.ConfigFloat(rc.Config, "max", 0)
	minExclusive := nodeutil.ConfigBool(rc.Config, "min_exclusive", false)
	maxExclusive := nodeutil.ConfigBool(rc.Config, "max_exclusive", false)

	inRange := true
	if minExclusive {
		inRange = inRange && v > min
	} else {
		inRange = inRange && v >= min
	}
	if maxExclusive {
		inRange = inRange && v < max
	} else {
		inRange = inRange && v <= max
	}

	rc.Emit(flow.PortOutput, map[string]interface{}{"value": inRange})
	return nil
}

type switchNode struct{}

func (s *switchNode) Execute(ctx context.Context, rc *node.Context) error {
	prop := nodeutil.ConfigString(rc.Config, "property", "value")
	v := nodeutil.ExtractNumeric(rc.Message.Payload, prop)

	op1 := nodeutil.ConfigString(rc.Config, "rule1_operator", "eq")
	val1 := nodeutil.ConfigFloat(rc.Config, "rule1_value", 0)
	op2 := nodeutil.ConfigString(rc.Config, "rule2_operator", "eq")
	val2 := nodeutil.ConfigFloat(rc.Config, "rule2_value", 0)

	switch {
	case evalOp(op1, v, val1):
		rc.Emit("output1", rc.Message.Payload)
	case evalOp(op2, v, val2):
		rc.Emit("output2", rc.Message.Payload)
	default:
		rc.Emit("default", rc.Message.Payload)
	}
	return nil
}
