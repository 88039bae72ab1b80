// Package mathops implements the numeric node kinds: add, subtract,
// multiply, divide, scale, clamp, and round. All extract a named property
// (default "value") from the payload; non-numeric input coerces to 0.
package mathops

import (
	"math"

	"context"

	"github.com/flowrt/flowrt/internal/flow"
	"github.com/flowrt/flowrt/internal/node"
	"github.com/flowrt/flowrt/internal/nodes/nodeutil"
	"github.com/flowrt/flowrt/internal/registry"
)

func outPort() []flow.Port {
	return []flow.Port{{Name: flow.PortOutput, Direction: flow.DirectionOutput}}
}

func inPort() []flow.Port {
	return []flow.Port{{Name: flow.PortInput, Direction: flow.DirectionInput}}
}

// Install registers every math node kind.
func Install(reg *registry.Registry) {
	reg.Register(flow.Descriptor{Type: "math.add", Category: "math", Label: "Add", InputPorts: inPort(), OutputPorts: outPort()},
		func() node.Runtime { return &binaryOp{op: func(a, b float64) float64 { return a + b }} })
	reg.Register(flow.Descriptor{Type: "math.subtract", Category: "math", Label: "Subtract", InputPorts: inPort(), OutputPorts: outPort()},
		func() node.Runtime { return &binaryOp{op: func(a, b float64) float64 { return a - b }} })
	reg.Register(flow.Descriptor{Type: "math.multiply", Category: "math", Label: "Multiply", InputPorts: inPort(), OutputPorts: outPort()},
		func() node.Runtime { return &binaryOp{op: func(a, b float64) float64 { return a * b }} })
	reg.Register(flow.Descriptor{Type: "math.divide", Category: "math", Label: "Divide", InputPorts: inPort(), OutputPorts: outPort()},
		func() node.Runtime { return &divide{} })
	reg.Register(flow.Descriptor{Type: "math.scale", Category: "math", Label: "Scale", InputPorts: inPort(), OutputPorts: outPort()},
		func() node.Runtime { return &scale{} })
	reg.Register(flow.Descriptor{Type: "math.clamp", Category: "math", Label: "Clamp", InputPorts: inPort(), OutputPorts: outPort()},
		func() node.Runtime { return &clamp{} })
	reg.Register(flow.Descriptor{Type: "math.round", Category: "math", Label: "Round", InputPorts: inPort(), OutputPorts: outPort()},
		func() node.Runtime { return &round{} })
}

func inputValue(rc *node.Context) float64 {
	prop := nodeutil.ConfigString(rc.Config, "property", "value")
	return nodeutil.ExtractNumeric(rc.Message.Payload, prop)
}

// binaryOp applies op(inputValue, operand) where operand comes from config.
type binaryOp struct {
	op func(a, b float64) float64
}

func (b *binaryOp) Execute(ctx context.Context, rc *node.Context) error {
	operand := nodeutil.ConfigFloat(rc.Config, "operand", 0)
	result := b.op(inputValue(rc), operand)
	rc.Emit(flow.PortOutput, map[string]interface{}{"value": result})
	return nil
}

type divide struct{}

func (d *divide) Execute(ctx context.Context, rc *node.Context) error {
	operand := nodeutil.ConfigFloat(rc.Config, "operand", 1)
	if operand == 0 {
		rc.Logger.Warn("divide by zero, substituting divisor 1")
		operand = 1
	}
	result := inputValue(rc) / operand
	rc.Emit(flow.PortOutput, map[string]interface{}{"value": result})
	return nil
}

// scale linearly maps [in_min, in_max] to [out_min, out_max], optionally
// clamping the result to the output range.
type scale struct{}

func (s *scale) Execute(ctx context.Context, rc *node.Context) error {
	inMin := nodeutil.ConfigFloat(rc.Config, "in_min", 0)
	inMax := nodeutil.ConfigFloat(rc.Config, "in_max", 100)
	outMin := nodeutil.ConfigFloat(rc.Config, "out_min", 0)
	outMax := nodeutil.ConfigFloat(rc.Config, "out_max", 100)

	v := inputValue(rc)
	var result float64
	if inMax == inMin {
		result = outMin
	} else {
		ratio := (v - inMin) / (inMax - inMin)
		result = outMin + ratio*(outMax-outMin)
	}

	if nodeutil.ConfigBool(rc.Config, "clamp", false) {
		lo, hi := outMin, outMax
		if lo > hi {
			lo, hi = hi, lo
		}
		result = math.Max(lo, math.Min(hi, result))
	}

	rc.Emit(flow.PortOutput, map[string]interface{}{"value": result})
	return nil
}

type clamp struct{}

func (c *clamp) Execute(ctx context.Context, rc *node.Context) error {
	min := nodeutil.ConfigFloat(rc.Config, "min", 0)
	max := nodeutil.ConfigFloat(rc.Config, "max", 100)
	v := inputValue(rc)
	result := math.Max(min, math.Min(max, v))
	rc.Emit(flow.PortOutput, map[string]interface{}{"value": result})
	return nil
}

type round struct{}

func (r *round) Execute(ctx context.Context, rc *node.Context) error {
	mode := nodeutil.ConfigString(rc.Config, "mode", "round")
	precision := nodeutil.ConfigInt(rc.Config, "precision", 0)
	factor := math.Pow(10, float64(precision))

	v := inputValue(rc) * factor
	var result float64
	switch mode {
	case "floor":
		result = math.Floor(v)
	case "ceil":
		result = math.Ceil(v)
	case "truncate":
		result = math.Trunc(v)
	default:
		result = math.Round(v)
	}
	result /= factor

	rc.Emit(flow.PortOutput, map[string]interface{}{"value": result})
	return nil
}
