// Package control implements the control-flow and utility node kinds:
// delay, filter, constant, comment, link-in/link-out tunnels, and template.
package control

import (
	"context"
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

// Install registers every control/utility node kind.
func Install(reg *registry.Registry) {
	in, out := io()

	reg.Register(flow.Descriptor{Type: "control.delay", Category: "control", Label: "Delay", InputPorts: in, OutputPorts: out},
		func() node.Runtime { return &delay{} })
	reg.Register(flow.Descriptor{Type: "control.filter", Category: "control", Label: "Filter", InputPorts: in, OutputPorts: out},
		func() node.Runtime { return &filter{} })
	reg.Register(flow.Descriptor{Type: "control.constant", Category: "control", Label: "Constant", InputPorts: in, OutputPorts: out},
		func() node.Runtime { return &constant{} })
	reg.Register(flow.Descriptor{Type: "control.comment", Category: "control", Label: "Comment"},
		func() node.Runtime { return &comment{} })
	reg.Register(flow.Descriptor{Type: flow.NodeTypeLinkIn, Category: "control", Label: "Link In", InputPorts: in, OutputPorts: out},
		func() node.Runtime { return &linkPass{} })
	reg.Register(flow.Descriptor{Type: flow.NodeTypeLinkOut, Category: "control", Label: "Link Out", InputPorts: in, OutputPorts: out},
		func() node.Runtime { return &linkPass{} })
	reg.Register(flow.Descriptor{Type: "control.template", Category: "control", Label: "Template", InputPorts: in, OutputPorts: out},
		func() node.Runtime { return &templateNode{} })
}

const maxDelayMS = 60000

// delay suspends the activation for a configured number of milliseconds,
// clamped to [0, 60000], and returns early if the run is cancelled or times
// out while waiting.
type delay struct{}

func (d *delay) Execute(ctx context.Context, rc *node.Context) error {
	ms := nodeutil.ConfigFloat(rc.Config, "duration_ms", 0)
	if ms < 0 {
		ms = 0
	}
	if ms > maxDelayMS {
		ms = maxDelayMS
	}

	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	rc.Emit(flow.PortOutput, rc.Message.Payload)
	return nil
}

// filter implements changed/non-zero/valid predicates, owning the state a
// "changed" predicate needs to compare against.
type filter struct {
	hasLast bool
	last    interface{}
}

func (f *filter) Execute(ctx context.Context, rc *node.Context) error {
	predicate := nodeutil.ConfigString(rc.Config, "predicate", "changed")
	v, _ := nodeutil.ExtractProperty(rc.Message.Payload, "value")

	var pass bool
	switch predicate {
	case "non-zero":
		n, _ := nodeutil.Numeric(v)
		pass = n != 0
	case "valid":
		pass = v != nil
	default: // changed
		pass = !f.hasLast || v != f.last
		f.hasLast = true
		f.last = v
	}

	if pass {
		rc.Emit(flow.PortOutput, rc.Message.Payload)
	}
	return nil
}

// constant emits a configured typed literal, ignoring the inbound payload.
type constant struct{}

func (c *constant) Execute(ctx context.Context, rc *node.Context) error {
	rc.Emit(flow.PortOutput, map[string]interface{}{"value": rc.Config["value"]})
	return nil
}

// comment is a graph-only annotation; it never executes within a run, but
// still needs a registered runtime so a flow referencing it compiles.
type comment struct{}

func (c *comment) Execute(ctx context.Context, rc *node.Context) error {
	return nil
}

// linkPass is the runtime shared by link-in and link-out. Tunnel routing
// between a named pair is resolved by the compiler rewriting wires around
// them at compile time; at execution time a link node is a plain pass-
// through in case any survive into the plan unrewired.
type linkPass struct{}

func (l *linkPass) Execute(ctx context.Context, rc *node.Context) error {
	rc.Emit(flow.PortOutput, rc.Message.Payload)
	return nil
}

// templateNode renders a "{{key}}" template against the inbound payload,
// emitting either plain text or a parsed JSON document.
type templateNode struct{}

func (t *templateNode) Execute(ctx context.Context, rc *node.Context) error {
	tmpl := nodeutil.ConfigString(rc.Config, "template", "")
	rendered := nodeutil.RenderTemplate(tmpl, rc.Message.Payload)

	if nodeutil.ConfigString(rc.Config, "output_format", "text") == "json" {
		parsed, err := jsonpath.Parse(rendered)
		if err != nil {
			rc.Logger.Warn("template: rendered output is not valid JSON", "error", err)
			rc.Emit(flow.PortOutput, map[string]interface{}{"value": rendered})
			return nil
		}
		rc.Emit(flow.PortOutput, map[string]interface{}{"value": parsed})
		return nil
	}

	rc.Emit(flow.PortOutput, map[string]interface{}{"value": rendered})
	return nil
}
