// Package scriptnodes implements the two script node kinds. Both wrap the
// same sandboxed script host and differ only in the source-language surface
// presented to the flow designer; execution semantics are identical.
package scriptnodes

import (
	"context"

	"github.com/flowrt/flowrt/internal/flow"
	"github.com/flowrt/flowrt/internal/node"
	"github.com/flowrt/flowrt/internal/nodes/nodeutil"
	"github.com/flowrt/flowrt/internal/registry"
)

// Install registers both script node kinds.
func Install(reg *registry.Registry) {
	descIO := func(nodeType, label string) flow.Descriptor {
		return flow.Descriptor{
			Type:     nodeType,
			Category: "script",
			Label:    label,
			InputPorts: []flow.Port{
				{Name: flow.PortInput, Direction: flow.DirectionInput},
			},
			OutputPorts: []flow.Port{
				{Name: flow.PortOutput, Direction: flow.DirectionOutput},
				{Name: flow.PortError, Direction: flow.DirectionOutput},
			},
		}
	}

	reg.Register(descIO("script.inline", "Script"), func() node.Runtime { return &Script{} })
	reg.Register(descIO("script.expression", "Expression Script"), func() node.Runtime { return &Script{} })
}

// Script runs a configured source string through the shared script host on
// each activation, carrying a per-instance state map across activations.
type Script struct {
	state map[string]interface{}
}

func scriptInput(rc *node.Context) interface{} {
	prop := nodeutil.ConfigString(rc.Config, "input_property", "")
	if prop == "" {
		return rc.Message.Payload
	}
	v, ok := nodeutil.ExtractProperty(rc.Message.Payload, prop)
	if !ok {
		return rc.Message.Payload
	}
	return v
}

func (s *Script) Execute(ctx context.Context, rc *node.Context) error {
	source := nodeutil.ConfigString(rc.Config, "source", "")
	if source == "" {
		rc.Emit(flow.PortError, map[string]interface{}{"error": "missing source config"})
		return nil
	}

	if s.state == nil {
		s.state = make(map[string]interface{})
	}

	if rc.Script == nil {
		rc.Emit(flow.PortError, map[string]interface{}{"error": "no script host configured"})
		return nil
	}

	result, err := rc.Script.Run(ctx, source, scriptInput(rc), s.state)
	if err != nil {
		failurePolicy := nodeutil.ConfigString(rc.Config, "on_error", "continue")
		rc.Logger.Warn("script execution failed", "error", err, "policy", failurePolicy)
		if failurePolicy == "stop" {
			// Let the executor derive and route the error envelope; it
			// treats a returned error as the node's failed activation.
			return err
		}
		// continue: forward the original input unchanged rather than
		// routing it to the error port.
		rc.Emit(flow.PortOutput, rc.Message.Payload)
		return nil
	}

	if result == nil {
		return nil
	}

	rc.Emit(flow.PortOutput, result)
	return nil
}
