// Package output implements the output node kinds: notification (renders a
// template and logs at a configured severity) and debug (logs the payload
// at a configured level).
package output

import (
	"context"

	"github.com/flowrt/flowrt/internal/flow"
	"github.com/flowrt/flowrt/internal/node"
	"github.com/flowrt/flowrt/internal/nodes/nodeutil"
	"github.com/flowrt/flowrt/internal/registry"
)

// Install registers the output node kinds.
func Install(reg *registry.Registry) {
	in := []flow.Port{{Name: flow.PortInput, Direction: flow.DirectionInput}}
	out := []flow.Port{{Name: flow.PortOutput, Direction: flow.DirectionOutput}}

	reg.Register(flow.Descriptor{
		Type: "output.notification", Category: "output", Label: "Notification",
		InputPorts: in, OutputPorts: out,
	}, func() node.Runtime { return &Notification{} })

	reg.Register(flow.Descriptor{
		Type: "output.debug", Category: "output", Label: "Debug",
		InputPorts: in, OutputPorts: out,
	}, func() node.Runtime { return &Debug{} })
}

// Notification renders a "{{key}}" template against the payload and logs
// it at info/warn/error depending on the configured severity, then
// forwards the input unchanged.
type Notification struct{}

func (n *Notification) Execute(ctx context.Context, rc *node.Context) error {
	tmpl := nodeutil.ConfigString(rc.Config, "template", "")
	rendered := nodeutil.RenderTemplate(tmpl, rc.Message.Payload)
	severity := nodeutil.ConfigString(rc.Config, "severity", "info")

	switch severity {
	case "warn":
		rc.Logger.Warn(rendered, "node_id", rc.NodeID)
	case "error":
		rc.Logger.Error(rendered, "node_id", rc.NodeID)
	default:
		rc.Logger.Info(rendered, "node_id", rc.NodeID)
	}

	rc.Emit(flow.PortOutput, rc.Message.Payload)
	return nil
}

// Debug logs the inbound payload at a configured level, then forwards it
// unchanged.
type Debug struct{}

func (d *Debug) Execute(ctx context.Context, rc *node.Context) error {
	level := nodeutil.ConfigString(rc.Config, "level", "debug")

	switch level {
	case "info":
		rc.Logger.Info("debug node", "node_id", rc.NodeID, "payload", rc.Message.Payload)
	case "warn":
		rc.Logger.Warn("debug node", "node_id", rc.NodeID, "payload", rc.Message.Payload)
	case "error":
		rc.Logger.Error("debug node", "node_id", rc.NodeID, "payload", rc.Message.Payload)
	default:
		rc.Logger.Debug("debug node", "node_id", rc.NodeID, "payload", rc.Message.Payload)
	}

	rc.Emit(flow.PortOutput, rc.Message.Payload)
	return nil
}
