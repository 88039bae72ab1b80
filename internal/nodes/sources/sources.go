// Package sources implements the trigger node kinds: manual trigger,
// timer/inject, and tag change. None declare input ports — each is driven
// externally (a manual invocation, a scheduler tick, a tag-change event)
// and simply produces its first message.
package sources

import (
	"context"
	"time"

	"github.com/flowrt/flowrt/internal/flow"
	"github.com/flowrt/flowrt/internal/node"
	"github.com/flowrt/flowrt/internal/registry"
)

// Install registers every source node kind.
func Install(reg *registry.Registry) {
	reg.Register(flow.Descriptor{
		Type:        "source.manual_trigger",
		Category:    "sources",
		Label:       "Manual Trigger",
		Trigger:     true,
		OutputPorts: []flow.Port{{Name: flow.PortOutput, Direction: flow.DirectionOutput}},
	}, func() node.Runtime { return &ManualTrigger{} })

	reg.Register(flow.Descriptor{
		Type:        "source.timer",
		Category:    "sources",
		Label:       "Timer / Inject",
		Trigger:     true,
		OutputPorts: []flow.Port{{Name: flow.PortOutput, Direction: flow.DirectionOutput}},
	}, func() node.Runtime { return &Timer{} })

	reg.Register(flow.Descriptor{
		Type:        "source.tag_change",
		Category:    "sources",
		Label:       "Tag Change",
		Trigger:     true,
		OutputPorts: []flow.Port{{Name: flow.PortOutput, Direction: flow.DirectionOutput}},
	}, func() node.Runtime { return &TagChange{} })
}

// ManualTrigger forwards its incoming envelope's payload unchanged.
type ManualTrigger struct{}

func (t *ManualTrigger) Execute(ctx context.Context, rc *node.Context) error {
	rc.Emit(flow.PortOutput, rc.Message.Payload)
	return nil
}

// Timer is driven by an external scheduler that enqueues a message on its
// behalf at a configured interval; it just shapes the payload.
type Timer struct{}

func (t *Timer) Execute(ctx context.Context, rc *node.Context) error {
	if rc.Message.Payload != nil {
		rc.Emit(flow.PortOutput, rc.Message.Payload)
		return nil
	}
	rc.Emit(flow.PortOutput, map[string]interface{}{"timestamp": rc.Now().UTC().Format(time.RFC3339Nano)})
	return nil
}

// TagChange reads a tag's current snapshot. Edge semantics (any/rising/
// falling) are the external scheduler's responsibility; this runtime only
// ever reports the current value.
type TagChange struct{}

func (t *TagChange) Execute(ctx context.Context, rc *node.Context) error {
	path, _ := rc.Config["tag_path"].(string)

	value, ok, err := rc.Tags.Get(ctx, path)
	if err != nil || !ok {
		rc.Logger.Warn("tag change source: tag not found", "tag_path", path)
		rc.Emit(flow.PortOutput, map[string]interface{}{
			"tag_path":  path,
			"value":     nil,
			"timestamp": rc.Now().UTC().Format(time.RFC3339Nano),
		})
		return nil
	}

	rc.Emit(flow.PortOutput, map[string]interface{}{
		"tag_path":  path,
		"value":     value.Value,
		"timestamp": value.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	return nil
}
