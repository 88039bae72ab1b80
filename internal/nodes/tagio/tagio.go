// Package tagio implements the tag input and tag output node kinds: the
// read and write path against the shared tag cache.
package tagio

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/flowrt/flowrt/internal/flow"
	"github.com/flowrt/flowrt/internal/node"
	"github.com/flowrt/flowrt/internal/nodes/nodeutil"
	"github.com/flowrt/flowrt/internal/registry"
)

// Install registers the tag I/O node kinds.
func Install(reg *registry.Registry) {
	reg.Register(flow.Descriptor{
		Type:     "tag.input",
		Category: "tagio",
		Label:    "Tag Input",
		InputPorts: []flow.Port{{Name: flow.PortInput, Direction: flow.DirectionInput}},
		OutputPorts: []flow.Port{
			{Name: flow.PortOutput, Direction: flow.DirectionOutput},
			{Name: flow.PortError, Direction: flow.DirectionOutput},
		},
	}, func() node.Runtime { return &TagInput{} })

	reg.Register(flow.Descriptor{
		Type:     "tag.output",
		Category: "tagio",
		Label:    "Tag Output",
		InputPorts: []flow.Port{{Name: flow.PortInput, Direction: flow.DirectionInput}},
		OutputPorts: []flow.Port{
			{Name: flow.PortOutput, Direction: flow.DirectionOutput},
			{Name: flow.PortError, Direction: flow.DirectionOutput},
		},
	}, func() node.Runtime { return &TagOutput{} })
}

// TagInput reads the current value of a configured tag path.
type TagInput struct{}

func (t *TagInput) Execute(ctx context.Context, rc *node.Context) error {
	path, _ := rc.Config["tag_path"].(string)
	if path == "" {
		rc.Logger.Warn("tag input: missing tag_path config")
		rc.Emit(flow.PortError, map[string]interface{}{"error": "missing tag_path config"})
		return nil
	}

	value, ok, err := rc.Tags.Get(ctx, path)
	if err != nil {
		rc.Emit(flow.PortError, map[string]interface{}{"error": err.Error()})
		return nil
	}
	if !ok {
		rc.Emit(flow.PortError, map[string]interface{}{"error": fmt.Sprintf("tag not found: %s", path)})
		return nil
	}

	rc.Emit(flow.PortOutput, map[string]interface{}{
		"tag_path":  path,
		"value":     value.Value,
		"timestamp": value.Timestamp.UTC().Format(time.RFC3339Nano),
		"quality":   int32(value.Quality),
	})
	return nil
}

// tagOutputState tracks the per-instance baseline an on-change save strategy
// compares against, and the last write time a heartbeat strategy uses.
type tagOutputState struct {
	hasLast   bool
	lastValue float64
	lastWrite time.Time
}

// TagOutput writes a configured tag, gated by a save strategy and the
// process-wide write-disable guard.
type TagOutput struct {
	state tagOutputState
}

func (t *TagOutput) Execute(ctx context.Context, rc *node.Context) error {
	path, _ := rc.Config["tag_path"].(string)
	if path == "" {
		rc.Logger.Warn("tag output: missing tag_path config")
		rc.Emit(flow.PortError, map[string]interface{}{"error": "missing tag_path config"})
		return nil
	}

	value, ok := nodeutil.ExtractProperty(rc.Message.Payload, "value")
	if !ok {
		value = rc.Message.Payload
	}

	if !nodeutil.ConfigBool(rc.Config, "writes_allowed", true) || rc.DisableWrites {
		rc.Emit(flow.PortOutput, rc.Message.Payload)
		return nil
	}

	strategy := nodeutil.ConfigString(rc.Config, "save_strategy", "always")
	switch strategy {
	case "never":
		rc.Emit(flow.PortOutput, rc.Message.Payload)
		return nil
	case "on-change":
		if !t.shouldWriteOnChange(rc, value) {
			rc.Emit(flow.PortOutput, rc.Message.Payload)
			return nil
		}
	}

	if err := rc.TagWriter.Put(ctx, path, value, node.QualityGood, rc.Now()); err != nil {
		rc.Emit(flow.PortError, map[string]interface{}{"error": err.Error()})
		return nil
	}

	if rc.TagPub != nil {
		if err := rc.TagPub.PublishTagValue(ctx, path, value, node.QualityGood); err != nil {
			rc.Logger.Warn("tag output: publish failed", "tag_path", path, "error", err)
		}
	}

	if f, ok := nodeutil.Numeric(value); ok {
		t.state.hasLast = true
		t.state.lastValue = f
	}
	t.state.lastWrite = rc.Now()

	rc.Emit(flow.PortOutput, rc.Message.Payload)
	return nil
}

func (t *TagOutput) shouldWriteOnChange(rc *node.Context, value interface{}) bool {
	if !t.state.hasLast {
		return true
	}

	heartbeat := nodeutil.ConfigFloat(rc.Config, "heartbeat_seconds", 0)
	if heartbeat > 0 && rc.Now().Sub(t.state.lastWrite) >= time.Duration(heartbeat*float64(time.Second)) {
		return true
	}

	f, ok := nodeutil.Numeric(value)
	if !ok {
		return true
	}

	deadband := nodeutil.ConfigFloat(rc.Config, "deadband", 0)
	deadbandIsPercent := nodeutil.ConfigBool(rc.Config, "deadband_percent", false)

	diff := math.Abs(f - t.state.lastValue)
	threshold := deadband
	if deadbandIsPercent {
		threshold = math.Abs(t.state.lastValue) * deadband / 100
	}
	return diff > threshold
}
