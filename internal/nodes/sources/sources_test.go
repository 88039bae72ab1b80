package sources_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrt/flowrt/internal/envelope"
	"github.com/flowrt/flowrt/internal/node"
	obslogger "github.com/flowrt/flowrt/internal/obs/logger"
	"github.com/flowrt/flowrt/internal/nodes/sources"
	"github.com/flowrt/flowrt/internal/registry"
	"github.com/flowrt/flowrt/internal/tagcache"
)

func newContext(cfg map[string]interface{}, payload interface{}, tags *tagcache.Cache) (*node.Context, *node.Emitter) {
	emitter := &node.Emitter{}
	return &node.Context{
		NodeID:  "n",
		Config:  cfg,
		Message: envelope.New(payload),
		Now:     time.Now,
		Logger:  obslogger.New("error", "json"),
		Emitter: emitter,
		Tags:    tags,
	}, emitter
}

func TestManualTriggerForwardsUnchanged(t *testing.T) {
	reg := registry.New(nil)
	sources.Install(reg)
	rt, err := reg.CreateRuntime("source.manual_trigger")
	require.NoError(t, err)

	rc, emitter := newContext(nil, map[string]interface{}{"a": float64(1)}, nil)
	require.NoError(t, rt.Execute(context.Background(), rc))
	require.Len(t, emitter.Emissions(), 1)
	assert.Equal(t, rc.Message.Payload, emitter.Emissions()[0].Payload)
}

func TestTimerDefaultsToTimestampPayload(t *testing.T) {
	reg := registry.New(nil)
	sources.Install(reg)
	rt, err := reg.CreateRuntime("source.timer")
	require.NoError(t, err)

	rc, emitter := newContext(nil, nil, nil)
	require.NoError(t, rt.Execute(context.Background(), rc))
	out := emitter.Emissions()[0].Payload.(map[string]interface{})
	assert.Contains(t, out, "timestamp")
}

func TestTagChangeEmitsCurrentSnapshot(t *testing.T) {
	reg := registry.New(nil)
	sources.Install(reg)
	rt, err := reg.CreateRuntime("source.tag_change")
	require.NoError(t, err)

	tags := tagcache.New()
	require.NoError(t, tags.Put(context.Background(), "sim/temp", float64(20), node.QualityGood, time.Time{}))

	rc, emitter := newContext(map[string]interface{}{"tag_path": "sim/temp"}, nil, tags)
	require.NoError(t, rt.Execute(context.Background(), rc))
	out := emitter.Emissions()[0].Payload.(map[string]interface{})
	assert.Equal(t, float64(20), out["value"])
	assert.Equal(t, "sim/temp", out["tag_path"])
}
