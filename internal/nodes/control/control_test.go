package control_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrt/flowrt/internal/envelope"
	"github.com/flowrt/flowrt/internal/flow"
	"github.com/flowrt/flowrt/internal/node"
	obslogger "github.com/flowrt/flowrt/internal/obs/logger"
	"github.com/flowrt/flowrt/internal/nodes/control"
	"github.com/flowrt/flowrt/internal/registry"
)

func newContext(cfg map[string]interface{}, payload interface{}) *node.Context {
	return &node.Context{
		NodeID:  "n",
		Config:  cfg,
		Message: envelope.New(payload),
		Now:     time.Now,
		Logger:  obslogger.New("error", "json"),
		Emitter: &node.Emitter{},
	}
}

func TestDelayWaitsThenForwards(t *testing.T) {
	reg := registry.New(nil)
	control.Install(reg)
	rt, err := reg.CreateRuntime("control.delay")
	require.NoError(t, err)

	rc := newContext(map[string]interface{}{"duration_ms": float64(1)}, "payload")
	start := time.Now()
	require.NoError(t, rt.Execute(context.Background(), rc))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "payload", rc.Emitter.Emissions()[0].Payload)
}

func TestDelayHonorsCancellation(t *testing.T) {
	reg := registry.New(nil)
	control.Install(reg)
	rt, err := reg.CreateRuntime("control.delay")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc := newContext(map[string]interface{}{"duration_ms": float64(60000)}, "payload")
	err = rt.Execute(ctx, rc)
	assert.Error(t, err)
}

func TestFilterChangedSuppressesRepeat(t *testing.T) {
	reg := registry.New(nil)
	control.Install(reg)
	rt, err := reg.CreateRuntime("control.filter")
	require.NoError(t, err)

	cfg := map[string]interface{}{"predicate": "changed"}
	rc1 := newContext(cfg, map[string]interface{}{"value": float64(5)})
	require.NoError(t, rt.Execute(context.Background(), rc1))
	assert.Len(t, rc1.Emitter.Emissions(), 1)

	rc2 := newContext(cfg, map[string]interface{}{"value": float64(5)})
	require.NoError(t, rt.Execute(context.Background(), rc2))
	assert.Empty(t, rc2.Emitter.Emissions())

	rc3 := newContext(cfg, map[string]interface{}{"value": float64(6)})
	require.NoError(t, rt.Execute(context.Background(), rc3))
	assert.Len(t, rc3.Emitter.Emissions(), 1)
}

func TestConstantEmitsConfiguredLiteral(t *testing.T) {
	reg := registry.New(nil)
	control.Install(reg)
	rt, err := reg.CreateRuntime("control.constant")
	require.NoError(t, err)

	rc := newContext(map[string]interface{}{"value": float64(99)}, nil)
	require.NoError(t, rt.Execute(context.Background(), rc))
	out := rc.Emitter.Emissions()[0].Payload.(map[string]interface{})
	assert.Equal(t, float64(99), out["value"])
}

func TestCommentNeverEmits(t *testing.T) {
	reg := registry.New(nil)
	control.Install(reg)
	rt, err := reg.CreateRuntime("control.comment")
	require.NoError(t, err)

	rc := newContext(nil, nil)
	require.NoError(t, rt.Execute(context.Background(), rc))
	assert.Empty(t, rc.Emitter.Emissions())
}

func TestTemplateNodeTextAndJSON(t *testing.T) {
	reg := registry.New(nil)
	control.Install(reg)
	rt, err := reg.CreateRuntime("control.template")
	require.NoError(t, err)

	payload := map[string]interface{}{"name": "world"}
	rc := newContext(map[string]interface{}{"template": "hello {{name}}"}, payload)
	require.NoError(t, rt.Execute(context.Background(), rc))
	out := rc.Emitter.Emissions()[0].Payload.(map[string]interface{})
	assert.Equal(t, "hello world", out["value"])

	rt2, err := reg.CreateRuntime("control.template")
	require.NoError(t, err)
	rc2 := newContext(map[string]interface{}{"template": `{"greeting": "hi {{name}}"}`, "output_format": "json"}, payload)
	require.NoError(t, rt2.Execute(context.Background(), rc2))
	out2 := rc2.Emitter.Emissions()[0].Payload.(map[string]interface{})
	parsed := out2["value"].(map[string]interface{})
	assert.Equal(t, "hi world", parsed["greeting"])
}

func TestLinkPassThrough(t *testing.T) {
	reg := registry.New(nil)
	control.Install(reg)
	rt, err := reg.CreateRuntime(flow.NodeTypeLinkIn)
	require.NoError(t, err)

	rc := newContext(nil, "payload")
	require.NoError(t, rt.Execute(context.Background(), rc))
	assert.Equal(t, "payload", rc.Emitter.Emissions()[0].Payload)
}
