package tagio_test

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
	"github.com/flowrt/flowrt/internal/nodes/tagio"
	"github.com/flowrt/flowrt/internal/registry"
	"github.com/flowrt/flowrt/internal/tagcache"
)

func newContext(cfg map[string]interface{}, payload interface{}, tags *tagcache.Cache, now time.Time) (*node.Context, *node.Emitter) {
	emitter := &node.Emitter{}
	return &node.Context{
		NodeID:        "n",
		Config:        cfg,
		Message:       envelope.New(payload),
		Now:           func() time.Time { return now },
		Logger:        obslogger.New("error", "json"),
		Emitter:       emitter,
		Tags:          tags,
		TagWriter:     tags,
		DisableWrites: tags != nil && tags.WritesDisabled(),
	}, emitter
}

func hasEmissionOn(e *node.Emitter, port string) bool {
	for _, em := range e.Emissions() {
		if em.Port == port {
			return true
		}
	}
	return false
}

func TestTagInputMissingPathEmitsError(t *testing.T) {
	reg := registry.New(nil)
	tagio.Install(reg)
	rt, err := reg.CreateRuntime("tag.input")
	require.NoError(t, err)

	tags := tagcache.New()
	rc, emitter := newContext(nil, nil, tags, time.Now())
	require.NoError(t, rt.Execute(context.Background(), rc))
	assert.True(t, hasEmissionOn(emitter, flow.PortError))
}

func TestTagInputNotFoundEmitsError(t *testing.T) {
	reg := registry.New(nil)
	tagio.Install(reg)
	rt, err := reg.CreateRuntime("tag.input")
	require.NoError(t, err)

	tags := tagcache.New()
	rc, emitter := newContext(map[string]interface{}{"tag_path": "missing"}, nil, tags, time.Now())
	require.NoError(t, rt.Execute(context.Background(), rc))
	assert.True(t, hasEmissionOn(emitter, flow.PortError))
}

func TestTagInputReadsCurrentValue(t *testing.T) {
	reg := registry.New(nil)
	tagio.Install(reg)
	rt, err := reg.CreateRuntime("tag.input")
	require.NoError(t, err)

	tags := tagcache.New()
	require.NoError(t, tags.Put(context.Background(), "sim/temp", float64(20), node.QualityGood, time.Time{}))

	rc, emitter := newContext(map[string]interface{}{"tag_path": "sim/temp"}, nil, tags, time.Now())
	require.NoError(t, rt.Execute(context.Background(), rc))

	require.True(t, hasEmissionOn(emitter, flow.PortOutput))
	out := emitter.Emissions()[0].Payload.(map[string]interface{})
	assert.Equal(t, float64(20), out["value"])
}

func TestTagOutputWritesAlways(t *testing.T) {
	reg := registry.New(nil)
	tagio.Install(reg)
	rt, err := reg.CreateRuntime("tag.output")
	require.NoError(t, err)

	tags := tagcache.New()
	cfg := map[string]interface{}{"tag_path": "internal/temp_shifted", "save_strategy": "always"}
	rc, _ := newContext(cfg, map[string]interface{}{"value": float64(30)}, tags, time.Now())
	require.NoError(t, rt.Execute(context.Background(), rc))

	v, ok, err := tags.Get(context.Background(), "internal/temp_shifted")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(30), v.Value)
}

func TestTagOutputOnChangeDeadband(t *testing.T) {
	reg := registry.New(nil)
	tagio.Install(reg)
	rt, err := reg.CreateRuntime("tag.output")
	require.NoError(t, err)

	tags := tagcache.New()
	cfg := map[string]interface{}{"tag_path": "out", "save_strategy": "on-change", "deadband": float64(5)}

	rc, _ := newContext(cfg, map[string]interface{}{"value": float64(100)}, tags, time.Now())
	require.NoError(t, rt.Execute(context.Background(), rc))
	v, _, _ := tags.Get(context.Background(), "out")
	assert.Equal(t, float64(100), v.Value)

	rc2, _ := newContext(cfg, map[string]interface{}{"value": float64(102)}, tags, time.Now())
	require.NoError(t, rt.Execute(context.Background(), rc2))
	v, _, _ = tags.Get(context.Background(), "out")
	assert.Equal(t, float64(100), v.Value, "small change within deadband should not write")
}

func TestTagOutputNeverStrategySkipsWrite(t *testing.T) {
	reg := registry.New(nil)
	tagio.Install(reg)
	rt, err := reg.CreateRuntime("tag.output")
	require.NoError(t, err)

	tags := tagcache.New()
	cfg := map[string]interface{}{"tag_path": "out", "save_strategy": "never"}

	rc, emitter := newContext(cfg, map[string]interface{}{"value": float64(1)}, tags, time.Now())
	require.NoError(t, rt.Execute(context.Background(), rc))
	_, ok, _ := tags.Get(context.Background(), "out")
	assert.False(t, ok, "never strategy must not write")
	assert.True(t, hasEmissionOn(emitter, flow.PortOutput))

	rc2, _ := newContext(cfg, map[string]interface{}{"value": float64(2)}, tags, time.Now())
	require.NoError(t, rt.Execute(context.Background(), rc2))
	_, ok, _ = tags.Get(context.Background(), "out")
	assert.False(t, ok, "never strategy must not write on subsequent activations either")
}

func TestTagOutputRespectsDisableWrites(t *testing.T) {
	reg := registry.New(nil)
	tagio.Install(reg)
	rt, err := reg.CreateRuntime("tag.output")
	require.NoError(t, err)

	tags := tagcache.New()
	cfg := map[string]interface{}{"tag_path": "out", "save_strategy": "always"}
	rc, emitter := newContext(cfg, map[string]interface{}{"value": float64(1)}, tags, time.Now())
	rc.DisableWrites = true

	require.NoError(t, rt.Execute(context.Background(), rc))
	_, ok, _ := tags.Get(context.Background(), "out")
	assert.False(t, ok)
	assert.True(t, hasEmissionOn(emitter, flow.PortOutput))
}
