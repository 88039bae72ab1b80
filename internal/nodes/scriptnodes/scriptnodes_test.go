package scriptnodes_test

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
	"github.com/flowrt/flowrt/internal/nodes/scriptnodes"
	"github.com/flowrt/flowrt/internal/registry"
	"github.com/flowrt/flowrt/internal/scripthost"
)

func newContext(cfg map[string]interface{}, payload interface{}, host node.ScriptHost) (*node.Context, *node.Emitter) {
	emitter := &node.Emitter{}
	return &node.Context{
		NodeID:  "n",
		Config:  cfg,
		Message: envelope.New(payload),
		Now:     time.Now,
		Logger:  obslogger.New("error", "json"),
		Emitter: emitter,
		Script:  host,
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

func TestScriptEmitsReturnValue(t *testing.T) {
	reg := registry.New(nil)
	scriptnodes.Install(reg)
	rt, err := reg.CreateRuntime("script.inline")
	require.NoError(t, err)

	host := scripthost.New(nil)
	rc, emitter := newContext(map[string]interface{}{"source": "input.value + 1"}, map[string]interface{}{"value": float64(1)}, host)
	require.NoError(t, rt.Execute(context.Background(), rc))

	require.True(t, hasEmissionOn(emitter, flow.PortOutput))
	assert.Equal(t, int64(2), emitter.Emissions()[0].Payload)
}

func TestScriptNullSuppressesEmission(t *testing.T) {
	reg := registry.New(nil)
	scriptnodes.Install(reg)
	rt, err := reg.CreateRuntime("script.inline")
	require.NoError(t, err)

	host := scripthost.New(nil)
	rc, emitter := newContext(map[string]interface{}{"source": "null"}, nil, host)
	require.NoError(t, rt.Execute(context.Background(), rc))
	assert.Empty(t, emitter.Emissions())
}

func TestScriptOnErrorContinueForwardsInputUnchanged(t *testing.T) {
	reg := registry.New(nil)
	scriptnodes.Install(reg)
	rt, err := reg.CreateRuntime("script.inline")
	require.NoError(t, err)

	host := scripthost.New(nil)
	payload := map[string]interface{}{"value": float64(5)}
	rc, emitter := newContext(map[string]interface{}{"source": "throw new Error('boom')", "on_error": "continue"}, payload, host)
	require.NoError(t, rt.Execute(context.Background(), rc))

	require.True(t, hasEmissionOn(emitter, flow.PortOutput))
	assert.Equal(t, payload, emitter.Emissions()[0].Payload)
	assert.False(t, hasEmissionOn(emitter, flow.PortError))
}

func TestScriptOnErrorStopReturnsError(t *testing.T) {
	reg := registry.New(nil)
	scriptnodes.Install(reg)
	rt, err := reg.CreateRuntime("script.inline")
	require.NoError(t, err)

	host := scripthost.New(nil)
	rc, _ := newContext(map[string]interface{}{"source": "throw new Error('boom')", "on_error": "stop"}, nil, host)
	err = rt.Execute(context.Background(), rc)
	assert.Error(t, err)
}

func TestScriptMissingSourceEmitsError(t *testing.T) {
	reg := registry.New(nil)
	scriptnodes.Install(reg)
	rt, err := reg.CreateRuntime("script.inline")
	require.NoError(t, err)

	rc, emitter := newContext(nil, nil, scripthost.New(nil))
	require.NoError(t, rt.Execute(context.Background(), rc))
	assert.True(t, hasEmissionOn(emitter, flow.PortError))
}
