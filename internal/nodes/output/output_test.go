package output_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrt/flowrt/internal/envelope"
	"github.com/flowrt/flowrt/internal/node"
	obslogger "github.com/flowrt/flowrt/internal/obs/logger"
	"github.com/flowrt/flowrt/internal/nodes/output"
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

func TestNotificationRendersTemplateAndForwards(t *testing.T) {
	reg := registry.New(nil)
	output.Install(reg)
	rt, err := reg.CreateRuntime("output.notification")
	require.NoError(t, err)

	payload := map[string]interface{}{"value": float64(42)}
	rc := newContext(map[string]interface{}{"template": "reading is {{value}}", "severity": "warn"}, payload)
	require.NoError(t, rt.Execute(context.Background(), rc))

	require.Len(t, rc.Emitter.Emissions(), 1)
	assert.Equal(t, payload, rc.Emitter.Emissions()[0].Payload)
}

func TestDebugForwardsPayloadUnchanged(t *testing.T) {
	reg := registry.New(nil)
	output.Install(reg)
	rt, err := reg.CreateRuntime("output.debug")
	require.NoError(t, err)

	payload := map[string]interface{}{"error": "tag not found"}
	rc := newContext(nil, payload)
	require.NoError(t, rt.Execute(context.Background(), rc))

	require.Len(t, rc.Emitter.Emissions(), 1)
	assert.Equal(t, payload, rc.Emitter.Emissions()[0].Payload)
}
