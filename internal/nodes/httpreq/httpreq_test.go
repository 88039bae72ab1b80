package httpreq_test

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
	"github.com/flowrt/flowrt/internal/nodes/httpreq"
	"github.com/flowrt/flowrt/internal/registry"
)

func newContext(cfg map[string]interface{}, payload interface{}) (*node.Context, *node.Emitter) {
	emitter := &node.Emitter{}
	return &node.Context{
		NodeID:  "n",
		Config:  cfg,
		Message: envelope.New(payload),
		Now:     time.Now,
		Logger:  obslogger.New("error", "json"),
		Emitter: emitter,
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

func emissionOn(t *testing.T, e *node.Emitter, port string) interface{} {
	t.Helper()
	for _, em := range e.Emissions() {
		if em.Port == port {
			return em.Payload
		}
	}
	t.Fatalf("no emission on port %q", port)
	return nil
}

func TestHTTPRequestMissingURLEmitsError(t *testing.T) {
	reg := registry.New(nil)
	httpreq.Install(reg)
	rt, err := reg.CreateRuntime("http.request")
	require.NoError(t, err)

	rc, emitter := newContext(nil, nil)
	require.NoError(t, rt.Execute(context.Background(), rc))
	assert.True(t, hasEmissionOn(emitter, flow.PortError))
}

func TestHTTPRequestRejectsLoopbackTarget(t *testing.T) {
	reg := registry.New(nil)
	httpreq.Install(reg)
	rt, err := reg.CreateRuntime("http.request")
	require.NoError(t, err)

	rc, emitter := newContext(map[string]interface{}{"url": "http://127.0.0.1/admin"}, nil)
	require.NoError(t, rt.Execute(context.Background(), rc))
	out := emissionOn(t, emitter, flow.PortError).(map[string]interface{})
	assert.Contains(t, out["error"], "loopback")
}

func TestHTTPRequestUnreachableHostEmitsError(t *testing.T) {
	reg := registry.New(nil)
	httpreq.Install(reg)
	rt, err := reg.CreateRuntime("http.request")
	require.NoError(t, err)

	rc, emitter := newContext(map[string]interface{}{"url": "http://203.0.113.1:1/nowhere", "timeout_ms": float64(1000)}, nil)
	require.NoError(t, rt.Execute(context.Background(), rc))
	assert.True(t, hasEmissionOn(emitter, flow.PortError))
}
