package statemachine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrt/flowrt/internal/envelope"
	"github.com/flowrt/flowrt/internal/node"
	obslogger "github.com/flowrt/flowrt/internal/obs/logger"
	"github.com/flowrt/flowrt/internal/nodes/statemachine"
	"github.com/flowrt/flowrt/internal/registry"
)

func activate(t *testing.T, rt node.Runtime, port string, cfg map[string]interface{}, payload interface{}) *node.Emitter {
	t.Helper()
	emitter := &node.Emitter{}
	rc := &node.Context{
		NodeID:    "n",
		Config:    cfg,
		Message:   envelope.New(payload),
		InputPort: port,
		Now:       time.Now,
		Logger:    obslogger.New("error", "json"),
		Emitter:   emitter,
	}
	require.NoError(t, rt.Execute(context.Background(), rc))
	return emitter
}

func stateOf(t *testing.T, e *node.Emitter) string {
	t.Helper()
	for _, em := range e.Emissions() {
		if em.Port == "current_state" {
			m := em.Payload.(map[string]interface{})
			return m["state"].(string)
		}
	}
	t.Fatal("no current_state emission")
	return ""
}

func cfg() map[string]interface{} {
	return map[string]interface{}{
		"initial_state": "idle",
		"transitions": map[string]interface{}{
			"idle":    map[string]interface{}{"start": "running"},
			"running": map[string]interface{}{"stop": "idle"},
		},
	}
}

func TestStateMachineTransitionsAndEmitsBothOutputs(t *testing.T) {
	reg := registry.New(nil)
	statemachine.Install(reg)
	rt, err := reg.CreateRuntime("state.machine")
	require.NoError(t, err)

	e := activate(t, rt, "event", cfg(), map[string]interface{}{"event": "start"})
	assert.Equal(t, "running", stateOf(t, e))

	var sawTransition bool
	for _, em := range e.Emissions() {
		if em.Port == "transition" {
			sawTransition = true
			m := em.Payload.(map[string]interface{})
			assert.Equal(t, "idle", m["from"])
			assert.Equal(t, "running", m["to"])
		}
	}
	assert.True(t, sawTransition)
}

func TestStateMachineUnmatchedEventStillEmitsCurrentState(t *testing.T) {
	reg := registry.New(nil)
	statemachine.Install(reg)
	rt, err := reg.CreateRuntime("state.machine")
	require.NoError(t, err)

	e := activate(t, rt, "event", cfg(), map[string]interface{}{"event": "nonexistent"})
	assert.Equal(t, "idle", stateOf(t, e))
	for _, em := range e.Emissions() {
		assert.NotEqual(t, "transition", em.Port)
	}
}

func TestStateMachineResetOnInvalid(t *testing.T) {
	reg := registry.New(nil)
	statemachine.Install(reg)
	rt, err := reg.CreateRuntime("state.machine")
	require.NoError(t, err)

	c := cfg()
	c["reset_on_invalid"] = true

	activate(t, rt, "event", c, map[string]interface{}{"event": "start"}) // -> running
	e := activate(t, rt, "event", c, map[string]interface{}{"event": "bogus"})
	assert.Equal(t, "idle", stateOf(t, e))
}

func TestStateMachineResetPort(t *testing.T) {
	reg := registry.New(nil)
	statemachine.Install(reg)
	rt, err := reg.CreateRuntime("state.machine")
	require.NoError(t, err)

	c := cfg()
	activate(t, rt, "event", c, map[string]interface{}{"event": "start"}) // -> running
	e := activate(t, rt, "reset", c, nil)
	assert.Equal(t, "idle", stateOf(t, e))
}
