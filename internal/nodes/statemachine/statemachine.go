// Package statemachine implements the state machine node kind: a
// configured set of states, a transition table keyed by source state and
// event name, and a current-state baseline carried across activations.
package statemachine

import (
	"context"
	"fmt"

	"github.com/flowrt/flowrt/internal/flow"
	"github.com/flowrt/flowrt/internal/node"
	"github.com/flowrt/flowrt/internal/nodes/nodeutil"
	"github.com/flowrt/flowrt/internal/registry"
)

// Install registers the state machine node kind.
func Install(reg *registry.Registry) {
	reg.Register(flow.Descriptor{
		Type:     "state.machine",
		Category: "state",
		Label:    "State Machine",
		InputPorts: []flow.Port{
			{Name: "event", Direction: flow.DirectionInput},
			{Name: "reset", Direction: flow.DirectionInput},
		},
		OutputPorts: []flow.Port{
			{Name: "current_state", Direction: flow.DirectionOutput},
			{Name: "transition", Direction: flow.DirectionOutput},
		},
	}, func() node.Runtime { return &StateMachine{} })
}

// StateMachine holds the current state across activations of one compiled
// instance; it is set to the configured initial state on its first
// activation and whenever the "reset" port fires.
type StateMachine struct {
	current string
	started bool
}

// transitionTable maps source state -> event -> target state. The config shape
// is a nested object: {"source_state": {"event": "target_state", ...}, ...}.
func transitionTable(cfg map[string]interface{}) map[string]map[string]string {
	raw, _ := cfg["transitions"].(map[string]interface{})
	table := make(map[string]map[string]string, len(raw))
	for source, events := range raw {
		eventMap, ok := events.(map[string]interface{})
		if !ok {
			continue
		}
		targets := make(map[string]string, len(eventMap))
		for event, target := range eventMap {
			if s, ok := target.(string); ok {
				targets[event] = s
			}
		}
		table[source] = targets
	}
	return table
}

func eventName(payload interface{}) string {
	switch p := payload.(type) {
	case string:
		return p
	case map[string]interface{}:
		if ev, ok := p["event"].(string); ok {
			return ev
		}
		if v, ok := p["value"]; ok {
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

func (s *StateMachine) Execute(ctx context.Context, rc *node.Context) error {
	initial := nodeutil.ConfigString(rc.Config, "initial_state", "")

	if !s.started {
		s.current = initial
		s.started = true
	}

	if rc.InputPort == "reset" {
		s.current = initial
		rc.Emit("current_state", map[string]interface{}{"state": s.current})
		return nil
	}

	event := eventName(rc.Message.Payload)
	table := transitionTable(rc.Config)
	resetOnInvalid := nodeutil.ConfigBool(rc.Config, "reset_on_invalid", false)

	target, matched := "", false
	if events, ok := table[s.current]; ok {
		if t, ok := events[event]; ok {
			target, matched = t, true
		}
	}

	if matched {
		previous := s.current
		s.current = target
		rc.Emit("transition", map[string]interface{}{
			"from":  previous,
			"to":    target,
			"event": event,
		})
		rc.Emit("current_state", map[string]interface{}{"state": s.current})
		return nil
	}

	if resetOnInvalid {
		s.current = initial
	}

	// No transition matched for this event from the current state. Per the
	// configured policy, the state is either reset or left unchanged; either
	// way the current state is still reported so downstream consumers don't
	// stall waiting for a transition that will never come on an invalid
	// event.
	rc.Emit("current_state", map[string]interface{}{"state": s.current})
	return nil
}
