package envelope_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrt/flowrt/internal/envelope"
)

func TestNewAssignsRootCorrelation(t *testing.T) {
	e := envelope.New(map[string]interface{}{"value": 1})
	require.NotEmpty(t, e.MessageID)
	assert.Equal(t, e.MessageID, e.CorrelationID)
}

func TestDerivePreservesCorrelationFreshensMessageID(t *testing.T) {
	root := envelope.New(map[string]interface{}{"value": 1})
	child := root.Derive(map[string]interface{}{"value": 2}, "node-a", "output")

	assert.Equal(t, root.CorrelationID, child.CorrelationID)
	assert.NotEqual(t, root.MessageID, child.MessageID)
	assert.Equal(t, "node-a", child.SourceNodeID)
	assert.Equal(t, "output", child.SourcePort)
}

func TestDeriveChainKeepsCorrelationStable(t *testing.T) {
	root := envelope.New(1)
	a := root.Derive(2, "n1", "output")
	b := a.Derive(3, "n2", "output")

	assert.Equal(t, root.CorrelationID, a.CorrelationID)
	assert.Equal(t, root.CorrelationID, b.CorrelationID)
	assert.NotEqual(t, a.MessageID, b.MessageID)
}

func TestCloneCopiesIdentity(t *testing.T) {
	root := envelope.New("payload")
	clone := root.Clone()

	assert.Equal(t, root.MessageID, clone.MessageID)
	assert.Equal(t, root.CorrelationID, clone.CorrelationID)

	clone.Payload = "changed"
	assert.Equal(t, "payload", root.Payload)
}
