package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrt/flowrt/internal/flow"
	"github.com/flowrt/flowrt/internal/template"
)

func buildTemplate() *template.Template {
	return &template.Template{
		Parameters: []template.Parameter{
			{Name: "threshold", Required: false, Default: float64(75), Kind: template.ParamNumber},
		},
		Nodes: []flow.NodeDef{
			{
				ID:   "tmpl-node-1",
				Type: "logic.compare",
				Name: "Compare {{threshold}}",
				Config: map[string]interface{}{
					"operator":  ">",
					"threshold": "{{threshold}}",
				},
			},
			{ID: "tmpl-node-2", Type: "output.debug"},
		},
		Wires: []flow.Wire{
			{ID: "tmpl-wire-1", SourceNodeID: "tmpl-node-1", SourcePort: flow.PortOutput, TargetNodeID: "tmpl-node-2", TargetPort: flow.PortInput},
		},
	}
}

func TestInstantiateSubstitutesBareTokenAsRawValue(t *testing.T) {
	def, err := template.Instantiate(buildTemplate(), "instance-1", map[string]interface{}{"threshold": float64(90)})
	require.NoError(t, err)

	require.Len(t, def.Nodes, 2)
	compareNode := def.Nodes[0]
	assert.Equal(t, float64(90), compareNode.Config["threshold"])
	assert.NotEqual(t, "tmpl-node-1", compareNode.ID)
	assert.Equal(t, "Compare 90", compareNode.Name)
}

func TestInstantiateAppliesDefaults(t *testing.T) {
	def, err := template.Instantiate(buildTemplate(), "instance-2", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, float64(75), def.Nodes[0].Config["threshold"])
}

func TestInstantiateTwiceProducesDisjointIDs(t *testing.T) {
	tmpl := buildTemplate()
	defA, err := template.Instantiate(tmpl, "a", map[string]interface{}{"threshold": float64(1)})
	require.NoError(t, err)
	defB, err := template.Instantiate(tmpl, "b", map[string]interface{}{"threshold": float64(1)})
	require.NoError(t, err)

	assert.NotEqual(t, defA.ID, defB.ID)
	for i := range defA.Nodes {
		assert.NotEqual(t, defA.Nodes[i].ID, defB.Nodes[i].ID)
	}
	assert.NotEqual(t, defA.Wires[0].ID, defB.Wires[0].ID)
}

func TestInstantiateRewiresRemappedEndpoints(t *testing.T) {
	def, err := template.Instantiate(buildTemplate(), "instance-3", nil)
	require.NoError(t, err)

	require.Len(t, def.Wires, 1)
	w := def.Wires[0]
	assert.Equal(t, def.Nodes[0].ID, w.SourceNodeID)
	assert.Equal(t, def.Nodes[1].ID, w.TargetNodeID)
}

func TestInstantiateMissingRequiredParameterFails(t *testing.T) {
	tmpl := buildTemplate()
	tmpl.Parameters[0].Required = true
	_, err := template.Instantiate(tmpl, "instance-4", map[string]interface{}{})
	assert.Error(t, err)
}

func TestInstantiateMetadataRecordsSourceTemplate(t *testing.T) {
	def, err := template.Instantiate(buildTemplate(), "instance-5", nil)
	require.NoError(t, err)
	assert.Equal(t, true, def.Metadata["source_template"])
	assert.NotEmpty(t, def.Metadata["instantiated_at"])
	assert.True(t, def.Enabled)
}
