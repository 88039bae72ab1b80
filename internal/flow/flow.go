// Package flow holds the declarative data model for flow graphs: node
// definitions, wires, flow definitions and node descriptors. The compiler
// (package compiler) turns these into an executable plan.
package flow

// NodeDef is one node in a declarative flow graph.
type NodeDef struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Name     string                 `json:"name,omitempty"`
	Config   map[string]interface{} `json:"config,omitempty"`
	Position *Position              `json:"position,omitempty"`
	Disabled bool                   `json:"disabled,omitempty"`
}

// Position is editor-fidelity-only metadata; the runtime never reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Wire is a directed edge from a source node's output port to a target
// node's input port.
type Wire struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"source_node_id"`
	SourcePort   string `json:"source_port"`
	TargetNodeID string `json:"target_node_id"`
	TargetPort   string `json:"target_port"`
}

// Definition is a complete, declarative flow graph.
type Definition struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Enabled  bool                   `json:"enabled"`
	Nodes    []NodeDef              `json:"nodes"`
	Wires    []Wire                 `json:"wires"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NodeByID returns the node with the given id, or nil.
func (d *Definition) NodeByID(id string) *NodeDef {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i]
		}
	}
	return nil
}

// Direction of a port.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Port describes a single named endpoint on a node.
type Port struct {
	Name      string    `json:"name"`
	Label     string    `json:"label,omitempty"`
	Direction Direction `json:"direction"`
	Required  bool      `json:"required,omitempty"`
}

// ConfigPropertyKind enumerates the kinds a config schema property may take.
type ConfigPropertyKind string

const (
	KindString  ConfigPropertyKind = "string"
	KindNumber  ConfigPropertyKind = "number"
	KindBool    ConfigPropertyKind = "bool"
	KindObject  ConfigPropertyKind = "object"
	KindArray   ConfigPropertyKind = "array"
	KindSelect  ConfigPropertyKind = "select"
)

// ConfigProperty describes one property of a node's config schema.
type ConfigProperty struct {
	Name     string             `json:"name"`
	Kind     ConfigPropertyKind `json:"kind"`
	Required bool               `json:"required"`
	Options  []string           `json:"options,omitempty"`
}

// ConfigSchema is the full set of config properties a node type declares.
type ConfigSchema struct {
	Properties []ConfigProperty `json:"properties"`
}

// Descriptor is the immutable, registered shape of a node type: its ports,
// category, and config schema. Descriptors never change after registration.
type Descriptor struct {
	Type        string
	Category    string
	Label       string
	InputPorts  []Port
	OutputPorts []Port
	Trigger     bool
	ConfigSchema ConfigSchema
	// NewConfig, when set, returns a pointer to a zero-valued config
	// struct carrying `json` and `validate` tags for this node type. The
	// registry decodes a node's raw config map into it and runs
	// struct-level validation at compile time when the schema is strict.
	// Node types with no strict schema leave this nil and fall back to
	// best-effort coercion at execution time.
	NewConfig func() interface{} `json:"-"`
}

// OutputPortNames returns the output port names in declaration order.
func (d *Descriptor) OutputPortNames() []string {
	names := make([]string, len(d.OutputPorts))
	for i, p := range d.OutputPorts {
		names[i] = p.Name
	}
	return names
}

// HasOutputPort reports whether the descriptor declares the named output
// port.
func (d *Descriptor) HasOutputPort(name string) bool {
	for _, p := range d.OutputPorts {
		if p.Name == name {
			return true
		}
	}
	return false
}

const (
	// PortInput is the conventional single input port name used by most
	// node kinds.
	PortInput = "input"
	// PortOutput is the conventional single success output port name.
	PortOutput = "output"
	// PortError is the conventional error output port name. A node with
	// this port declared may be wired to an error handler.
	PortError = "error"
)

const (
	// NodeTypeLinkIn and NodeTypeLinkOut mark the two halves of a named
	// tunnel. The compiler rewrites wires around them (see
	// internal/compiler), bypassing the per-message hop through the pair.
	NodeTypeLinkIn  = "control.link_in"
	NodeTypeLinkOut = "control.link_out"

	// ConfigKeyLinkName is the config property both halves of a tunnel
	// share to identify which link_in a link_out forwards to.
	ConfigKeyLinkName = "link_name"
)
