// Package template instantiates a parameterized flow blueprint into a
// concrete flow.Definition: parameter substitution plus a fresh id remap
// for every node and wire. Placeholder substitution follows a compile-and
// cache-free string-interpolation approach, using "{{name}}" tokens rather
// than shell-style "${name}" ones.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/flowrt/flowrt/internal/flow"
)

// ParamKind is the declared value kind of a template parameter.
type ParamKind string

const (
	ParamString ParamKind = "string"
	ParamNumber ParamKind = "number"
	ParamBool   ParamKind = "bool"
)

// Parameter describes one template input.
type Parameter struct {
	Name     string
	Required bool
	Default  interface{}
	Kind     ParamKind
}

// Template is a parameterized flow blueprint: node and wire lists carrying
// "{{param}}" tokens in string fields and config leaves.
type Template struct {
	Parameters []Parameter
	Nodes      []flow.NodeDef
	Wires      []flow.Wire
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Instantiate validates params against t's declared parameters (applying
// defaults for any missing optional ones), then produces a fully concrete
// flow.Definition with a fresh id for every node, wire, and the flow
// itself. Two independent instantiations of the same template share no ids.
func Instantiate(t *Template, flowName string, params map[string]interface{}) (*flow.Definition, error) {
	resolved, err := resolveParams(t, params)
	if err != nil {
		return nil, err
	}

	idRemap := make(map[string]string, len(t.Nodes))
	for _, n := range t.Nodes {
		idRemap[n.ID] = uuid.New().String()
	}

	newNodes := make([]flow.NodeDef, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		newNode, err := instantiateNode(n, idRemap, resolved)
		if err != nil {
			return nil, fmt.Errorf("instantiate node %s: %w", n.ID, err)
		}
		newNodes = append(newNodes, newNode)
	}

	newWires := make([]flow.Wire, 0, len(t.Wires))
	for _, w := range t.Wires {
		src, srcOK := idRemap[w.SourceNodeID]
		tgt, tgtOK := idRemap[w.TargetNodeID]
		if !srcOK || !tgtOK {
			continue
		}
		newWires = append(newWires, flow.Wire{
			ID:           uuid.New().String(),
			SourceNodeID: src,
			SourcePort:   w.SourcePort,
			TargetNodeID: tgt,
			TargetPort:   w.TargetPort,
		})
	}

	return &flow.Definition{
		ID:      uuid.New().String(),
		Name:    flowName,
		Enabled: true,
		Nodes:   newNodes,
		Wires:   newWires,
		Metadata: map[string]interface{}{
			"source_template":  true,
			"instantiated_at":  time.Now().UTC().Format(time.RFC3339Nano),
		},
	}, nil
}

func resolveParams(t *Template, given map[string]interface{}) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(t.Parameters))
	for _, p := range t.Parameters {
		v, ok := given[p.Name]
		if !ok {
			if p.Required {
				return nil, fmt.Errorf("missing required template parameter: %s", p.Name)
			}
			v = p.Default
		}
		resolved[p.Name] = v
	}
	return resolved, nil
}

func instantiateNode(n flow.NodeDef, idRemap map[string]string, params map[string]interface{}) (flow.NodeDef, error) {
	out := flow.NodeDef{
		ID:       idRemap[n.ID],
		Type:     n.Type,
		Position: n.Position,
		Disabled: n.Disabled,
	}

	out.Name = substituteString(n.Name, params)

	if n.Config != nil {
		resolvedConfig, err := substituteValue(n.Config, params)
		if err != nil {
			return flow.NodeDef{}, err
		}
		m, ok := resolvedConfig.(map[string]interface{})
		if !ok {
			return flow.NodeDef{}, fmt.Errorf("config did not resolve to an object")
		}
		out.Config = m
	}

	return out, nil
}

// substituteValue recursively resolves placeholders in a config tree. A
// leaf that is exactly "{{name}}" (nothing else) is replaced by the raw
// parameter value — so a numeric parameter becomes a JSON number, not a
// stringified number. A leaf containing "{{name}}" amid other text has the
// token replaced by the parameter's stringified form.
func substituteValue(value interface{}, params map[string]interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		if m := placeholderPattern.FindStringSubmatch(v); m != nil && m[0] == v {
			val, ok := params[m[1]]
			if !ok {
				return nil, fmt.Errorf("unknown template parameter: %s", m[1])
			}
			return val, nil
		}
		return substituteString(v, params), nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, child := range v {
			resolved, err := substituteValue(child, params)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, child := range v {
			resolved, err := substituteValue(child, params)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

// substituteString replaces every "{{name}}" token in s with the
// stringified form of the corresponding parameter. Unknown tokens are left
// untouched.
func substituteString(s string, params map[string]interface{}) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(token string) string {
		m := placeholderPattern.FindStringSubmatch(token)
		if m == nil {
			return token
		}
		val, ok := params[m[1]]
		if !ok {
			return token
		}
		return stringify(val)
	})
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		buf, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(buf)
	}
}
