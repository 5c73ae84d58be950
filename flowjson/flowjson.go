// Package flowjson converts flows to and from the JSON document exchanged with
// the flow server, the validators and exported .json files.
//
// On the wire every node config is a string. In memory it is the structured
// JSON value the string holds; the conversion happens only here.
package flowjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/meikuraledutech/apiflow"
	"github.com/meikuraledutech/apiflow/nodeconfig"
	"github.com/meikuraledutech/apiflow/registry"
)

// Document is the save payload and the export file format.
type Document struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Flow Graph  `json:"flow"`
}

// Graph is the nodes/edges body of a Document.
type Graph struct {
	Nodes []Node         `json:"nodes"`
	Edges []apiflow.Edge `json:"edges"`
}

// Node is a node in wire form.
type Node struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Position apiflow.Position `json:"position"`
	Data     Data             `json:"data"`
}

// Data is NodeData in wire form. Group, GroupID and Icon are always written.
type Data struct {
	NodeType string     `json:"nodeType"`
	Label    string     `json:"label"`
	Icon     string     `json:"icon"`
	Config   ConfigText `json:"config"`
	Group    string     `json:"group"`
	GroupID  string     `json:"groupId"`
}

// ConfigText is a config in wire form. It is written as a JSON string and
// read from either a string or a structured value, which is kept as its JSON text.
type ConfigText string

// UnmarshalJSON accepts a JSON string, null, or any other JSON value.
func (c *ConfigText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*c = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = ConfigText(s)
	default:
		*c = ConfigText(b)
	}
	return nil
}

// ToWire renders an in-memory config as wire text. JSON strings are emitted
// as their contents, any other value as its JSON text. A string whose
// contents would themselves parse as JSON ("null", "42") keeps its quotes so
// FromWire reads it back as the same string.
func ToWire(raw json.RawMessage) ConfigText {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if t := strings.TrimSpace(s); t != "" && json.Valid([]byte(t)) {
				return ConfigText(raw)
			}
			return ConfigText(s)
		}
	}
	return ConfigText(raw)
}

// FromWire parses wire text into the in-memory form: the JSON value it holds,
// or a JSON string when the text is not JSON.
func FromWire(text ConfigText) json.RawMessage {
	s := strings.TrimSpace(string(text))
	if s == "" {
		return nil
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	quoted, _ := json.Marshal(string(text))
	return quoted
}

// Serialize builds the wire document for a flow. Icons are re-stamped from the
// registry; a nil registry means registry.Default(). New flows carry no id.
func Serialize(f *apiflow.Flow, reg *registry.Registry) Document {
	if reg == nil {
		reg = registry.Default()
	}
	doc := Document{
		Name: f.Name,
		Flow: Graph{
			Nodes: make([]Node, len(f.Nodes)),
			Edges: apiflow.CloneEdges(f.Edges),
		},
	}
	if !f.IsNew() {
		doc.ID = f.ID
	}
	for i, n := range f.Nodes {
		doc.Flow.Nodes[i] = Node{
			ID:       n.ID,
			Type:     n.Type,
			Position: n.Position,
			Data: Data{
				NodeType: n.Data.NodeType,
				Label:    n.Data.Label,
				Icon:     reg.Icon(n.Data.NodeType, n.Data.Icon),
				Config:   ToWire(n.Data.Config),
				Group:    n.Data.Group,
				GroupID:  n.Data.GroupID,
			},
		}
	}
	return doc
}

// Deserialize builds a flow from a wire document. Missing node ids become
// "node-{i+1}", missing types become the custom renderer, labels follow the
// config's name and icons come from the registry with the stored icon as fallback.
func Deserialize(doc Document, reg *registry.Registry) *apiflow.Flow {
	if reg == nil {
		reg = registry.Default()
	}
	f := &apiflow.Flow{
		ID:    doc.ID,
		Name:  doc.Name,
		Nodes: make([]apiflow.Node, len(doc.Flow.Nodes)),
		Edges: apiflow.CloneEdges(doc.Flow.Edges),
	}
	for i, wn := range doc.Flow.Nodes {
		f.Nodes[i] = LoadNode(wn, i, reg)
	}
	return f
}

// LoadNode converts the i-th wire node to its in-memory form.
func LoadNode(wn Node, i int, reg *registry.Registry) apiflow.Node {
	n := apiflow.Node{
		ID:       wn.ID,
		Type:     wn.Type,
		Position: wn.Position,
		Data: apiflow.NodeData{
			NodeType: wn.Data.NodeType,
			Icon:     reg.Icon(wn.Data.NodeType, wn.Data.Icon),
			Config:   FromWire(wn.Data.Config),
			Group:    wn.Data.Group,
			GroupID:  wn.Data.GroupID,
		},
	}
	if n.ID == "" {
		n.ID = fmt.Sprintf("node-%d", i+1)
	}
	if n.Type == "" {
		n.Type = apiflow.RendererType
	}
	n.Data.Label = nodeconfig.DeriveLabel(n.Data.Config, wn.Data.Label)
	return n
}

// Marshal encodes a flow as an indented document.
func Marshal(f *apiflow.Flow, reg *registry.Registry) ([]byte, error) {
	data, err := json.MarshalIndent(Serialize(f, reg), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("flowjson: marshal: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a document into a flow.
func Unmarshal(data []byte, reg *registry.Registry) (*apiflow.Flow, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("flowjson: unmarshal: %w", err)
	}
	return Deserialize(doc, reg), nil
}

// FileName is the export file name of a flow.
func FileName(f *apiflow.Flow) string {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		name = "flow"
	}
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, name)
	return name + ".json"
}

// WriteFile exports a flow to path.
func WriteFile(path string, f *apiflow.Flow, reg *registry.Registry) error {
	data, err := Marshal(f, reg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("flowjson: write %s: %w", path, err)
	}
	return nil
}

// ReadFile imports a flow from path.
func ReadFile(path string, reg *registry.Registry) (*apiflow.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("flowjson: read %s: %w", path, err)
	}
	return Unmarshal(data, reg)
}
