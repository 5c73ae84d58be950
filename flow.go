package apiflow

import (
	"bytes"
	"encoding/json"
)

// RendererType is the single node renderer every flow node uses.
const RendererType = "custom"

// NewFlowID is the sentinel id of a flow that has not been saved yet.
const NewFlowID = "new"

// StartNodeType is the node type that may not receive incoming edges.
const StartNodeType = "start"

// Flow is a named graph of configuration nodes and directed edges.
type Flow struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Status  string `json:"status,omitempty"`
	Version int    `json:"version,omitempty"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
}

// Position holds canvas coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a typed unit of the flow graph.
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// NodeData carries the node type key, its display metadata and its configuration.
// Config is always valid JSON or empty; the wire form is decided by flowjson.
type NodeData struct {
	NodeType string          `json:"nodeType"`
	Label    string          `json:"label"`
	Icon     string          `json:"icon"`
	Config   json.RawMessage `json:"config,omitempty"`
	Group    string          `json:"group,omitempty"`
	GroupID  string          `json:"groupId,omitempty"`
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Summary is the list projection of a persisted flow.
type Summary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status,omitempty"`
	Version int    `json:"version,omitempty"`
}

// IsNew reports whether the flow has never been saved.
func (f *Flow) IsNew() bool {
	return f.ID == "" || f.ID == NewFlowID
}

// Node returns the node with the given id, or nil.
func (f *Flow) Node(id string) *Node {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i]
		}
	}
	return nil
}

// Summary projects the flow for listings.
func (f *Flow) Summary() Summary {
	return Summary{ID: f.ID, Name: f.Name, Status: f.Status, Version: f.Version}
}

// Clone returns a deep copy of the flow.
func (f *Flow) Clone() *Flow {
	out := *f
	out.Nodes = CloneNodes(f.Nodes)
	out.Edges = CloneEdges(f.Edges)
	return &out
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	if n.Data.Config != nil {
		n.Data.Config = bytes.Clone(n.Data.Config)
	}
	return n
}

// IsStart reports whether the node is the distinguished start node.
func (n Node) IsStart() bool {
	return n.Data.NodeType == StartNodeType
}

// CloneNodes deep-copies a node slice. A nil slice becomes an empty one.
func CloneNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// CloneEdges copies an edge slice. A nil slice becomes an empty one.
func CloneEdges(edges []Edge) []Edge {
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}
