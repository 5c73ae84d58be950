package apiflow

import (
	"encoding/json"
	"testing"
)

func TestFlow_IsNew(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"", true},
		{NewFlowID, true},
		{"42", false},
	}
	for _, tt := range tests {
		f := Flow{ID: tt.id}
		if got := f.IsNew(); got != tt.want {
			t.Errorf("Flow{ID: %q}.IsNew() = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestFlow_CloneIsDeep(t *testing.T) {
	f := &Flow{
		ID:   "1",
		Name: "orders",
		Nodes: []Node{
			{ID: "url-1", Type: RendererType, Data: NodeData{NodeType: "url", Config: json.RawMessage(`{"url":"a"}`)}},
		},
		Edges: []Edge{{ID: "e1", Source: "url-1", Target: "url-1"}},
	}

	c := f.Clone()
	c.Nodes[0].Data.Config[2] = 'X'
	c.Nodes[0].Position.X = 10
	c.Edges[0].Target = "other"

	if string(f.Nodes[0].Data.Config) != `{"url":"a"}` {
		t.Errorf("original config mutated: %s", f.Nodes[0].Data.Config)
	}
	if f.Nodes[0].Position.X != 0 {
		t.Errorf("original position mutated")
	}
	if f.Edges[0].Target != "url-1" {
		t.Errorf("original edge mutated")
	}
}

func TestFlow_Node(t *testing.T) {
	f := Flow{Nodes: []Node{{ID: "start-1", Data: NodeData{NodeType: StartNodeType}}}}

	n := f.Node("start-1")
	if n == nil || !n.IsStart() {
		t.Fatalf("Node(start-1) = %+v, want start node", n)
	}
	if f.Node("missing") != nil {
		t.Errorf("Node(missing) should be nil")
	}
}
