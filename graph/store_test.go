package graph

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/meikuraledutech/apiflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkNode(id, nodeType string) apiflow.Node {
	return apiflow.Node{
		ID:   id,
		Type: apiflow.RendererType,
		Data: apiflow.NodeData{NodeType: nodeType, Label: nodeType},
	}
}

func seeded(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.AddNode(mkNode("start-1", "start")))
	require.NoError(t, s.AddNode(mkNode("url-1", "url")))
	require.NoError(t, s.AddNode(mkNode("output-1", "output")))
	require.NoError(t, s.AddEdge(apiflow.Edge{ID: "e1", Source: "start-1", Target: "url-1"}))
	require.NoError(t, s.AddEdge(apiflow.Edge{ID: "e2", Source: "url-1", Target: "output-1"}))
	return s
}

func TestStore_AddNode(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddNode(mkNode("a", "url")))

	assert.ErrorIs(t, s.AddNode(mkNode("a", "url")), ErrDuplicateNode)
	assert.ErrorIs(t, s.AddNode(mkNode("", "url")), ErrInvalidNode)

	n, e := s.Len()
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, e)
	assert.Equal(t, uint64(1), s.Revision())
}

func TestStore_AddEdge(t *testing.T) {
	s := seeded(t)

	tests := []struct {
		name string
		edge apiflow.Edge
		want error
	}{
		{"unknown source", apiflow.Edge{ID: "x1", Source: "ghost", Target: "url-1"}, ErrUnknownNode},
		{"unknown target", apiflow.Edge{ID: "x2", Source: "url-1", Target: "ghost"}, ErrUnknownNode},
		{"into start", apiflow.Edge{ID: "x3", Source: "url-1", Target: "start-1"}, ErrStartTarget},
		{"duplicate id", apiflow.Edge{ID: "e1", Source: "url-1", Target: "output-1"}, ErrDuplicateEdge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.AddEdge(tt.edge), tt.want)
		})
	}

	_, edges := s.Len()
	assert.Equal(t, 2, edges)
}

func TestStore_RemoveNodeCascades(t *testing.T) {
	s := seeded(t)

	assert.True(t, s.RemoveNode("url-1"))
	snap := s.Snapshot()
	assert.Len(t, snap.Nodes, 2)
	assert.Empty(t, snap.Edges, "edges touching a removed node must go with it")

	for _, e := range snap.Edges {
		assert.True(t, s.HasNode(e.Source))
		assert.True(t, s.HasNode(e.Target))
	}
}

func TestStore_IdempotentDeletes(t *testing.T) {
	s := seeded(t)
	var notified int
	cancel := s.Subscribe(func(Snapshot) { notified++ })
	defer cancel()

	rev := s.Revision()
	assert.False(t, s.RemoveNode("ghost"))
	assert.False(t, s.RemoveEdge("ghost"))
	assert.Equal(t, rev, s.Revision())
	assert.Zero(t, notified)

	assert.True(t, s.RemoveEdge("e1"))
	assert.False(t, s.RemoveEdge("e1"))
	assert.Equal(t, 1, notified)
}

func TestStore_UpdateNode(t *testing.T) {
	s := seeded(t)

	err := s.UpdateNode("url-1", func(n *apiflow.Node) {
		n.ID = "renamed"
		n.Data.Label = "Orders API"
	})
	require.NoError(t, err)

	n, ok := s.Node("url-1")
	require.True(t, ok)
	assert.Equal(t, "Orders API", n.Data.Label)
	assert.False(t, s.HasNode("renamed"))

	assert.ErrorIs(t, s.UpdateNode("ghost", func(*apiflow.Node) {}), apiflow.ErrNodeNotFound)
}

func TestStore_SnapshotIsolation(t *testing.T) {
	s := NewStore()
	n := mkNode("url-1", "url")
	n.Data.Config = json.RawMessage(`{"url":"a"}`)
	require.NoError(t, s.AddNode(n))

	snap := s.Snapshot()
	snap.Nodes[0].Data.Label = "mutated"
	snap.Nodes[0].Data.Config[2] = 'X'

	got, _ := s.Node("url-1")
	assert.Equal(t, "url", got.Data.Label)
	assert.JSONEq(t, `{"url":"a"}`, string(got.Data.Config))
}

func TestStore_SubscribeReceivesEverySnapshot(t *testing.T) {
	s := NewStore()
	var revs []uint64
	cancel := s.Subscribe(func(snap Snapshot) { revs = append(revs, snap.Revision) })

	require.NoError(t, s.AddNode(mkNode("a", "url")))
	require.NoError(t, s.AddNode(mkNode("b", "output")))
	require.NoError(t, s.AddEdge(apiflow.Edge{ID: "e", Source: "a", Target: "b"}))
	s.ReplaceAll(nil, nil)

	cancel()
	require.NoError(t, s.AddNode(mkNode("c", "url")))

	assert.Equal(t, []uint64{1, 2, 3, 4}, revs)
}

func TestStore_ReplaceAllTrustsInput(t *testing.T) {
	s := seeded(t)

	// A loaded graph may hold edges into start; it is not re-checked.
	s.ReplaceAll(
		[]apiflow.Node{mkNode("start-1", "start"), mkNode("a", "url")},
		[]apiflow.Edge{{ID: "back", Source: "a", Target: "start-1"}},
	)
	snap := s.Snapshot()
	assert.Len(t, snap.Nodes, 2)
	assert.Len(t, snap.Edges, 1)
}

func TestStore_ConcurrentMutations(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.AddNode(mkNode(string(rune('A'+i%26))+string(rune('a'+i/26)), "url"))
			_ = s.Snapshot()
		}(i)
	}
	wg.Wait()

	n, _ := s.Len()
	assert.Equal(t, 50, n)
}

func TestStore_AddNodeSeq(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddNode(mkNode("url-7", "url")))
	require.NoError(t, s.AddNode(mkNode("url-x", "url")))

	n, err := s.AddNodeSeq("url", mkNode("", "url"))
	require.NoError(t, err)
	assert.Equal(t, "url-8", n.ID)
	assert.True(t, s.HasNode("url-8"))

	n, err = s.AddNodeSeq("output", mkNode("", "output"))
	require.NoError(t, err)
	assert.Equal(t, "output-1", n.ID)

	_, err = s.AddNodeSeq("", mkNode("", "url"))
	assert.ErrorIs(t, err, ErrInvalidNode)
}
