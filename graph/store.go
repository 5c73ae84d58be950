// Package graph holds the in-memory node/edge store of an open flow and the
// controller that turns canvas gestures into store mutations.
package graph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/meikuraledutech/apiflow"
)

var (
	ErrInvalidNode   = errors.New("graph: node id is required")
	ErrDuplicateNode = errors.New("graph: duplicate node id")
	ErrDuplicateEdge = errors.New("graph: duplicate edge id")
	ErrUnknownNode   = errors.New("graph: edge endpoint does not exist")
	ErrStartTarget   = errors.New("graph: start node cannot receive edges")
)

// Snapshot is an immutable copy of the store contents.
type Snapshot struct {
	Revision uint64
	Nodes    []apiflow.Node
	Edges    []apiflow.Edge
}

// Store is the authoritative node and edge collection of one open flow.
// All methods are safe for concurrent use. Observers are notified after
// every mutation that changed something, outside the store lock.
type Store struct {
	mu       sync.Mutex
	nodes    []apiflow.Node
	edges    []apiflow.Edge
	revision uint64

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Snapshot)
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{subs: make(map[int]func(Snapshot))}
}

// Subscribe registers fn to receive a snapshot after each mutation.
// The returned function cancels the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Snapshot returns a deep copy of the current contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Revision: s.revision,
		Nodes:    apiflow.CloneNodes(s.nodes),
		Edges:    apiflow.CloneEdges(s.edges),
	}
}

// Revision returns the number of effective mutations so far.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Len returns the node and edge counts.
func (s *Store) Len() (nodes, edges int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes), len(s.edges)
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (apiflow.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.nodeIndex(id); i >= 0 {
		return s.nodes[i].Clone(), true
	}
	return apiflow.Node{}, false
}

// Edge returns the edge with the given id.
func (s *Store) Edge(id string) (apiflow.Edge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.edgeIndex(id); i >= 0 {
		return s.edges[i], true
	}
	return apiflow.Edge{}, false
}

// HasNode reports whether a node id is present.
func (s *Store) HasNode(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodeIndex(id) >= 0
}

// AddNode appends a node.
func (s *Store) AddNode(n apiflow.Node) error {
	if n.ID == "" {
		return ErrInvalidNode
	}
	s.mu.Lock()
	if s.nodeIndex(n.ID) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	s.nodes = append(s.nodes, n.Clone())
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// AddNodeSeq appends n under the id "{prefix}-{k}", where k is one above
// every id of that shape already stored, so ids never collide after
// deletions. The id is picked under the store lock.
func (s *Store) AddNodeSeq(prefix string, n apiflow.Node) (apiflow.Node, error) {
	if prefix == "" {
		return apiflow.Node{}, ErrInvalidNode
	}
	s.mu.Lock()
	n.ID = s.nextIDLocked(prefix + "-")
	s.nodes = append(s.nodes, n.Clone())
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	return n, nil
}

func (s *Store) nextIDLocked(prefix string) string {
	last := 0
	for _, n := range s.nodes {
		rest, ok := strings.CutPrefix(n.ID, prefix)
		if !ok {
			continue
		}
		if seq, err := strconv.Atoi(rest); err == nil && seq > last {
			last = seq
		}
	}
	return prefix + strconv.Itoa(last+1)
}

// AddEdge appends an edge. Both endpoints must exist and the target must not
// be a start node.
func (s *Store) AddEdge(e apiflow.Edge) error {
	s.mu.Lock()
	if err := s.checkEdgeLocked(e); err != nil {
		s.mu.Unlock()
		return err
	}
	s.edges = append(s.edges, e)
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

func (s *Store) checkEdgeLocked(e apiflow.Edge) error {
	if s.edgeIndex(e.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateEdge, e.ID)
	}
	if s.nodeIndex(e.Source) < 0 {
		return fmt.Errorf("%w: source %q", ErrUnknownNode, e.Source)
	}
	ti := s.nodeIndex(e.Target)
	if ti < 0 {
		return fmt.Errorf("%w: target %q", ErrUnknownNode, e.Target)
	}
	if s.nodes[ti].IsStart() {
		return ErrStartTarget
	}
	return nil
}

// UpdateNode applies patch to the stored node. The node id cannot be changed.
func (s *Store) UpdateNode(id string, patch func(*apiflow.Node)) error {
	s.mu.Lock()
	i := s.nodeIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", apiflow.ErrNodeNotFound, id)
	}
	n := s.nodes[i].Clone()
	patch(&n)
	n.ID = id
	s.nodes[i] = n
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// RemoveNode deletes a node together with every edge touching it.
// It reports whether the node existed.
func (s *Store) RemoveNode(id string) bool {
	s.mu.Lock()
	i := s.nodeIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)

	kept := s.edges[:0]
	for _, e := range s.edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}
	s.edges = kept
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	return true
}

// RemoveEdge deletes an edge and reports whether it existed.
func (s *Store) RemoveEdge(id string) bool {
	s.mu.Lock()
	i := s.edgeIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.edges = append(s.edges[:i], s.edges[i+1:]...)
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	return true
}

// ReplaceAll swaps in a loaded graph wholesale. Loaded graphs are trusted:
// no endpoint or start-node checks are applied.
func (s *Store) ReplaceAll(nodes []apiflow.Node, edges []apiflow.Edge) {
	s.mu.Lock()
	s.nodes = apiflow.CloneNodes(nodes)
	s.edges = apiflow.CloneEdges(edges)
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
}

func (s *Store) commitLocked() Snapshot {
	s.revision++
	return s.snapshotLocked()
}

func (s *Store) publish(snap Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) nodeIndex(id string) int {
	for i := range s.nodes {
		if s.nodes[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) edgeIndex(id string) int {
	for i := range s.edges {
		if s.edges[i].ID == id {
			return i
		}
	}
	return -1
}
