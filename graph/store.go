package graph

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// Snapshot is the full state of a Store at one point in time. It never
// aliases store memory.
type Snapshot struct {
	Title    string
	Data     Data
	Revision uint64
}

// Document returns the part of the snapshot the backend persists.
func (s Snapshot) Document() Document {
	return Document{Title: s.Title, Data: s.Data.Clone()}
}

// Store holds the working copy of one open flowchart. Every mutation either
// applies fully and bumps the revision, or returns an error and leaves the
// store untouched; no mutation can leave an edge pointing at a missing node.
type Store struct {
	mu       sync.RWMutex
	title    string
	nodes    []Node
	edges    []Edge
	revision uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Title:    s.title,
		Data:     Data{Nodes: s.nodes, Edges: s.edges}.Clone(),
		Revision: s.revision,
	}
}

// Revision returns a counter bumped by every successful mutation.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

func (s *Store) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title
}

// ReplaceAll swaps in a complete graph, as on initial load. The new graph must
// satisfy Data.Validate.
func (s *Store) ReplaceAll(nodes []Node, edges []Edge, title string) error {
	d := Data{Nodes: nodes, Edges: edges}.Clone()
	if err := d.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = d.Nodes
	s.edges = d.Edges
	s.title = title
	s.revision++
	return nil
}

func (s *Store) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
	s.revision++
}

func (s *Store) AddNode(n Node) error {
	if n.ID == "" {
		return fmt.Errorf("add node: %w", ErrEmptyID)
	}
	if !n.Type.Valid() {
		return fmt.Errorf("add node %s: %w: %q", n.ID, ErrInvalidNodeType, n.Type)
	}
	n.Type = n.Type.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nodeIndex(n.ID) >= 0 {
		return fmt.Errorf("add node %s: %w", n.ID, ErrDuplicateNode)
	}
	s.nodes = append(s.nodes, n)
	s.revision++
	return nil
}

func (s *Store) AddEdge(e Edge) error {
	if e.ID == "" {
		return fmt.Errorf("add edge: %w", ErrEmptyID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.edgeIndex(e.ID) >= 0 {
		return fmt.Errorf("add edge %s: %w", e.ID, ErrDuplicateEdge)
	}
	if s.nodeIndex(e.Source) < 0 || s.nodeIndex(e.Target) < 0 {
		return fmt.Errorf("add edge %s (%s -> %s): %w", e.ID, e.Source, e.Target, ErrDanglingEdge)
	}
	s.edges = append(s.edges, e)
	s.revision++
	return nil
}

// DeleteNode removes the node and every edge where it is source or target.
func (s *Store) DeleteNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.nodeIndex(id)
	if idx < 0 {
		return fmt.Errorf("delete node %s: %w", id, ErrNodeNotFound)
	}

	nodes := make([]Node, 0, len(s.nodes)-1)
	nodes = append(nodes, s.nodes[:idx]...)
	nodes = append(nodes, s.nodes[idx+1:]...)

	edges := make([]Edge, 0, len(s.edges))
	for _, e := range s.edges {
		if e.Source != id && e.Target != id {
			edges = append(edges, e)
		}
	}

	s.nodes = nodes
	s.edges = edges
	s.revision++
	return nil
}

func (s *Store) DeleteEdge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.edgeIndex(id)
	if idx < 0 {
		return fmt.Errorf("delete edge %s: %w", id, ErrEdgeNotFound)
	}
	edges := make([]Edge, 0, len(s.edges)-1)
	edges = append(edges, s.edges[:idx]...)
	edges = append(edges, s.edges[idx+1:]...)
	s.edges = edges
	s.revision++
	return nil
}

func (s *Store) UpdateNodePosition(id string, pos Position) error {
	return s.updateNode(id, func(n *Node) error {
		n.Position = pos
		return nil
	})
}

func (s *Store) UpdateNodeLabel(id, label string) error {
	return s.updateNode(id, func(n *Node) error {
		n.Data.Label = label
		return nil
	})
}

func (s *Store) SetNodeType(id string, t NodeType) error {
	if !t.Valid() {
		return fmt.Errorf("set type of %s: %w: %q", id, ErrInvalidNodeType, t)
	}
	return s.updateNode(id, func(n *Node) error {
		n.Type = t.Normalize()
		return nil
	})
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.nodeIndex(id); idx >= 0 {
		return s.nodes[idx], true
	}
	return Node{}, false
}

// NextNodeID returns an unused id of the form node-N, starting from the node
// count plus one.
func (s *Store) NextNodeID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for n := len(s.nodes) + 1; ; n++ {
		id := fmt.Sprintf("node-%d", n)
		if s.nodeIndex(id) < 0 {
			return id
		}
	}
}

func (s *Store) OutgoingEdges(nodeID string) []Edge {
	return s.Snapshot().Data.OutgoingEdges(nodeID)
}

func (s *Store) ConnectedNodes(nodeID string) ([]Node, error) {
	return s.Snapshot().Data.ConnectedNodes(nodeID)
}

func (s *Store) updateNode(id string, apply func(*Node) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.nodeIndex(id)
	if idx < 0 {
		return fmt.Errorf("update node %s: %w", id, ErrNodeNotFound)
	}
	n := s.nodes[idx]
	if err := apply(&n); err != nil {
		return err
	}
	s.nodes[idx] = n
	s.revision++
	return nil
}

func (s *Store) nodeIndex(id string) int {
	for i, n := range s.nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) edgeIndex(id string) int {
	for i, e := range s.edges {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// NewEdge builds an animated edge between source and target with a random
// fully saturated stroke color.
func NewEdge(source, target string) Edge {
	return Edge{
		ID:       fmt.Sprintf("e%s-%s", source, target),
		Source:   source,
		Target:   target,
		Animated: true,
		Style:    EdgeStyle{Stroke: fmt.Sprintf("hsl(%d, 100%%, 50%%)", rand.IntN(360))},
	}
}
