package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNodeNotFound    = errors.New("node not found")
	ErrEdgeNotFound    = errors.New("edge not found")
	ErrDuplicateNode   = errors.New("duplicate node id")
	ErrDuplicateEdge   = errors.New("duplicate edge id")
	ErrDanglingEdge    = errors.New("edge references a missing node")
	ErrInvalidNodeType = errors.New("invalid node type")
	ErrEmptyID         = errors.New("empty id")
)

// ValidationError describes why a graph payload is inconsistent.
type ValidationError struct {
	Message      string   `json:"message"`
	Problems     []string `json:"errors,omitempty"`
	InvalidEdges []Edge   `json:"invalid_edges,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Problems, "; "))
}

// Validate checks the invariants every persisted graph must hold: node and
// edge ids are non-empty and unique, node types are known, and every edge
// joins two existing nodes.
func (d Data) Validate() error {
	var problems []string
	nodeIDs := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			problems = append(problems, "node with empty id")
			continue
		}
		if nodeIDs[n.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", n.ID))
		}
		nodeIDs[n.ID] = true
		if !n.Type.Valid() {
			problems = append(problems, fmt.Sprintf("node %q has unknown type %q", n.ID, n.Type))
		}
	}

	var invalid []Edge
	edgeIDs := make(map[string]bool, len(d.Edges))
	for _, e := range d.Edges {
		if e.ID == "" {
			problems = append(problems, "edge with empty id")
		} else if edgeIDs[e.ID] {
			problems = append(problems, fmt.Sprintf("duplicate edge id %q", e.ID))
		}
		edgeIDs[e.ID] = true
		if !nodeIDs[e.Source] || !nodeIDs[e.Target] {
			invalid = append(invalid, e)
		}
	}

	if len(invalid) > 0 {
		return &ValidationError{
			Message:      "Invalid graph: some edges have invalid nodes.",
			Problems:     problems,
			InvalidEdges: invalid,
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Message: "Invalid graph.", Problems: problems}
	}
	return nil
}

// OutgoingEdges returns the edges whose source is nodeID, in order.
func (d Data) OutgoingEdges(nodeID string) []Edge {
	out := make([]Edge, 0)
	for _, e := range d.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// IncidentEdges returns the edges that touch nodeID from either side.
func (d Data) IncidentEdges(nodeID string) []Edge {
	out := make([]Edge, 0)
	for _, e := range d.Edges {
		if e.Source == nodeID || e.Target == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// ConnectedNodes returns every node reachable from nodeID by following edges
// forward, starting with the node itself, in depth-first visit order.
func (d Data) ConnectedNodes(nodeID string) ([]Node, error) {
	byID := make(map[string]Node, len(d.Nodes))
	for _, n := range d.Nodes {
		byID[n.ID] = n
	}
	if _, ok := byID[nodeID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}

	adj := make(map[string][]string)
	for _, e := range d.Edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	visited := map[string]bool{}
	var order []Node
	stack := []string{nodeID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		if n, ok := byID[id]; ok {
			order = append(order, n)
		}
		// Push in reverse so the first edge is explored first.
		next := adj[id]
		for i := len(next) - 1; i >= 0; i-- {
			if !visited[next[i]] {
				stack = append(stack, next[i])
			}
		}
	}
	return order, nil
}

// FindNode returns the node with the given id.
func (d Data) FindNode(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
