// Package graph holds the flowchart data model and the in-memory state store
// that the editor mutates and the autosave scheduler snapshots.
package graph

import (
	"encoding/json"
	"time"
)

// NodeType selects how a node is drawn.
type NodeType string

const (
	TypeDefault  NodeType = "default"
	TypeDecision NodeType = "decision"
	TypeProcess  NodeType = "process"
	TypeStartEnd NodeType = "startEnd"
)

// NodeTypes lists every known node type in cycling order.
var NodeTypes = []NodeType{TypeDefault, TypeDecision, TypeProcess, TypeStartEnd}

// Valid reports whether t is a known node type. The empty type is valid and
// means default.
func (t NodeType) Valid() bool {
	switch t {
	case "", TypeDefault, TypeDecision, TypeProcess, TypeStartEnd:
		return true
	default:
		return false
	}
}

// Normalize maps the empty type to TypeDefault.
func (t NodeType) Normalize() NodeType {
	if t == "" {
		return TypeDefault
	}
	return t
}

// Next returns the type after t in NodeTypes, wrapping around.
func (t NodeType) Next() NodeType {
	t = t.Normalize()
	for i, nt := range NodeTypes {
		if nt == t {
			return NodeTypes[(i+1)%len(NodeTypes)]
		}
	}
	return TypeDefault
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type NodeData struct {
	Label string `json:"label"`
}

// Node is a positioned, labeled, typed vertex.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Data     NodeData `json:"data"`
	Position Position `json:"position"`
}

type EdgeStyle struct {
	Stroke string `json:"stroke,omitempty"`
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID       string    `json:"id"`
	Source   string    `json:"source"`
	Target   string    `json:"target"`
	Animated bool      `json:"animated"`
	Style    EdgeStyle `json:"style"`
}

// Data is the graph payload of a flowchart.
type Data struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// MarshalJSON encodes nil slices as empty arrays so the backend never sees null.
func (d Data) MarshalJSON() ([]byte, error) {
	type plain Data
	out := plain(d)
	if out.Nodes == nil {
		out.Nodes = []Node{}
	}
	if out.Edges == nil {
		out.Edges = []Edge{}
	}
	return json.Marshal(out)
}

// Clone returns a deep copy of d.
func (d Data) Clone() Data {
	out := Data{
		Nodes: make([]Node, len(d.Nodes)),
		Edges: make([]Edge, len(d.Edges)),
	}
	copy(out.Nodes, d.Nodes)
	copy(out.Edges, d.Edges)
	return out
}

// Flowchart is a named document holding a set of nodes and edges.
type Flowchart struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Data      Data      `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is the list representation of a flowchart.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary returns the list representation of f.
func (f Flowchart) Summary() Summary {
	return Summary{ID: f.ID, Title: f.Title, CreatedAt: f.CreatedAt}
}

// Document is the client-writable part of a flowchart: what create and save
// send to the backend.
type Document struct {
	Title string `json:"title"`
	Data  Data   `json:"data"`
}

// Document returns the writable part of f.
func (f Flowchart) Document() Document {
	return Document{Title: f.Title, Data: f.Data.Clone()}
}

const (
	// DefaultTitle is used for flowcharts created without a title.
	DefaultTitle = "New Flowchart"
	// UntitledTitle replaces an empty title on load and on save.
	UntitledTitle = "Untitled Flowchart"
	// MaxTitleLength bounds titles accepted by the backend.
	MaxTitleLength = 255
)
