// Package seed reads and writes flowchart documents as files, so charts can
// be created from, and pushed from, something checked into a repository.
//
// Two formats are accepted. HCL files (.hcl) describe nodes and edges as
// blocks:
//
//	title = "Checkout"
//
//	node "start" {
//	  type  = "startEnd"
//	  label = "Start"
//	  x     = 0
//	  y     = 0
//	}
//
//	edge {
//	  source = "start"
//	  target = "pay"
//	}
//
// JSON files (.json) hold the REST document, {"title": ..., "data": ...}, as
// printed by `flowpad show --json`.
package seed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/flowpad/flowpad/graph"
)

type hclFile struct {
	Title string     `hcl:"title,optional"`
	Nodes []*hclNode `hcl:"node,block"`
	Edges []*hclEdge `hcl:"edge,block"`
}

type hclNode struct {
	ID    string  `hcl:"id,label"`
	Type  string  `hcl:"type,optional"`
	Label string  `hcl:"label,optional"`
	X     float64 `hcl:"x,optional"`
	Y     float64 `hcl:"y,optional"`
}

type hclEdge struct {
	ID       string `hcl:"id,optional"`
	Source   string `hcl:"source"`
	Target   string `hcl:"target"`
	Animated *bool  `hcl:"animated,optional"`
	Stroke   string `hcl:"stroke,optional"`
}

// Load reads a flowchart document from path.
func Load(path string) (graph.Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return graph.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(path, src)
}

// Parse decodes src, choosing the format from filename's extension. The
// result has passed graph validation.
func Parse(filename string, src []byte) (graph.Document, error) {
	var (
		doc graph.Document
		err error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".hcl":
		doc, err = parseHCL(filename, src)
	case ".json":
		err = json.Unmarshal(src, &doc)
		if err != nil {
			err = fmt.Errorf("failed to decode %s: %w", filename, err)
		}
	default:
		return graph.Document{}, fmt.Errorf("unsupported flowchart file %s (want .hcl or .json)", filename)
	}
	if err != nil {
		return graph.Document{}, err
	}

	doc.Data = doc.Data.Clone()
	for i := range doc.Data.Nodes {
		doc.Data.Nodes[i].Type = doc.Data.Nodes[i].Type.Normalize()
	}
	if err := doc.Data.Validate(); err != nil {
		return graph.Document{}, fmt.Errorf("%s: %w", filename, err)
	}
	return doc, nil
}

func parseHCL(filename string, src []byte) (graph.Document, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return graph.Document{}, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return graph.Document{}, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	doc := graph.Document{Title: parsed.Title}
	for _, n := range parsed.Nodes {
		label := n.Label
		if label == "" {
			label = n.ID
		}
		doc.Data.Nodes = append(doc.Data.Nodes, graph.Node{
			ID:       n.ID,
			Type:     graph.NodeType(n.Type),
			Data:     graph.NodeData{Label: label},
			Position: graph.Position{X: n.X, Y: n.Y},
		})
	}
	for _, e := range parsed.Edges {
		edge := graph.NewEdge(e.Source, e.Target)
		if e.ID != "" {
			edge.ID = e.ID
		}
		if e.Animated != nil {
			edge.Animated = *e.Animated
		}
		if e.Stroke != "" {
			edge.Style.Stroke = e.Stroke
		}
		doc.Data.Edges = append(doc.Data.Edges, edge)
	}
	return doc, nil
}

// EncodeHCL renders doc in the HCL format Parse reads.
func EncodeHCL(doc graph.Document) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	body.SetAttributeValue("title", cty.StringVal(doc.Title))

	for _, n := range doc.Data.Nodes {
		body.AppendNewline()
		nb := body.AppendNewBlock("node", []string{n.ID}).Body()
		nb.SetAttributeValue("type", cty.StringVal(string(n.Type.Normalize())))
		nb.SetAttributeValue("label", cty.StringVal(n.Data.Label))
		nb.SetAttributeValue("x", cty.NumberFloatVal(n.Position.X))
		nb.SetAttributeValue("y", cty.NumberFloatVal(n.Position.Y))
	}
	for _, e := range doc.Data.Edges {
		body.AppendNewline()
		eb := body.AppendNewBlock("edge", nil).Body()
		eb.SetAttributeValue("id", cty.StringVal(e.ID))
		eb.SetAttributeValue("source", cty.StringVal(e.Source))
		eb.SetAttributeValue("target", cty.StringVal(e.Target))
		eb.SetAttributeValue("animated", cty.BoolVal(e.Animated))
		if e.Style.Stroke != "" {
			eb.SetAttributeValue("stroke", cty.StringVal(e.Style.Stroke))
		}
	}
	return f.Bytes()
}
