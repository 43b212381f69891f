package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/alpkeskin/gotoon"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/flowpad/flowpad/graph"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatTOON = "toon"
	formatHCL  = "hcl"
)

// FlowchartJSON is the machine-readable form of one flowchart in show output.
type FlowchartJSON struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	CreatedAt string       `json:"created_at"`
	Nodes     []graph.Node `json:"nodes"`
	Edges     []graph.Edge `json:"edges"`
}

// SummaryJSON is one line of list output.
type SummaryJSON struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

var tableBorders = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

// pickFormat maps the --json/--toon flags to an output format.
func pickFormat(asJSON, asTOON bool) string {
	switch {
	case asJSON:
		return formatJSON
	case asTOON:
		return formatTOON
	default:
		return formatText
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeTOON(w io.Writer, v any) error {
	output, err := gotoon.Encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode TOON: %w", err)
	}
	_, err = fmt.Fprintln(w, output)
	return err
}

// writeStructured writes v as JSON or TOON. It reports false for text output,
// which each command renders itself.
func writeStructured(w io.Writer, v any, format string) (bool, error) {
	switch format {
	case formatJSON:
		return true, writeJSON(w, v)
	case formatTOON:
		return true, writeTOON(w, v)
	default:
		return false, nil
	}
}

func toSummaryJSON(items []graph.Summary) []SummaryJSON {
	out := make([]SummaryJSON, len(items))
	for i, s := range items {
		out[i] = SummaryJSON{
			ID:        s.ID,
			Title:     s.Title,
			CreatedAt: s.CreatedAt.Format("2006-01-02 15:04:05"),
		}
	}
	return out
}

func toFlowchartJSON(f *graph.Flowchart) FlowchartJSON {
	out := FlowchartJSON{
		ID:        f.ID,
		Title:     f.Title,
		CreatedAt: f.CreatedAt.Format("2006-01-02 15:04:05"),
		Nodes:     f.Data.Nodes,
		Edges:     f.Data.Edges,
	}
	if out.Nodes == nil {
		out.Nodes = []graph.Node{}
	}
	if out.Edges == nil {
		out.Edges = []graph.Edge{}
	}
	return out
}

func renderSummaryTable(items []graph.Summary) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorders).
		Headers("ID", "Title", "Created")
	for _, s := range items {
		t.Row(s.ID, s.Title, s.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return t.String()
}

func renderNodeTable(nodes []graph.Node) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorders).
		Headers("ID", "Label", "Type", "X", "Y")
	for _, n := range nodes {
		t.Row(n.ID, n.Data.Label, string(n.Type.Normalize()),
			fmt.Sprintf("%.2f", n.Position.X),
			fmt.Sprintf("%.2f", n.Position.Y))
	}
	return t.String()
}

func formatEdge(e graph.Edge) string {
	line := fmt.Sprintf("%s: %s -> %s", e.ID, e.Source, e.Target)
	if e.Animated {
		line += " (animated)"
	}
	return line
}

func printFlowchart(w io.Writer, f *graph.Flowchart) {
	fmt.Fprintf(w, "%s\n", f.Title)
	fmt.Fprintf(w, "id: %s  created: %s\n\n", f.ID, f.CreatedAt.Local().Format("2006-01-02 15:04"))

	if len(f.Data.Nodes) == 0 {
		fmt.Fprintln(w, "No nodes.")
		return
	}
	fmt.Fprintln(w, renderNodeTable(f.Data.Nodes))

	if len(f.Data.Edges) == 0 {
		return
	}
	fmt.Fprintln(w, "\nEdges:")
	for _, e := range f.Data.Edges {
		fmt.Fprintf(w, "  %s\n", formatEdge(e))
	}
}
