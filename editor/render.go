package editor

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/flowpad/flowpad/graph"
)

// Renderer draws one node as a terminal box.
type Renderer func(n graph.Node, selected bool) string

var (
	selectedColor = lipgloss.Color("205")

	defaultStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("245")).
			Padding(0, 1)

	decisionStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("220")).
			Foreground(lipgloss.Color("220")).
			Padding(0, 1)

	processStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 2)

	startEndStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("42")).
			Foreground(lipgloss.Color("42")).
			Bold(true).
			Padding(0, 3)
)

var renderers = map[graph.NodeType]Renderer{
	graph.TypeDefault: func(n graph.Node, selected bool) string {
		return highlight(defaultStyle, selected).Render(n.Data.Label)
	},
	graph.TypeDecision: func(n graph.Node, selected bool) string {
		return highlight(decisionStyle, selected).Render("◇ " + n.Data.Label + " ?")
	},
	graph.TypeProcess: func(n graph.Node, selected bool) string {
		return highlight(processStyle, selected).Render("▸ " + n.Data.Label)
	},
	graph.TypeStartEnd: func(n graph.Node, selected bool) string {
		return highlight(startEndStyle, selected).Render(n.Data.Label)
	},
}

// RenderNode draws n with the renderer for its type; unknown types are drawn
// as default nodes.
func RenderNode(n graph.Node, selected bool) string {
	r, ok := renderers[n.Type.Normalize()]
	if !ok {
		r = renderers[graph.TypeDefault]
	}
	return r(n, selected)
}

func highlight(s lipgloss.Style, selected bool) lipgloss.Style {
	if !selected {
		return s
	}
	return s.BorderForeground(selectedColor).BorderStyle(lipgloss.ThickBorder())
}
