package editor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/flowpad/flowpad/autosave"
	"github.com/flowpad/flowpad/graph"
)

const (
	moveStep     = 10.0
	pollInterval = 200 * time.Millisecond
	// rowHeight groups nodes into canvas rows by their y position.
	rowHeight = 60.0
)

type inputMode int

const (
	modeNormal inputMode = iota
	modeLabel
	modeTitle
)

type tickMsg time.Time

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	savingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	savedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	edgeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("229"))
	tableBorders = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// Model is the bubbletea program for a Session. Quitting does not save; the
// caller closes the session after the program exits.
type Model struct {
	session     *Session
	selected    string
	mode        inputMode
	input       string
	connectFrom string
	status      autosave.Status
	message     string
	width       int
}

func NewModel(s *Session) Model {
	m := Model{session: s, status: s.Status()}
	if nodes := s.Snapshot().Data.Nodes; len(nodes) > 0 {
		m.selected = nodes[0].ID
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return poll()
}

func poll() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		m.status = m.session.Status()
		return m, poll()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+s":
			m.session.Save()
			return m, nil
		}
		if m.mode != modeNormal {
			return m.updateInput(msg), nil
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.message = ""
	s := m.session

	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "a":
		n, err := s.AddNode(graph.TypeDefault)
		m.report(err)
		if err == nil {
			m.selected = n.ID
		}

	case "t":
		if m.selected != "" {
			m.report(s.CycleType(m.selected))
		}

	case "tab":
		m.selected = m.neighbor(1)
	case "shift+tab":
		m.selected = m.neighbor(-1)

	case "up":
		m.move(0, -moveStep)
	case "down":
		m.move(0, moveStep)
	case "left":
		m.move(-moveStep, 0)
	case "right":
		m.move(moveStep, 0)

	case "c":
		switch {
		case m.selected == "":
		case m.connectFrom == "":
			m.connectFrom = m.selected
			m.message = "connect from " + m.selected + ": select a target and press c"
		default:
			_, err := s.Connect(m.connectFrom, m.selected)
			m.report(err)
			m.connectFrom = ""
		}

	case "esc":
		m.connectFrom = ""

	case "x":
		if m.selected != "" {
			next := m.neighbor(1)
			if err := s.Delete(m.selected); err != nil {
				m.report(err)
			} else {
				if next == m.selected {
					next = ""
				}
				if m.connectFrom == m.selected {
					m.connectFrom = ""
				}
				m.selected = next
			}
		}

	case "e":
		if n, ok := s.store.Node(m.selected); ok {
			m.mode = modeLabel
			m.input = n.Data.Label
		}

	case "r":
		m.mode = modeTitle
		m.input = s.store.Title()
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) Model {
	switch msg.Type {
	case tea.KeyEnter:
		switch m.mode {
		case modeLabel:
			m.report(m.session.Relabel(m.selected, m.input))
		case modeTitle:
			m.session.Retitle(m.input)
		}
		m.mode = modeNormal
		m.input = ""
	case tea.KeyEsc:
		m.mode = modeNormal
		m.input = ""
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return m
}

func (m *Model) report(err error) {
	if err != nil {
		m.message = err.Error()
	}
}

func (m *Model) move(dx, dy float64) {
	if m.selected != "" {
		m.report(m.session.Move(m.selected, dx, dy))
	}
}

// neighbor returns the id of the node step places after the selected one in
// store order, wrapping around.
func (m Model) neighbor(step int) string {
	nodes := m.session.Snapshot().Data.Nodes
	if len(nodes) == 0 {
		return ""
	}
	idx := -1
	for i, n := range nodes {
		if n.ID == m.selected {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nodes[0].ID
	}
	return nodes[((idx+step)%len(nodes)+len(nodes))%len(nodes)].ID
}

func (m Model) View() string {
	snap := m.session.Snapshot()
	var b strings.Builder

	b.WriteString(titleStyle.Render(snap.Title))
	if st := statusText(m.status); st != "" {
		b.WriteString("  " + st)
	}
	b.WriteString("\n\n")

	b.WriteString(renderCanvas(snap.Data, m.selected))
	b.WriteString("\n")

	if len(snap.Data.Edges) > 0 {
		labels := make(map[string]string, len(snap.Data.Nodes))
		for _, n := range snap.Data.Nodes {
			labels[n.ID] = n.Data.Label
		}
		for _, e := range snap.Data.Edges {
			b.WriteString(edgeStyle.Render(fmt.Sprintf("  %s ──▶ %s", labels[e.Source], labels[e.Target])))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(renderNodeTable(snap.Data.Nodes))
	b.WriteString("\n")

	switch m.mode {
	case modeLabel:
		b.WriteString(promptStyle.Render("label: " + m.input + "█"))
	case modeTitle:
		b.WriteString(promptStyle.Render("title: " + m.input + "█"))
	default:
		if m.message != "" {
			b.WriteString(errorStyle.Render(m.message))
		}
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("ctrl+s save • a add • t type • tab select • ←↑↓→ move • c connect • x delete • e label • r rename • q quit"))
	return b.String()
}

func statusText(st autosave.Status) string {
	switch st.State {
	case autosave.StateSaving:
		return savingStyle.Render("Saving...")
	case autosave.StateSaved:
		return savedStyle.Render("Saved")
	case autosave.StateError:
		return errorStyle.Render("Error Saving")
	}
	return ""
}

// renderCanvas lays nodes out in rows by y position, ordered by x within a row.
func renderCanvas(d graph.Data, selected string) string {
	if len(d.Nodes) == 0 {
		return helpStyle.Render("(empty: press a to add a node)") + "\n"
	}

	rows := make(map[int][]graph.Node)
	var keys []int
	for _, n := range d.Nodes {
		k := int(n.Position.Y / rowHeight)
		if n.Position.Y < 0 {
			k--
		}
		if _, ok := rows[k]; !ok {
			keys = append(keys, k)
		}
		rows[k] = append(rows[k], n)
	}
	sort.Ints(keys)

	var out []string
	for _, k := range keys {
		row := rows[k]
		sort.SliceStable(row, func(i, j int) bool { return row[i].Position.X < row[j].Position.X })
		boxes := make([]string, 0, len(row)*2)
		for i, n := range row {
			if i > 0 {
				boxes = append(boxes, "  ")
			}
			boxes = append(boxes, RenderNode(n, n.ID == selected))
		}
		out = append(out, lipgloss.JoinHorizontal(lipgloss.Center, boxes...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, out...) + "\n"
}

// renderNodeTable lists every node with its position to two decimals.
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
