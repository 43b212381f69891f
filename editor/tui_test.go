package editor

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpad/flowpad/autosave"
	"github.com/flowpad/flowpad/graph"
)

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(Model)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelAddSelectMove(t *testing.T) {
	c := newBackend(t)
	s := openSession(t, c, createDemo(t, c))
	m := NewModel(s)
	assert.Equal(t, "1", m.selected)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "2", m.selected)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "1", m.selected, "selection wraps")

	m = press(t, m, runes("a"))
	assert.Equal(t, "node-3", m.selected)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, "2", m.selected)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyRight}, tea.KeyMsg{Type: tea.KeyDown})
	n, ok := s.store.Node("2")
	require.True(t, ok)
	assert.Equal(t, graph.Position{X: 110, Y: 10}, n.Position)
}

func TestModelConnectAndDelete(t *testing.T) {
	c := newBackend(t)
	s := openSession(t, c, createDemo(t, c))
	m := NewModel(s)

	// 2 -> 1
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab}, runes("c"), tea.KeyMsg{Type: tea.KeyTab}, runes("c"))
	assert.Empty(t, m.connectFrom)
	assert.Len(t, s.Snapshot().Data.Edges, 2)

	m = press(t, m, runes("x"))
	snap := s.Snapshot()
	require.Len(t, snap.Data.Nodes, 1)
	assert.Empty(t, snap.Data.Edges)
	assert.Equal(t, "2", m.selected)
}

func TestModelEditLabelAndTitle(t *testing.T) {
	c := newBackend(t)
	s := openSession(t, c, createDemo(t, c))
	m := NewModel(s)

	m = press(t, m, runes("e"))
	assert.Equal(t, modeLabel, m.mode)
	m = press(t, m,
		tea.KeyMsg{Type: tea.KeyBackspace},
		runes("ny"), tea.KeyMsg{Type: tea.KeySpace}, runes("way"),
		tea.KeyMsg{Type: tea.KeyEnter},
	)
	assert.Equal(t, modeNormal, m.mode)
	n, _ := s.store.Node("1")
	assert.Equal(t, "ny way", n.Data.Label)

	m = press(t, m, runes("r"), runes("!"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "Demo!", s.Snapshot().Title)

	m = press(t, m, runes("r"), runes("discard"), tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, "Demo!", s.Snapshot().Title)

	// q typed into a prompt is text, not quit.
	m = press(t, m, runes("e"))
	_, cmd := m.Update(runes("q"))
	assert.Nil(t, cmd)
}

func TestModelSaveShortcutWhilePrompting(t *testing.T) {
	c := newBackend(t)
	id := createDemo(t, c)
	s := openSession(t, c, id)
	m := NewModel(s)

	m = press(t, m, runes("a"), runes("e"), runes("half"))
	require.Equal(t, modeLabel, m.mode)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Equal(t, modeLabel, m.mode, "the prompt stays open")
	assert.Equal(t, "Node 3half", m.input)

	require.Eventually(t, func() bool {
		f, err := c.Fetch(context.Background(), id)
		return err == nil && len(f.Data.Nodes) == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestModelCycleType(t *testing.T) {
	c := newBackend(t)
	s := openSession(t, c, createDemo(t, c))
	m := NewModel(s)

	press(t, m, runes("t"), runes("t"))
	n, _ := s.store.Node("1")
	assert.Equal(t, graph.TypeProcess, n.Type)
}

func TestModelQuit(t *testing.T) {
	c := newBackend(t)
	m := NewModel(openSession(t, c, createDemo(t, c)))

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModelView(t *testing.T) {
	c := newBackend(t)
	s := openSession(t, c, createDemo(t, c))
	m := NewModel(s)

	view := m.View()
	assert.Contains(t, view, "Demo")
	assert.Contains(t, view, "A ──▶ B")
	assert.Contains(t, view, "100.00")

	m.status = autosave.Status{State: autosave.StateError}
	assert.Contains(t, m.View(), "Error Saving")
	m.status = autosave.Status{State: autosave.StateSaving}
	assert.Contains(t, m.View(), "Saving...")
}

func TestRenderNodeFallsBackToDefault(t *testing.T) {
	n := graph.Node{ID: "x", Type: "hexagon", Data: graph.NodeData{Label: "odd"}}
	assert.Equal(t, RenderNode(graph.Node{ID: "x", Type: graph.TypeDefault, Data: n.Data}, false), RenderNode(n, false))

	for _, typ := range graph.NodeTypes {
		out := RenderNode(graph.Node{Type: typ, Data: graph.NodeData{Label: "label"}}, false)
		assert.Contains(t, out, "label", typ)
	}
}
