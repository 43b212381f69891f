package editor

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpad/flowpad/autosave"
	"github.com/flowpad/flowpad/client"
	"github.com/flowpad/flowpad/graph"
	"github.com/flowpad/flowpad/server"
	"github.com/flowpad/flowpad/store"
)

func newBackend(t *testing.T) *client.Client {
	t.Helper()
	st := store.NewGOBStore(filepath.Join(t.TempDir(), "flowcharts.gob"))
	ts := httptest.NewServer(server.New(st).Handler())
	t.Cleanup(ts.Close)
	return client.New(client.WithBaseURL(ts.URL + "/api"))
}

func createDemo(t *testing.T, c *client.Client) string {
	t.Helper()
	f, err := c.Create(context.Background(), graph.Document{
		Title: "Demo",
		Data: graph.Data{
			Nodes: []graph.Node{
				{ID: "1", Type: graph.TypeDefault, Data: graph.NodeData{Label: "A"}},
				{ID: "2", Type: graph.TypeDefault, Data: graph.NodeData{Label: "B"}, Position: graph.Position{X: 100}},
			},
			Edges: []graph.Edge{graph.NewEdge("1", "2")},
		},
	})
	require.NoError(t, err)
	return f.ID
}

func openSession(t *testing.T, c *client.Client, id string) *Session {
	t.Helper()
	s, err := Open(context.Background(), c, id, WithAutosave(autosave.WithInterval(time.Hour)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestOpenLoadsFlowchart(t *testing.T) {
	c := newBackend(t)
	id := createDemo(t, c)

	s := openSession(t, c, id)
	snap := s.Snapshot()
	assert.Equal(t, id, s.ID())
	assert.Equal(t, "Demo", snap.Title)
	assert.Len(t, snap.Data.Nodes, 2)
	assert.Len(t, snap.Data.Edges, 1)
	assert.Equal(t, autosave.StateIdle, s.Status().State)
}

func TestOpenUnknownFlowchart(t *testing.T) {
	c := newBackend(t)
	s, err := Open(context.Background(), c, "missing")
	require.Error(t, err)
	assert.Nil(t, s)
	assert.True(t, client.IsNotFound(err))
}

func TestEditsReachBackendOnClose(t *testing.T) {
	c := newBackend(t)
	id := createDemo(t, c)
	ctx := context.Background()

	s, err := Open(ctx, c, id, WithAutosave(autosave.WithInterval(time.Hour)))
	require.NoError(t, err)

	n, err := s.AddNode(graph.TypeProcess)
	require.NoError(t, err)
	assert.Equal(t, "node-3", n.ID)
	assert.Equal(t, "Node 3", n.Data.Label)
	assert.True(t, n.Position.X >= 0 && n.Position.X < placementRange)
	assert.True(t, n.Position.Y >= 0 && n.Position.Y < placementRange)

	_, err = s.Connect("2", n.ID)
	require.NoError(t, err)
	require.NoError(t, s.Move("1", 5, -5))
	require.NoError(t, s.Relabel("1", "Start"))
	require.NoError(t, s.CycleType("1"))
	s.Retitle("Checkout")

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx), "second close is a no-op")

	f, err := c.Fetch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Checkout", f.Title)
	require.Len(t, f.Data.Nodes, 3)
	assert.Equal(t, "Start", f.Data.Nodes[0].Data.Label)
	assert.Equal(t, graph.TypeDecision, f.Data.Nodes[0].Type)
	assert.Equal(t, graph.Position{X: 5, Y: -5}, f.Data.Nodes[0].Position)
	require.Len(t, f.Data.Edges, 2)
	assert.Equal(t, "e2-node-3", f.Data.Edges[1].ID)
	assert.True(t, f.Data.Edges[1].Animated)
	assert.True(t, strings.HasPrefix(f.Data.Edges[1].Style.Stroke, "hsl("))
}

func TestDeleteNodeCascadesAndSaves(t *testing.T) {
	c := newBackend(t)
	id := createDemo(t, c)
	ctx := context.Background()
	s := openSession(t, c, id)

	require.NoError(t, s.Delete("1"))
	require.NoError(t, s.SaveNow(ctx))

	f, err := c.Fetch(ctx, id)
	require.NoError(t, err)
	require.Len(t, f.Data.Nodes, 1)
	assert.Equal(t, "2", f.Data.Nodes[0].ID)
	assert.Empty(t, f.Data.Edges)
}

func TestDeleteEdgeByID(t *testing.T) {
	c := newBackend(t)
	s := openSession(t, c, createDemo(t, c))

	require.NoError(t, s.Delete("e1-2"))
	assert.Empty(t, s.Snapshot().Data.Edges)
	assert.Len(t, s.Snapshot().Data.Nodes, 2)
	assert.Error(t, s.Delete("nothing"))
}

func TestRejectedEditsLeaveGraphAlone(t *testing.T) {
	c := newBackend(t)
	s := openSession(t, c, createDemo(t, c))
	before := s.Snapshot()

	_, err := s.Connect("1", "ghost")
	assert.ErrorIs(t, err, graph.ErrDanglingEdge)
	_, err = s.Connect("1", "2")
	assert.ErrorIs(t, err, graph.ErrDuplicateEdge)
	assert.ErrorIs(t, s.Move("ghost", 1, 1), graph.ErrNodeNotFound)
	assert.ErrorIs(t, s.CycleType("ghost"), graph.ErrNodeNotFound)

	assert.Equal(t, before, s.Snapshot())
}

func TestSaveShortcutTriggersSave(t *testing.T) {
	c := newBackend(t)
	id := createDemo(t, c)
	s := openSession(t, c, id)

	s.Retitle("Shortcut")
	s.Save()

	require.Eventually(t, func() bool {
		f, err := c.Fetch(context.Background(), id)
		return err == nil && f.Title == "Shortcut"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFailedSaveSurfacesInStatus(t *testing.T) {
	st := store.NewGOBStore(filepath.Join(t.TempDir(), "flowcharts.gob"))
	ts := httptest.NewServer(server.New(st).Handler())
	c := client.New(client.WithBaseURL(ts.URL+"/api"), client.WithTimeout(time.Second))
	id := createDemo(t, c)

	s, err := Open(context.Background(), c, id, WithAutosave(
		autosave.WithInterval(time.Hour),
		autosave.WithErrorCooldown(50*time.Millisecond),
	))
	require.NoError(t, err)
	defer s.Close(context.Background())

	ts.Close()
	require.Error(t, s.SaveNow(context.Background()))
	assert.Equal(t, autosave.StateError, s.Status().State)
	assert.True(t, client.IsNetwork(s.Status().Err))

	require.Eventually(t, func() bool { return s.Status().State == autosave.StateIdle }, time.Second, 5*time.Millisecond)
}
