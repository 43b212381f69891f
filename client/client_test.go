package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpad/flowpad/config"
	"github.com/flowpad/flowpad/graph"
	"github.com/flowpad/flowpad/server"
	"github.com/flowpad/flowpad/store"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	st := store.NewGOBStore(filepath.Join(t.TempDir(), "flowcharts.gob"))
	ts := httptest.NewServer(server.New(st).Handler())
	t.Cleanup(ts.Close)
	return New(WithBaseURL(ts.URL+"/api/"), WithHTTPClient(ts.Client()))
}

func demoDocument() graph.Document {
	return graph.Document{
		Title: "Demo",
		Data: graph.Data{
			Nodes: []graph.Node{
				{ID: "1", Type: graph.TypeDefault, Data: graph.NodeData{Label: "A"}, Position: graph.Position{X: 0, Y: 0}},
				{ID: "2", Type: graph.TypeDefault, Data: graph.NodeData{Label: "B"}, Position: graph.Position{X: 100, Y: 0}},
			},
			Edges: []graph.Edge{
				{ID: "e1-2", Source: "1", Target: "2", Animated: true, Style: graph.EdgeStyle{Stroke: "hsl(10, 100%, 50%)"}},
			},
		},
	}
}

func TestCreateThenFetch(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	created, err := c.Create(ctx, demoDocument())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	fetched, err := c.Fetch(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Demo", fetched.Title)
	if diff := cmp.Diff(demoDocument().Data, fetched.Data); diff != "" {
		t.Errorf("fetched graph mismatch (-want +got):\n%s", diff)
	}

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestSaveIsIdempotent(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	created, err := c.Create(ctx, graph.Document{Title: graph.DefaultTitle})
	require.NoError(t, err)

	doc := demoDocument()
	_, err = c.Save(ctx, created.ID, doc)
	require.NoError(t, err)
	once, err := c.Fetch(ctx, created.ID)
	require.NoError(t, err)

	_, err = c.Save(ctx, created.ID, doc)
	require.NoError(t, err)
	twice, err := c.Fetch(ctx, created.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second save changed the stored flowchart (-once +twice):\n%s", diff)
	}
}

func TestRenameKeepsGraph(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	created, err := c.Create(ctx, demoDocument())
	require.NoError(t, err)

	renamed, err := c.Rename(ctx, created.ID, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", renamed.Title)
	assert.Len(t, renamed.Data.Nodes, 2)
	assert.Len(t, renamed.Data.Edges, 1)
}

func TestNotFound(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Fetch(ctx, "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.ID)

	assert.True(t, IsNotFound(c.Delete(ctx, "missing")))
}

func TestValidationErrors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Create(ctx, graph.Document{Title: ""})
	assert.True(t, IsValidation(err))

	created, err := c.Create(ctx, demoDocument())
	require.NoError(t, err)

	bad := demoDocument()
	bad.Data.Edges = append(bad.Data.Edges, graph.Edge{ID: "e1-9", Source: "1", Target: "9"})
	_, err = c.Save(ctx, created.ID, bad)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid graph: some edges have invalid nodes.", verr.Message)
	require.Len(t, verr.InvalidEdges, 1)
	assert.Equal(t, "e1-9", verr.InvalidEdges[0].ID)
}

func TestGraphActions(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	created, err := c.Create(ctx, demoDocument())
	require.NoError(t, err)

	require.NoError(t, c.Validate(ctx, created.ID))

	edges, err := c.OutgoingEdges(ctx, created.ID, "1")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "2", edges[0].Target)

	nodes, err := c.ConnectedNodes(ctx, created.ID, "1")
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(WithBaseURL(url), WithTimeout(time.Second))
	_, err := c.Fetch(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
	assert.False(t, IsNotFound(err))
}

func TestAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to get flowchart"}`))
	}))
	defer ts.Close()

	_, err := New(WithBaseURL(ts.URL)).Fetch(context.Background(), "x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "failed to get flowchart", apiErr.Body)
}

func TestRequestHeadersAndPaths(t *testing.T) {
	var gotPath, gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	c := New(WithBaseURL(ts.URL+"/api"), WithUserAgent("flowpad-test"))
	require.NoError(t, c.Delete(context.Background(), "a b"))
	assert.Equal(t, "/api/flowcharts/a b/", gotPath)
	assert.Equal(t, "flowpad-test", gotUA)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = "http://example.test/api/"
	cfg.API.TimeoutMs = 1500

	c := NewFromConfig(cfg)
	assert.Equal(t, "http://example.test/api", c.BaseURL())
	assert.Equal(t, 1500*time.Millisecond, c.http.Timeout)
}

func TestTimeoutLeavesSharedClientAlone(t *testing.T) {
	shared := &http.Client{}
	c := New(WithHTTPClient(shared), WithTimeout(2*time.Second))

	assert.Equal(t, time.Duration(0), shared.Timeout)
	assert.Equal(t, 2*time.Second, c.http.Timeout)
	assert.NotSame(t, shared, c.http)

	c = New(WithTimeout(2*time.Second), WithHTTPClient(http.DefaultClient))
	assert.Equal(t, time.Duration(0), http.DefaultClient.Timeout)
	assert.Equal(t, 2*time.Second, c.http.Timeout)
}
