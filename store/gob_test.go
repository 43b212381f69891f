package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flowpad/flowpad/graph"
)

func demoFlowchart(id string, created time.Time) graph.Flowchart {
	return graph.Flowchart{
		ID:    id,
		Title: "Demo",
		Data: graph.Data{
			Nodes: []graph.Node{
				{ID: "1", Type: graph.TypeDefault, Data: graph.NodeData{Label: "A"}},
				{ID: "2", Type: graph.TypeDecision, Data: graph.NodeData{Label: "B"}, Position: graph.Position{X: 10, Y: 20}},
			},
			Edges: []graph.Edge{graph.NewEdge("1", "2")},
		},
		CreatedAt: created,
	}
}

func TestGOBStore_PersistAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "flowcharts.gob")
	ctx := context.Background()

	st := NewGOBStore(path)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := st.Create(ctx, demoFlowchart("a", created)); err != nil {
		t.Fatalf("failed to create flowchart: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("store file not written: %v", err)
	}

	st2 := NewGOBStore(path)
	if err := st2.Load(ctx); err != nil {
		t.Fatalf("failed to load store: %v", err)
	}

	got, err := st2.Get(ctx, "a")
	if err != nil {
		t.Fatalf("failed to get flowchart: %v", err)
	}
	if got.Title != "Demo" {
		t.Errorf("expected title Demo, got %q", got.Title)
	}
	if len(got.Data.Nodes) != 2 || len(got.Data.Edges) != 1 {
		t.Errorf("expected 2 nodes and 1 edge, got %d and %d", len(got.Data.Nodes), len(got.Data.Edges))
	}
	if got.Data.Nodes[1].Type != graph.TypeDecision {
		t.Errorf("expected node type to survive the round trip, got %q", got.Data.Nodes[1].Type)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("expected created_at %v, got %v", created, got.CreatedAt)
	}
}

func TestGOBStore_LoadMissingFile(t *testing.T) {
	st := NewGOBStore(filepath.Join(t.TempDir(), "missing.gob"))
	if err := st.Load(context.Background()); err != nil {
		t.Fatalf("missing file should load as empty store, got %v", err)
	}
	list, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list, got %d", len(list))
	}
}

func TestGOBStore_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowcharts.gob")
	if err := os.WriteFile(path, []byte("not gob"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewGOBStore(path).Load(context.Background()); err == nil {
		t.Fatal("expected decode error for corrupt file")
	}
}

func TestGOBStore_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "flowcharts.gob")
	st := NewGOBStore(path)

	f := demoFlowchart("a", time.Now().UTC())
	if err := st.Create(ctx, f); err != nil {
		t.Fatal(err)
	}
	if err := st.Create(ctx, f); err == nil {
		t.Error("expected duplicate create to fail")
	}

	f.Title = "Renamed"
	f.Data = graph.Data{}
	f.CreatedAt = time.Time{} // ignored by Update
	if err := st.Update(ctx, f); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	got, err := st.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Renamed" || len(got.Data.Nodes) != 0 {
		t.Errorf("unexpected flowchart after update: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("update must keep created_at")
	}

	if err := st.Update(ctx, graph.Flowchart{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := st.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := st.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	reloaded := NewGOBStore(path)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := reloaded.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete must be persisted, got %v", err)
	}
}

func TestGOBStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	st := NewGOBStore(filepath.Join(t.TempDir(), "flowcharts.gob"))
	if err := st.Create(ctx, demoFlowchart("a", time.Now())); err != nil {
		t.Fatal(err)
	}

	got, _ := st.Get(ctx, "a")
	got.Data.Nodes[0].Data.Label = "mutated"

	again, _ := st.Get(ctx, "a")
	if again.Data.Nodes[0].Data.Label != "A" {
		t.Error("callers must not alias store memory")
	}
}

func TestGOBStore_ListOrderedByCreation(t *testing.T) {
	ctx := context.Background()
	st := NewGOBStore(filepath.Join(t.TempDir(), "flowcharts.gob"))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"c", "a", "b"} {
		if err := st.Create(ctx, demoFlowchart(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}

	list, err := st.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, s := range list {
		ids = append(ids, s.ID)
	}
	if len(ids) != 3 || ids[0] != "c" || ids[1] != "a" || ids[2] != "b" {
		t.Errorf("expected creation order [c a b], got %v", ids)
	}
}
