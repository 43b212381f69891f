package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alpkeskin/gotoon"

	"github.com/flowpad/flowpad/graph"
)

func TestPickFormat(t *testing.T) {
	tests := []struct {
		json, toon bool
		want       string
	}{
		{false, false, formatText},
		{true, false, formatJSON},
		{false, true, formatTOON},
	}
	for _, tt := range tests {
		if got := pickFormat(tt.json, tt.toon); got != tt.want {
			t.Errorf("pickFormat(%v, %v) = %q, want %q", tt.json, tt.toon, got, tt.want)
		}
	}
}

func TestToFlowchartJSON_EmptyGraph(t *testing.T) {
	f := &graph.Flowchart{ID: "abc", Title: "Empty", CreatedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)}

	var buf bytes.Buffer
	if err := writeJSON(&buf, toFlowchartJSON(f)); err != nil {
		t.Fatalf("failed to encode JSON: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if nodes, ok := decoded["nodes"].([]any); !ok || len(nodes) != 0 {
		t.Errorf("expected empty nodes array, got %v", decoded["nodes"])
	}
	if decoded["created_at"] != "2024-05-01 09:30:00" {
		t.Errorf("unexpected created_at %v", decoded["created_at"])
	}
}

func TestWriteTOON(t *testing.T) {
	items := []graph.Summary{
		{ID: "a1", Title: "Onboarding", CreatedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)},
		{ID: "b2", Title: "Billing", CreatedAt: time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)},
	}

	var buf bytes.Buffer
	if err := writeTOON(&buf, toSummaryJSON(items)); err != nil {
		t.Fatalf("failed to write TOON: %v", err)
	}

	want, err := gotoon.Encode(toSummaryJSON(items))
	if err != nil {
		t.Fatalf("failed to encode TOON: %v", err)
	}
	if strings.TrimSpace(buf.String()) != strings.TrimSpace(want) {
		t.Errorf("TOON output mismatch:\n%s\nwant:\n%s", buf.String(), want)
	}
	if !strings.Contains(buf.String(), "Billing") {
		t.Error("expected titles in TOON output")
	}
}

func TestWriteStructured_Text(t *testing.T) {
	var buf bytes.Buffer
	done, err := writeStructured(&buf, []int{1}, formatText)
	if err != nil || done {
		t.Fatalf("text output should be left to the caller, got done=%v err=%v", done, err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected nothing written, got %q", buf.String())
	}
}

func TestFormatEdge(t *testing.T) {
	e := graph.Edge{ID: "e1-2", Source: "1", Target: "2"}
	if got := formatEdge(e); got != "e1-2: 1 -> 2" {
		t.Errorf("formatEdge = %q", got)
	}
	e.Animated = true
	if got := formatEdge(e); got != "e1-2: 1 -> 2 (animated)" {
		t.Errorf("formatEdge = %q", got)
	}
}

func TestRenderSummaryTable(t *testing.T) {
	out := renderSummaryTable([]graph.Summary{{ID: "a1", Title: "Onboarding", CreatedAt: time.Now()}})
	for _, want := range []string{"ID", "Title", "Created", "a1", "Onboarding"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
