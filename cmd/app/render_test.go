package main

import (
	"strings"
	"testing"
	"time"

	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/index"
	"github.com/starford/vaultgraph/internal/noteservice"
)

func TestRenderIndexStats(t *testing.T) {
	out := renderIndexStats(&index.Stats{NotesProcessed: 12, Errors: 1, Duration: 1500 * time.Millisecond})
	for _, want := range []string{"Index complete", "notes", "12", "errors", "took 1.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderGraphStats(t *testing.T) {
	out := renderGraphStats(&noteservice.GraphStats{
		Nodes:         map[graph.Label]int{graph.LabelNote: 3, graph.LabelTag: 2},
		Relationships: map[graph.RelType]int{graph.RelTaggedWith: 4},
		TotalNodes:    5,
		TotalEdges:    4,
	})
	for _, want := range []string{"Nodes", "Relationships", "Note", "Tag", "TAGGED_WITH", "total"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Note") > strings.Index(out, "Tag") {
		t.Errorf("labels should be sorted:\n%s", out)
	}
}

func TestRenderDuplicates(t *testing.T) {
	if out := renderDuplicates(nil); !strings.Contains(out, "no duplicate notes") {
		t.Errorf("empty output = %q", out)
	}
	out := renderDuplicates([]graph.DuplicateGroup{{Hash: "0123456789abcdef", Paths: []string{"a.md", "b/c.md"}}})
	for _, want := range []string{"0123456789ab (2 notes)", "a.md", "b/c.md"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0123456789abc") {
		t.Errorf("hash should be shortened:\n%s", out)
	}
}

func TestRenderPruned(t *testing.T) {
	if out := renderPruned(map[graph.Label]int{graph.LabelTag: 0}); !strings.Contains(out, "nothing to prune") {
		t.Errorf("output = %q", out)
	}
	out := renderPruned(map[graph.Label]int{graph.LabelTag: 2, graph.LabelHeader: 1})
	if !strings.Contains(out, "Tag") || !strings.Contains(out, "Header") {
		t.Errorf("output = %q", out)
	}
}
