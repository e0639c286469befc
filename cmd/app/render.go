package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/index"
	"github.com/starford/vaultgraph/internal/noteservice"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).MarginBottom(1)
	keyStyle   = lipgloss.NewStyle().Width(22)
	valueStyle = lipgloss.NewStyle().Bold(true).Width(10).Align(lipgloss.Right)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle = lipgloss.NewStyle().Faint(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// output prints v as JSON when --json is set, otherwise the rendered text.
func output(cmd *cli.Command, v any, rendered string) error {
	if cmd.Bool("json") {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	}
	_, err := fmt.Fprintln(os.Stdout, rendered)
	return err
}

type row struct {
	key   string
	value int
	warn  bool
}

func rows(rs []row) string {
	lines := make([]string, 0, len(rs))
	for _, r := range rs {
		v := valueStyle.Render(fmt.Sprint(r.value))
		if r.warn && r.value > 0 {
			v = warnStyle.Render(v)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, keyStyle.Render(r.key), v))
	}
	return strings.Join(lines, "\n")
}

func section(title, body string) string {
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), body))
}

func renderIndexStats(s *index.Stats) string {
	body := rows([]row{
		{key: "folders", value: s.FoldersProcessed},
		{key: "notes", value: s.NotesProcessed},
		{key: "skipped", value: s.NotesSkipped},
		{key: "errors", value: s.Errors, warn: true},
		{key: "links", value: s.TotalLinks},
		{key: "tags", value: s.TotalTags},
		{key: "headers", value: s.TotalHeaders},
	})
	footer := mutedStyle.Render(fmt.Sprintf("took %s", s.Duration.Round(time.Millisecond)))
	return section("Index complete", lipgloss.JoinVertical(lipgloss.Left, body, "", footer))
}

func countRows[K ~string](m map[K]int) []row {
	out := make([]row, 0, len(m))
	for k, n := range m {
		out = append(out, row{key: string(k), value: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func renderGraphStats(s *noteservice.GraphStats) string {
	nodes := append(countRows(s.Nodes), row{key: "total", value: s.TotalNodes})
	rels := append(countRows(s.Relationships), row{key: "total", value: s.TotalEdges})
	return lipgloss.JoinHorizontal(lipgloss.Top,
		section("Nodes", rows(nodes)),
		" ",
		section("Relationships", rows(rels)),
	)
}

func renderDuplicates(groups []graph.DuplicateGroup) string {
	if len(groups) == 0 {
		return mutedStyle.Render("no duplicate notes")
	}
	blocks := make([]string, 0, len(groups))
	for _, g := range groups {
		hash := g.Hash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		blocks = append(blocks, section(fmt.Sprintf("%s (%d notes)", hash, len(g.Paths)), strings.Join(g.Paths, "\n")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func renderPruned(removed map[graph.Label]int) string {
	total := 0
	for _, n := range removed {
		total += n
	}
	if total == 0 {
		return mutedStyle.Render("nothing to prune")
	}
	return section("Pruned orphan nodes", rows(countRows(removed)))
}
