package noteservice

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/starford/vaultgraph/internal/apperr"
	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/models"
)

// NoteDetail is a Note node with its outgoing vocabulary and its backlinks.
type NoteDetail struct {
	Path          string                `json:"path"`
	Name          string                `json:"name"`
	Title         string                `json:"title"`
	Content       string                `json:"content"`
	Hash          string                `json:"hash"`
	Size          int                   `json:"size"`
	Created       float64               `json:"created"`
	Modified      float64               `json:"modified"`
	Accessed      float64               `json:"accessed"`
	ReadOnly      bool                  `json:"is_readonly"`
	Aliases       []string              `json:"aliases"`
	Frontmatter   string                `json:"frontmatter,omitempty"`
	Tags          []string              `json:"tags"`
	Links         []string              `json:"links"`
	ExternalLinks []models.ExternalLink `json:"external_links"`
	Headers       []HeaderItem          `json:"headers"`
	Entities      []EntityItem          `json:"entities"`
	Backlinks     []NoteSummary         `json:"backlinks"`
}

// HeaderItem is a Header node linked from a note.
type HeaderItem struct {
	Title string `json:"title"`
	Level int    `json:"level"`
}

// EntityItem is an Entity node linked from a note.
type EntityItem struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// NoteSummary is a lightweight note reference.
type NoteSummary struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// GraphStats counts nodes by label and relationships by type.
type GraphStats struct {
	Nodes         map[graph.Label]int   `json:"nodes"`
	Relationships map[graph.RelType]int `json:"relationships"`
	TotalNodes    int                   `json:"total_nodes"`
	TotalEdges    int                   `json:"total_relationships"`
}

// Note returns the note at the vault-relative path rel.
func (s *Service) Note(ctx context.Context, rel string) (*NoteDetail, error) {
	abs, err := s.files.Resolve(rel)
	if err != nil {
		return nil, err
	}
	ref := graph.NoteRef(abs)
	n, err := s.store.GetNode(ctx, ref)
	if err != nil {
		return nil, err
	}

	d := &NoteDetail{
		Path:        s.relOr(abs),
		Name:        n.Str("name"),
		Title:       n.Str("title"),
		Content:     n.Str("content"),
		Hash:        n.Str("hash"),
		Size:        n.Int("size"),
		Created:     number(n.Props["created"]),
		Modified:    number(n.Props["modified"]),
		Accessed:    number(n.Props["accessed"]),
		ReadOnly:    n.Props["is_readonly"] == true,
		Aliases:     strs(n.Props["aliases"]),
		Frontmatter: n.Str("frontmatter"),
	}

	tags, err := s.store.Outgoing(ctx, ref, graph.RelTaggedWith)
	if err != nil {
		return nil, err
	}
	d.Tags = pluck(tags, "name")

	links, err := s.store.Outgoing(ctx, ref, graph.RelLinksTo)
	if err != nil {
		return nil, err
	}
	d.Links = pluck(links, "name")

	ext, err := s.store.Outgoing(ctx, ref, graph.RelLinksToExternal)
	if err != nil {
		return nil, err
	}
	d.ExternalLinks = make([]models.ExternalLink, len(ext))
	for i, e := range ext {
		d.ExternalLinks[i] = models.ExternalLink{URL: e.Str("url"), Text: e.Str("text")}
	}

	headers, err := s.store.Outgoing(ctx, ref, graph.RelHasHeader)
	if err != nil {
		return nil, err
	}
	d.Headers = make([]HeaderItem, len(headers))
	for i, h := range headers {
		d.Headers[i] = HeaderItem{Title: h.Str("title"), Level: h.Int("level")}
	}

	ents, err := s.store.Outgoing(ctx, ref, graph.RelContainsEntity)
	if err != nil {
		return nil, err
	}
	d.Entities = make([]EntityItem, len(ents))
	for i, e := range ents {
		d.Entities[i] = EntityItem{Name: e.Str("name"), Type: e.Str("entity_type")}
	}

	d.Backlinks, err = s.backlinks(ctx, abs, append([]string{d.Name}, d.Aliases...))
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Backlinks lists the notes whose wikilinks name the note at rel (by file
// stem or alias).
func (s *Service) Backlinks(ctx context.Context, rel string) ([]NoteSummary, error) {
	abs, err := s.files.Resolve(rel)
	if err != nil {
		return nil, err
	}
	n, err := s.store.GetNode(ctx, graph.NoteRef(abs))
	if err != nil {
		return nil, err
	}
	return s.backlinks(ctx, abs, append([]string{n.Str("name")}, strs(n.Props["aliases"])...))
}

func (s *Service) backlinks(ctx context.Context, self string, names []string) ([]NoteSummary, error) {
	seen := map[string]struct{}{self: {}}
	out := []NoteSummary{}
	for _, name := range names {
		if name == "" {
			continue
		}
		src, err := s.store.Incoming(ctx, graph.InternalLinkRef(name), graph.RelLinksTo)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, n := range src {
			p := n.Str("path")
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, NoteSummary{Path: s.relOr(p), Title: n.Str("title")})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// NotesWithTag lists notes tagged with tag (a leading '#' is ignored).
func (s *Service) NotesWithTag(ctx context.Context, tag string) ([]NoteSummary, error) {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	src, err := s.store.Incoming(ctx, graph.TagRef(tag), graph.RelTaggedWith)
	if err != nil {
		return nil, err
	}
	out := make([]NoteSummary, len(src))
	for i, n := range src {
		out[i] = NoteSummary{Path: s.relOr(n.Str("path")), Title: n.Str("title")}
	}
	return out, nil
}

// Stats counts the graph.
func (s *Service) Stats(ctx context.Context) (*GraphStats, error) {
	nodes, err := s.store.CountNodes(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := s.store.CountEdges(ctx)
	if err != nil {
		return nil, err
	}
	st := &GraphStats{Nodes: nodes, Relationships: edges}
	for _, n := range nodes {
		st.TotalNodes += n
	}
	for _, n := range edges {
		st.TotalEdges += n
	}
	return st, nil
}

// Duplicates returns groups of notes with identical content hashes, with
// vault-relative paths.
func (s *Service) Duplicates(ctx context.Context) ([]graph.DuplicateGroup, error) {
	groups, err := s.store.DuplicateHashes(ctx)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		for j, p := range groups[i].Paths {
			groups[i].Paths[j] = s.relOr(p)
		}
	}
	return groups, nil
}

// PruneVocabulary deletes vocabulary nodes no note references any more.
func (s *Service) PruneVocabulary(ctx context.Context) (map[graph.Label]int, error) {
	out := make(map[graph.Label]int)
	for _, label := range graph.VocabularyLabels() {
		n, err := s.store.DeleteOrphans(ctx, label)
		if err != nil {
			return out, err
		}
		out[label] = n
	}
	return out, nil
}

// relOr returns abs relative to the vault root, or abs itself when it lies outside.
func (s *Service) relOr(abs string) string {
	if rel, err := s.files.Rel(abs); err == nil {
		return rel
	}
	return abs
}

func pluck(nodes []graph.Node, key string) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Str(key)
	}
	return out
}

// strs reads a list property; backends decode lists as []any or []string.
func strs(v any) []string {
	out := []string{}
	switch l := v.(type) {
	case []string:
		out = append(out, l...)
	case []any:
		for _, x := range l {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}
