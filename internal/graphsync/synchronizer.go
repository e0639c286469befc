// Package graphsync applies parsed notes to the property graph with idempotent
// upserts, stale-edge pruning and cascading deletes, so the graph converges on
// the last observed state of every file.
package graphsync

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/models"
)

// Synchronizer writes notes, folders and entities to a graph.Store.
//
// No call is transactional: a store failure midway through UpsertNote can leave
// the note updated with some stale edges still attached. The next successful
// UpsertNote of the same path reconciles the edge set completely.
type Synchronizer struct {
	store  graph.Store
	root   string
	logger *slog.Logger
}

// New creates a Synchronizer for notes under root (absolute).
func New(store graph.Store, root string, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{store: store, root: filepath.Clean(root), logger: logger}
}

// Root returns the folder at the top of every chain.
func (s *Synchronizer) Root() string {
	return s.root
}

// EnsureFolderChain merges Folder nodes for root and every directory between
// root and dir, linking each level to its parent with CONTAINS.
func (s *Synchronizer) EnsureFolderChain(ctx context.Context, dir string) error {
	chain, err := s.folderChain(filepath.Clean(dir))
	if err != nil {
		return err
	}
	var parent graph.NodeRef
	for i, p := range chain {
		ref := graph.FolderRef(p)
		if err := s.store.MergeNode(ctx, ref, graph.Props{"name": filepath.Base(p)}); err != nil {
			return fmt.Errorf("graphsync: folder %s: %w", p, err)
		}
		if i > 0 {
			if err := s.store.MergeEdge(ctx, parent, graph.RelContains, ref); err != nil {
				return fmt.Errorf("graphsync: link folder %s: %w", p, err)
			}
		}
		parent = ref
	}
	return nil
}

func (s *Synchronizer) folderChain(dir string) ([]string, error) {
	rel, err := filepath.Rel(s.root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("graphsync: %s is outside root %s", dir, s.root)
	}
	chain := []string{s.root}
	if rel == "." {
		return chain, nil
	}
	cur := s.root
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, seg)
		chain = append(chain, cur)
	}
	return chain, nil
}

// UpsertNote creates or updates the Note for note.Path, links it to its folder
// and makes its outgoing vocabulary edges equal the set implied by note.
func (s *Synchronizer) UpsertNote(ctx context.Context, note *models.ParsedNote, info models.FileInfo) error {
	path := filepath.Clean(note.Path)
	dir := filepath.Dir(path)

	if err := s.EnsureFolderChain(ctx, dir); err != nil {
		return err
	}

	ref := graph.NoteRef(path)
	if err := s.store.MergeNode(ctx, ref, noteProps(note, info)); err != nil {
		return fmt.Errorf("graphsync: upsert note %s: %w", path, err)
	}
	if err := s.store.MergeEdge(ctx, graph.FolderRef(dir), graph.RelContains, ref); err != nil {
		return fmt.Errorf("graphsync: link note %s: %w", path, err)
	}

	for _, set := range vocabulary(note) {
		if err := s.syncEdges(ctx, ref, set); err != nil {
			return fmt.Errorf("graphsync: %s edges of %s: %w", set.rel, path, err)
		}
	}

	s.logger.Debug("graphsync: note upserted",
		slog.String("path", path),
		slog.Int("tags", len(note.Tags)),
		slog.Int("links", len(note.InternalLinks)),
		slog.Int("headers", len(note.Headers)))
	return nil
}

// DeleteNote removes the Note and every edge touching it. Vocabulary nodes stay.
func (s *Synchronizer) DeleteNote(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	existed, err := s.store.DetachDelete(ctx, graph.NoteRef(path))
	if err != nil {
		return fmt.Errorf("graphsync: delete note %s: %w", path, err)
	}
	s.logger.Debug("graphsync: note deleted", slog.String("path", path), slog.Bool("existed", existed))
	return nil
}

// DeleteFolder removes the Folder node of dir and its edges. Notes inside it
// are left alone.
func (s *Synchronizer) DeleteFolder(ctx context.Context, dir string) error {
	dir = filepath.Clean(dir)
	if _, err := s.store.DetachDelete(ctx, graph.FolderRef(dir)); err != nil {
		return fmt.Errorf("graphsync: delete folder %s: %w", dir, err)
	}
	return nil
}

// DeleteTree removes every Note and Folder at or below dir and returns the
// deleted note paths. Vocabulary nodes stay.
func (s *Synchronizer) DeleteTree(ctx context.Context, dir string) ([]string, error) {
	dir = filepath.Clean(dir)
	notes, err := s.store.PathsUnder(ctx, graph.LabelNote, dir)
	if err != nil {
		return nil, fmt.Errorf("graphsync: list notes under %s: %w", dir, err)
	}
	deleted := make([]string, 0, len(notes))
	for _, p := range notes {
		if err := s.DeleteNote(ctx, p); err != nil {
			return deleted, err
		}
		deleted = append(deleted, p)
	}

	folders, err := s.store.PathsUnder(ctx, graph.LabelFolder, dir)
	if err != nil {
		return deleted, fmt.Errorf("graphsync: list folders under %s: %w", dir, err)
	}
	for _, p := range folders {
		if err := s.DeleteFolder(ctx, p); err != nil {
			return deleted, err
		}
	}
	s.logger.Debug("graphsync: tree deleted",
		slog.String("dir", dir),
		slog.Int("notes", len(deleted)),
		slog.Int("folders", len(folders)))
	return deleted, nil
}

// Paths lists the Note or Folder paths stored at or below dir.
func (s *Synchronizer) Paths(ctx context.Context, label graph.Label, dir string) ([]string, error) {
	return s.store.PathsUnder(ctx, label, filepath.Clean(dir))
}

// ApplyEntities links the note to the detected entities (pruning entities no
// longer detected) and merges relationships between entities of this result.
func (s *Synchronizer) ApplyEntities(ctx context.Context, path string, result *models.DetectionResult) error {
	path = filepath.Clean(path)
	noteRef := graph.NoteRef(path)

	set := edgeSet{rel: graph.RelContainsEntity, label: graph.LabelEntity}
	known := make(map[string]struct{})
	props := make(map[string]graph.Props)
	if result != nil {
		for _, e := range result.Entities {
			name := strings.TrimSpace(e.Name)
			if name == "" {
				continue
			}
			if _, dup := known[name]; dup {
				continue
			}
			known[name] = struct{}{}
			set.refs = append(set.refs, graph.EntityRef(name))
			props[name] = graph.Props{
				"entity_type": string(e.Type),
				"confidence":  e.Confidence,
				"description": e.Description,
			}
		}
	}

	for _, ref := range set.refs {
		if err := s.store.MergeNode(ctx, ref, props[ref.Key["name"].(string)]); err != nil {
			return fmt.Errorf("graphsync: entity %s: %w", ref, err)
		}
	}
	if err := s.syncEdges(ctx, noteRef, set); err != nil {
		return fmt.Errorf("graphsync: entity edges of %s: %w", path, err)
	}

	if result == nil {
		return nil
	}
	for _, r := range result.Relationships {
		src, dst := strings.TrimSpace(r.Source), strings.TrimSpace(r.Target)
		_, okSrc := known[src]
		_, okDst := known[dst]
		if !okSrc || !okDst || src == dst {
			continue
		}
		rel := graph.EntityRelType(r.Type)
		if err := s.store.MergeEdge(ctx, graph.EntityRef(src), rel, graph.EntityRef(dst)); err != nil {
			return fmt.Errorf("graphsync: entity relationship %s-%s->%s: %w", src, rel, dst, err)
		}
	}
	return nil
}

// edgeSet is the complete target set of one relationship kind leaving a note.
type edgeSet struct {
	rel   graph.RelType
	label graph.Label
	refs  []graph.NodeRef
}

// syncEdges upserts every target, ensures an edge to it, then prunes edges
// of the same kind whose target is not in the set.
func (s *Synchronizer) syncEdges(ctx context.Context, from graph.NodeRef, set edgeSet) error {
	for _, to := range set.refs {
		if err := s.store.MergeNode(ctx, to, nil); err != nil {
			return err
		}
		if err := s.store.MergeEdge(ctx, from, set.rel, to); err != nil {
			return err
		}
	}
	removed, err := s.store.PruneEdges(ctx, from, set.rel, set.label, set.refs)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Debug("graphsync: stale edges pruned",
			slog.String("from", from.String()),
			slog.String("rel", string(set.rel)),
			slog.Int("removed", removed))
	}
	return nil
}

func vocabulary(note *models.ParsedNote) []edgeSet {
	tags := edgeSet{rel: graph.RelTaggedWith, label: graph.LabelTag}
	for _, t := range note.Tags {
		tags.refs = append(tags.refs, graph.TagRef(t))
	}

	links := edgeSet{rel: graph.RelLinksTo, label: graph.LabelInternalLink}
	for _, l := range note.InternalLinks {
		links.refs = append(links.refs, graph.InternalLinkRef(l))
	}

	external := edgeSet{rel: graph.RelLinksToExternal, label: graph.LabelExternalLink}
	for _, l := range note.ExternalLinks {
		external.refs = append(external.refs, graph.ExternalLinkRef(l.URL, l.Text))
	}

	headers := edgeSet{rel: graph.RelHasHeader, label: graph.LabelHeader}
	seen := make(map[models.Header]struct{})
	for _, h := range note.Headers {
		k := models.Header{Title: h.Title, Level: h.Level}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		headers.refs = append(headers.refs, graph.HeaderRef(h.Title, h.Level))
	}

	return []edgeSet{tags, links, external, headers}
}

func noteProps(note *models.ParsedNote, info models.FileInfo) graph.Props {
	aliases := note.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	return graph.Props{
		"name":        note.Name,
		"title":       note.Title,
		"content":     note.Body,
		"hash":        note.Hash,
		"size":        info.Size,
		"created":     unixSeconds(info.Created),
		"modified":    unixSeconds(info.Modified),
		"accessed":    unixSeconds(info.Accessed),
		"is_readonly": info.ReadOnly,
		"aliases":     aliases,
		"frontmatter": note.Frontmatter,
	}
}

// unixSeconds encodes t as fractional Unix seconds; the zero time encodes as 0.
func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}
