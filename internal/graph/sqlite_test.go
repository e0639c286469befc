package graph

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/vaultgraph/internal/apperr"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "graph.db"), DriverCGO)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustMerge(t *testing.T, s Store, ref NodeRef, set Props) {
	t.Helper()
	if err := s.MergeNode(context.Background(), ref, set); err != nil {
		t.Fatalf("MergeNode(%s): %v", ref, err)
	}
}

func mustEdge(t *testing.T, s Store, from NodeRef, rel RelType, to NodeRef) {
	t.Helper()
	if err := s.MergeEdge(context.Background(), from, rel, to); err != nil {
		t.Fatalf("MergeEdge(%s -%s-> %s): %v", from, rel, to, err)
	}
}

func TestMergeNode_IdempotentAndMergesProps(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	note := NoteRef("/v/a.md")

	mustMerge(t, s, note, Props{"title": "A", "hash": "h1"})
	mustMerge(t, s, note, Props{"title": "A2"})

	counts, err := s.CountNodes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[LabelNote] != 1 {
		t.Fatalf("note count = %d, want 1", counts[LabelNote])
	}

	n, err := s.GetNode(ctx, note)
	if err != nil {
		t.Fatal(err)
	}
	if n.Str("title") != "A2" {
		t.Errorf("title = %q, want %q", n.Str("title"), "A2")
	}
	if n.Str("hash") != "h1" {
		t.Errorf("hash = %q, unrelated props must survive a merge", n.Str("hash"))
	}
	if n.Str("path") != "/v/a.md" {
		t.Errorf("path = %q", n.Str("path"))
	}
}

func TestMergeNode_CompositeKey(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mustMerge(t, s, HeaderRef("Intro", 1), nil)
	mustMerge(t, s, HeaderRef("Intro", 2), nil)
	mustMerge(t, s, HeaderRef("Intro", 1), nil)

	counts, _ := s.CountNodes(ctx)
	if counts[LabelHeader] != 2 {
		t.Fatalf("header count = %d, want 2", counts[LabelHeader])
	}
	n, err := s.GetNode(ctx, HeaderRef("Intro", 2))
	if err != nil {
		t.Fatal(err)
	}
	if n.Int("level") != 2 {
		t.Errorf("level = %d, want 2", n.Int("level"))
	}
}

func TestMergeNode_RejectsBadKey(t *testing.T) {
	s := testStore(t)
	err := s.MergeNode(context.Background(), NodeRef{Label: LabelTag, Key: Props{"path": "x"}}, nil)
	if err == nil {
		t.Fatal("expected error for wrong key field")
	}
	err = s.MergeNode(context.Background(), NodeRef{Label: "Bogus", Key: Props{"name": "x"}}, nil)
	if err == nil {
		t.Fatal("expected error for unknown label")
	}
}

func TestMergeEdge_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	note, tag := NoteRef("/v/a.md"), TagRef("go")
	mustMerge(t, s, note, nil)
	mustMerge(t, s, tag, nil)

	mustEdge(t, s, note, RelTaggedWith, tag)
	mustEdge(t, s, note, RelTaggedWith, tag)

	edges, _ := s.CountEdges(ctx)
	if edges[RelTaggedWith] != 1 {
		t.Errorf("TAGGED_WITH count = %d, want 1", edges[RelTaggedWith])
	}
}

func TestMergeEdge_MissingEndpoint(t *testing.T) {
	s := testStore(t)
	mustMerge(t, s, NoteRef("/v/a.md"), nil)
	err := s.MergeEdge(context.Background(), NoteRef("/v/a.md"), RelTaggedWith, TagRef("nope"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMergeEdge_UnknownRelType(t *testing.T) {
	s := testStore(t)
	mustMerge(t, s, NoteRef("/v/a.md"), nil)
	mustMerge(t, s, TagRef("x"), nil)
	if err := s.MergeEdge(context.Background(), NoteRef("/v/a.md"), "DROP_TABLE", TagRef("x")); err == nil {
		t.Fatal("expected error for unknown relationship type")
	}
}

func TestPruneEdges_RemovesOnlyStale(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	note := NoteRef("/v/a.md")
	mustMerge(t, s, note, nil)
	for _, name := range []string{"a", "b", "c"} {
		mustMerge(t, s, TagRef(name), nil)
		mustEdge(t, s, note, RelTaggedWith, TagRef(name))
	}
	mustMerge(t, s, InternalLinkRef("a"), nil)
	mustEdge(t, s, note, RelLinksTo, InternalLinkRef("a"))

	removed, err := s.PruneEdges(ctx, note, RelTaggedWith, LabelTag, []NodeRef{TagRef("b")})
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	tags, err := s.Outgoing(ctx, note, RelTaggedWith)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 1 || tags[0].Str("name") != "b" {
		t.Errorf("remaining tags = %+v, want [b]", tags)
	}
	links, _ := s.Outgoing(ctx, note, RelLinksTo)
	if len(links) != 1 {
		t.Errorf("LINKS_TO edges = %d, other relationship kinds must be untouched", len(links))
	}
	counts, _ := s.CountNodes(ctx)
	if counts[LabelTag] != 3 {
		t.Errorf("tag nodes = %d, pruning must not delete vocabulary", counts[LabelTag])
	}
}

func TestPruneEdges_MissingSourceIsNoop(t *testing.T) {
	s := testStore(t)
	n, err := s.PruneEdges(context.Background(), NoteRef("/v/none.md"), RelTaggedWith, LabelTag, nil)
	if err != nil || n != 0 {
		t.Fatalf("PruneEdges = %d, %v; want 0, nil", n, err)
	}
}

func TestDetachDelete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	folder, a, b, tag := FolderRef("/v"), NoteRef("/v/a.md"), NoteRef("/v/b.md"), TagRef("x")
	for _, r := range []NodeRef{folder, a, b, tag} {
		mustMerge(t, s, r, nil)
	}
	mustEdge(t, s, folder, RelContains, a)
	mustEdge(t, s, folder, RelContains, b)
	mustEdge(t, s, a, RelTaggedWith, tag)
	mustEdge(t, s, b, RelTaggedWith, tag)

	existed, err := s.DetachDelete(ctx, a)
	if err != nil || !existed {
		t.Fatalf("DetachDelete = %v, %v", existed, err)
	}
	if _, err := s.GetNode(ctx, a); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("deleted node still present: %v", err)
	}
	edges, _ := s.CountEdges(ctx)
	if edges[RelContains] != 1 || edges[RelTaggedWith] != 1 {
		t.Errorf("edges = %v, want one CONTAINS and one TAGGED_WITH", edges)
	}
	if _, err := s.GetNode(ctx, tag); err != nil {
		t.Errorf("shared tag removed: %v", err)
	}

	existed, err = s.DetachDelete(ctx, a)
	if err != nil || existed {
		t.Errorf("second DetachDelete = %v, %v; want false, nil", existed, err)
	}
}

func TestIncoming(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	link := InternalLinkRef("b")
	mustMerge(t, s, link, nil)
	for _, p := range []string{"/v/c.md", "/v/a.md"} {
		mustMerge(t, s, NoteRef(p), nil)
		mustEdge(t, s, NoteRef(p), RelLinksTo, link)
	}
	src, err := s.Incoming(ctx, link, RelLinksTo)
	if err != nil {
		t.Fatal(err)
	}
	if len(src) != 2 || src[0].Str("path") != "/v/a.md" || src[1].Str("path") != "/v/c.md" {
		t.Errorf("incoming = %+v", src)
	}
	if _, err := s.Incoming(ctx, InternalLinkRef("missing"), RelLinksTo); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDuplicateHashes(t *testing.T) {
	s := testStore(t)
	mustMerge(t, s, NoteRef("/v/b.md"), Props{"hash": "same"})
	mustMerge(t, s, NoteRef("/v/a.md"), Props{"hash": "same"})
	mustMerge(t, s, NoteRef("/v/c.md"), Props{"hash": "other"})

	groups, err := s.DuplicateHashes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %+v, want 1", groups)
	}
	if groups[0].Hash != "same" || len(groups[0].Paths) != 2 || groups[0].Paths[0] != "/v/a.md" {
		t.Errorf("group = %+v", groups[0])
	}
}

func TestDeleteOrphans(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	note := NoteRef("/v/a.md")
	mustMerge(t, s, note, nil)
	mustMerge(t, s, TagRef("used"), nil)
	mustMerge(t, s, TagRef("dangling"), nil)
	mustEdge(t, s, note, RelTaggedWith, TagRef("used"))

	n, err := s.DeleteOrphans(ctx, LabelTag)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if _, err := s.GetNode(ctx, TagRef("used")); err != nil {
		t.Errorf("referenced tag removed: %v", err)
	}
	if _, err := s.DeleteOrphans(ctx, LabelNote); err == nil {
		t.Error("orphan cleanup must refuse non-vocabulary labels")
	}
}

func TestPathsUnder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	for _, p := range []string{"/v/a.md", "/v/proj/b.md", "/v/proj/deep/c.md", "/v/project.md"} {
		mustMerge(t, s, NoteRef(p), nil)
	}
	mustMerge(t, s, FolderRef("/v/proj"), nil)

	got, err := s.PathsUnder(ctx, LabelNote, "/v/proj")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "/v/proj/b.md,/v/proj/deep/c.md" {
		t.Errorf("notes under /v/proj = %v", got)
	}

	all, err := s.PathsUnder(ctx, LabelNote, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("all notes = %v", all)
	}

	folders, err := s.PathsUnder(ctx, LabelFolder, "/v/proj")
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 1 || folders[0] != "/v/proj" {
		t.Errorf("folders = %v", folders)
	}

	if _, err := s.PathsUnder(ctx, LabelTag, ""); err == nil {
		t.Error("tags are not keyed by path")
	}
}

func TestOpenSQLite_PureGoDriver(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "pure.db"), DriverPureGo)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	mustMerge(t, s, TagRef("go"), nil)
	if _, err := s.GetNode(context.Background(), TagRef("go")); err != nil {
		t.Fatal(err)
	}
}

func TestEntityRelType(t *testing.T) {
	if got := EntityRelType("works for"); got != RelWorksFor {
		t.Errorf("EntityRelType = %q, want %q", got, RelWorksFor)
	}
	if got := EntityRelType("hates"); got != RelRelatedTo {
		t.Errorf("EntityRelType = %q, want %q", got, RelRelatedTo)
	}
}

func TestOpen_SelectsBackend(t *testing.T) {
	s, err := Open(context.Background(), Config{SQLitePath: filepath.Join(t.TempDir(), "g.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("Open returned %T, want *SQLiteStore", s)
	}
	if _, err := Open(context.Background(), Config{Backend: "mongo"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
