package noteservice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/starford/vaultgraph/internal/apperr"
	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/storage"
	"github.com/starford/vaultgraph/internal/testutil"
	"github.com/starford/vaultgraph/internal/watcher"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) NoteChanged(kind, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+":"+path)
}

func setup(t *testing.T, opts ...Option) (string, *Service, graph.Store) {
	t.Helper()
	root, files := testutil.TestVault(t)
	store := testutil.TestStore(t)
	opts = append([]Option{WithLogger(testutil.Discard())}, opts...)
	return root, New(files, storage.DefaultFilter(), store, opts...), store
}

func TestSyncFile(t *testing.T) {
	n := &recordingNotifier{}
	root, svc, store := setup(t, WithNotifier(n))
	ctx := context.Background()
	abs := testutil.WriteNote(t, root, "notes/a.md", "---\ntitle: Alpha\n---\n# One\nsee [[b]] #tag\n")

	note, err := svc.SyncFile(ctx, abs)
	if err != nil {
		t.Fatalf("SyncFile: %v", err)
	}
	if note.Title != "Alpha" {
		t.Errorf("title = %q", note.Title)
	}
	node, err := store.GetNode(ctx, graph.NoteRef(abs))
	if err != nil {
		t.Fatal(err)
	}
	if node.Int("size") != len("---\ntitle: Alpha\n---\n# One\nsee [[b]] #tag\n") {
		t.Errorf("size = %d", node.Int("size"))
	}
	if len(n.events) != 1 || n.events[0] != "synced:notes/a.md" {
		t.Errorf("notifications = %v", n.events)
	}
}

func TestSyncFile_Skips(t *testing.T) {
	root, svc, store := setup(t)
	ctx := context.Background()

	cases := []struct {
		rel, content string
		want         apperr.SkipReason
	}{
		{".hidden.md", "# x", apperr.SkipHidden},
		{"image.png", "png", apperr.SkipNotNote},
		{"node_modules/pkg/r.md", "x", apperr.SkipIgnored},
		{"empty.md", "  \n\n", apperr.SkipEmpty},
		{"big.md", strings.Repeat("a", storage.DefaultMaxNoteSize+1), apperr.SkipOversized},
	}
	for _, tc := range cases {
		abs := testutil.WriteNote(t, root, tc.rel, tc.content)
		_, err := svc.SyncFile(ctx, abs)
		if got := apperr.SkipReasonOf(err); got != tc.want {
			t.Errorf("%s: skip reason = %q (err %v), want %q", tc.rel, got, err, tc.want)
		}
	}
	counts, _ := store.CountNodes(ctx)
	if counts[graph.LabelNote] != 0 {
		t.Errorf("notes = %d, skipped files must not reach the graph", counts[graph.LabelNote])
	}
}

func TestSyncFile_OutsideRoot(t *testing.T) {
	_, svc, _ := setup(t)
	_, err := svc.SyncFile(context.Background(), filepath.Join(t.TempDir(), "x.md"))
	if !errors.Is(err, apperr.ErrOutsideRoot) {
		t.Errorf("err = %v, want ErrOutsideRoot", err)
	}
}

func TestSyncFile_MissingFileDeletes(t *testing.T) {
	root, svc, store := setup(t)
	ctx := context.Background()
	abs := testutil.WriteNote(t, root, "a.md", "# A")
	if _, err := svc.SyncFile(ctx, abs); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(abs); err != nil {
		t.Fatal(err)
	}

	_, err := svc.SyncFile(ctx, abs)
	if apperr.SkipReasonOf(err) != apperr.SkipMissing {
		t.Fatalf("err = %v, want missing skip", err)
	}
	if _, err := store.GetNode(ctx, graph.NoteRef(abs)); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("note survived: %v", err)
	}
}

func TestHandleEvent_Move(t *testing.T) {
	n := &recordingNotifier{}
	root, svc, store := setup(t, WithNotifier(n))
	ctx := context.Background()
	oldAbs := testutil.WriteNote(t, root, "old.md", "# Title\n#t\n")
	if err := svc.HandleEvent(ctx, watcher.Event{Kind: watcher.Created, Path: oldAbs}); err != nil {
		t.Fatal(err)
	}

	newAbs := filepath.Join(root, "sub", "new.md")
	if err := os.MkdirAll(filepath.Dir(newAbs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldAbs, newAbs); err != nil {
		t.Fatal(err)
	}
	if err := svc.HandleEvent(ctx, watcher.Event{Kind: watcher.Moved, Path: oldAbs, NewPath: newAbs}); err != nil {
		t.Fatal(err)
	}

	if _, err := store.GetNode(ctx, graph.NoteRef(oldAbs)); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("old note survived: %v", err)
	}
	if _, err := store.GetNode(ctx, graph.NoteRef(newAbs)); err != nil {
		t.Errorf("new note missing: %v", err)
	}
	want := []string{"synced:old.md", "deleted:old.md", "synced:sub/new.md"}
	if strings.Join(n.events, ",") != strings.Join(want, ",") {
		t.Errorf("notifications = %v, want %v", n.events, want)
	}
}

func TestHandleEvent_SkipIsNotAnError(t *testing.T) {
	root, svc, _ := setup(t)
	abs := testutil.WriteNote(t, root, "empty.md", "")
	if err := svc.HandleEvent(context.Background(), watcher.Event{Kind: watcher.Modified, Path: abs}); err != nil {
		t.Errorf("HandleEvent = %v, want nil for a skipped file", err)
	}
}

func TestHandleEvent_Delete(t *testing.T) {
	root, svc, store := setup(t)
	ctx := context.Background()
	abs := testutil.WriteNote(t, root, "a.md", "#x")
	if _, err := svc.SyncFile(ctx, abs); err != nil {
		t.Fatal(err)
	}
	if err := svc.HandleEvent(ctx, watcher.Event{Kind: watcher.Deleted, Path: abs}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetNode(ctx, graph.NoteRef(abs)); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("note survived delete: %v", err)
	}
}

type stubDetector struct {
	res *models.DetectionResult
	err error
}

func (d stubDetector) Detect(context.Context, *models.ParsedNote) (*models.DetectionResult, error) {
	return d.res, d.err
}

func TestSyncFile_WritesEntities(t *testing.T) {
	det := stubDetector{res: &models.DetectionResult{
		Entities: []models.Entity{{Name: "Ada Lovelace", Type: models.EntityPerson, Confidence: 0.9}},
	}}
	root, svc, _ := setup(t, WithDetector(det, 0))
	ctx := context.Background()
	testutil.WriteNote(t, root, "a.md", "Ada Lovelace")
	if _, err := svc.SyncFile(ctx, filepath.Join(root, "a.md")); err != nil {
		t.Fatal(err)
	}

	d, err := svc.Note(ctx, "a.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Entities) != 1 || d.Entities[0].Name != "Ada Lovelace" || d.Entities[0].Type != "Person" {
		t.Errorf("entities = %+v", d.Entities)
	}
}

func TestSyncFile_DetectorFailureDoesNotFailSync(t *testing.T) {
	root, svc, store := setup(t, WithDetector(stubDetector{err: errors.New("rate limited")}, 0))
	ctx := context.Background()
	abs := testutil.WriteNote(t, root, "a.md", "Ada Lovelace")
	if _, err := svc.SyncFile(ctx, abs); err != nil {
		t.Fatalf("SyncFile = %v, detection errors must not fail the sync", err)
	}
	if _, err := store.GetNode(ctx, graph.NoteRef(abs)); err != nil {
		t.Errorf("note missing: %v", err)
	}
}

func TestNote_DetailAndBacklinks(t *testing.T) {
	root, svc, _ := setup(t)
	ctx := context.Background()
	files := map[string]string{
		"b.md":      "---\naliases: [Bee]\n---\n# B heading\n[site](https://example.com) #topic\n",
		"a.md":      "links to [[b]]\n",
		"c/c.md":    "links to [[Bee]] and [[b]]\n",
		"d/none.md": "no links here\n",
	}
	for rel, content := range files {
		if _, err := svc.SyncFile(ctx, testutil.WriteNote(t, root, rel, content)); err != nil {
			t.Fatal(err)
		}
	}

	d, err := svc.Note(ctx, "b.md")
	if err != nil {
		t.Fatal(err)
	}
	if d.Path != "b.md" || d.Name != "b" {
		t.Errorf("detail = %+v", d)
	}
	if len(d.Aliases) != 1 || d.Aliases[0] != "Bee" {
		t.Errorf("aliases = %v", d.Aliases)
	}
	if len(d.Tags) != 1 || d.Tags[0] != "topic" {
		t.Errorf("tags = %v", d.Tags)
	}
	if len(d.Headers) != 1 || d.Headers[0].Title != "B heading" {
		t.Errorf("headers = %+v", d.Headers)
	}
	if len(d.ExternalLinks) != 1 || d.ExternalLinks[0].URL != "https://example.com" {
		t.Errorf("external links = %+v", d.ExternalLinks)
	}
	if len(d.Backlinks) != 2 || d.Backlinks[0].Path != "a.md" || d.Backlinks[1].Path != "c/c.md" {
		t.Errorf("backlinks = %+v", d.Backlinks)
	}

	if _, err := svc.Note(ctx, "missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Note(ctx, "../etc/passwd"); err == nil {
		t.Error("expected error for path traversal")
	}
}

func TestReadQueries(t *testing.T) {
	root, svc, _ := setup(t)
	ctx := context.Background()
	for rel, content := range map[string]string{
		"a.md": "same #shared",
		"b.md": "same #shared",
		"c.md": "different",
	} {
		if _, err := svc.SyncFile(ctx, testutil.WriteNote(t, root, rel, content)); err != nil {
			t.Fatal(err)
		}
	}

	tagged, err := svc.NotesWithTag(ctx, "#shared")
	if err != nil {
		t.Fatal(err)
	}
	if len(tagged) != 2 || tagged[0].Path != "a.md" {
		t.Errorf("tagged = %+v", tagged)
	}

	dups, err := svc.Duplicates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(dups) != 1 || strings.Join(dups[0].Paths, ",") != "a.md,b.md" {
		t.Errorf("duplicates = %+v", dups)
	}

	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Nodes[graph.LabelNote] != 3 || st.Nodes[graph.LabelTag] != 1 || st.Relationships[graph.RelTaggedWith] != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestPruneVocabulary(t *testing.T) {
	root, svc, store := setup(t)
	ctx := context.Background()
	abs := testutil.WriteNote(t, root, "a.md", "#old [[gone]]")
	if _, err := svc.SyncFile(ctx, abs); err != nil {
		t.Fatal(err)
	}
	testutil.WriteNote(t, root, "a.md", "#new")
	if _, err := svc.SyncFile(ctx, abs); err != nil {
		t.Fatal(err)
	}

	removed, err := svc.PruneVocabulary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed[graph.LabelTag] != 1 || removed[graph.LabelInternalLink] != 1 {
		t.Errorf("removed = %v", removed)
	}
	if _, err := store.GetNode(ctx, graph.TagRef("new")); err != nil {
		t.Errorf("referenced tag pruned: %v", err)
	}
}

func TestHandleEvent_DeletedDir(t *testing.T) {
	n := &recordingNotifier{}
	root, svc, store := setup(t, WithNotifier(n))
	ctx := context.Background()
	for _, rel := range []string{"proj/a.md", "proj/deep/b.md", "project.md"} {
		abs := testutil.WriteNote(t, root, rel, "#shared\n")
		if _, err := svc.SyncFile(ctx, abs); err != nil {
			t.Fatal(err)
		}
	}
	proj := filepath.Join(root, "proj")
	if err := os.RemoveAll(proj); err != nil {
		t.Fatal(err)
	}
	n.events = nil

	if err := svc.HandleEvent(ctx, watcher.Event{Kind: watcher.DeletedDir, Path: proj}); err != nil {
		t.Fatal(err)
	}

	nodes, _ := store.CountNodes(ctx)
	if nodes[graph.LabelNote] != 1 || nodes[graph.LabelFolder] != 1 || nodes[graph.LabelTag] != 1 {
		t.Errorf("nodes after directory removal = %v", nodes)
	}
	if _, err := store.GetNode(ctx, graph.NoteRef(filepath.Join(root, "project.md"))); err != nil {
		t.Errorf("sibling with a shared name prefix was removed: %v", err)
	}
	want := []string{"deleted:proj/a.md", "deleted:proj/deep/b.md"}
	if strings.Join(n.events, ",") != strings.Join(want, ",") {
		t.Errorf("notifications = %v, want %v", n.events, want)
	}
}

func TestHandleEvent_StaleModifyAfterMove(t *testing.T) {
	root, svc, store := setup(t)
	ctx := context.Background()
	oldAbs := testutil.WriteNote(t, root, "old.md", "# Old\n")
	if _, err := svc.SyncFile(ctx, oldAbs); err != nil {
		t.Fatal(err)
	}
	newAbs := filepath.Join(root, "new.md")
	if err := os.Rename(oldAbs, newAbs); err != nil {
		t.Fatal(err)
	}

	events := []watcher.Event{
		{Kind: watcher.Moved, Path: oldAbs, NewPath: newAbs},
		{Kind: watcher.Modified, Path: oldAbs},
	}
	for _, ev := range events {
		if err := svc.HandleEvent(ctx, ev); err != nil {
			t.Fatalf("%s: %v", ev.Kind, err)
		}
	}

	if _, err := store.GetNode(ctx, graph.NoteRef(oldAbs)); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("old note came back: %v", err)
	}
	if _, err := store.GetNode(ctx, graph.NoteRef(newAbs)); err != nil {
		t.Errorf("new note missing: %v", err)
	}
}
