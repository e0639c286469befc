package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/vaultgraph/internal/apperr"
)

func tempVault(t *testing.T, maxSize int64) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir, maxSize)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNewFS_InvalidRoot(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"), 0)
	if !errors.Is(err, apperr.ErrInvalidRoot) {
		t.Fatalf("err = %v, want ErrInvalidRoot", err)
	}

	file := filepath.Join(t.TempDir(), "file.md")
	writeFile(t, file, "x")
	if _, err := NewFS(file, 0); !errors.Is(err, apperr.ErrInvalidRoot) {
		t.Fatalf("err = %v, want ErrInvalidRoot for file root", err)
	}
}

func TestLoad_ReadsContentAndStats(t *testing.T) {
	s := tempVault(t, DefaultMaxNoteSize)
	p := filepath.Join(s.Root(), "a", "note.md")
	writeFile(t, p, "# Hello\nWorld\n")

	data, info, err := s.Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "# Hello\nWorld\n" {
		t.Errorf("content = %q", data)
	}
	if info.Size != int64(len(data)) {
		t.Errorf("size = %d, want %d", info.Size, len(data))
	}
	if info.Modified.IsZero() {
		t.Error("modified time not set")
	}
}

func TestLoad_OversizedIsSkippedBeforeRead(t *testing.T) {
	s := tempVault(t, 10)
	p := filepath.Join(s.Root(), "big.md")
	writeFile(t, p, strings.Repeat("x", 11))

	data, _, err := s.Load(p)
	if apperr.SkipReasonOf(err) != apperr.SkipOversized {
		t.Fatalf("err = %v, want oversized skip", err)
	}
	if data != nil {
		t.Error("oversized file must not be read")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	s := tempVault(t, 0)
	_, _, err := s.Load(filepath.Join(s.Root(), "gone.md"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestLoad_OutsideRootRejected(t *testing.T) {
	s := tempVault(t, 0)
	outside := filepath.Join(t.TempDir(), "other.md")
	writeFile(t, outside, "x")
	if _, _, err := s.Load(outside); err == nil {
		t.Error("expected error for path outside root")
	}
}

func TestResolve_Traversal(t *testing.T) {
	s := tempVault(t, 0)
	if _, err := s.Resolve("../../etc/passwd"); err == nil {
		t.Error("expected error for path traversal")
	}
	if _, err := s.Resolve("/etc/passwd"); err == nil {
		t.Error("expected error for absolute path")
	}
	got, err := s.Resolve("notes/a.md")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != filepath.Join(s.Root(), "notes", "a.md") {
		t.Errorf("resolved = %q", got)
	}
}

func TestRel(t *testing.T) {
	s := tempVault(t, 0)
	rel, err := s.Rel(filepath.Join(s.Root(), "notes", "a.md"))
	if err != nil {
		t.Fatalf("Rel: %v", err)
	}
	if rel != "notes/a.md" {
		t.Errorf("rel = %q, want %q", rel, "notes/a.md")
	}
}
