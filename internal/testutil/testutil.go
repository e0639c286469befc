// Package testutil provides shared test helpers for setting up vaults and graph stores.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/storage"
)

// TestStore creates a temporary SQLite graph store that is automatically closed.
func TestStore(t *testing.T) *graph.SQLiteStore {
	t.Helper()
	store, err := graph.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "graph.db"), graph.DriverCGO)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestVault creates a temporary vault directory with a storage.FS using the default size limit.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	files, err := storage.NewFS(vaultDir, storage.DefaultMaxNoteSize)
	if err != nil {
		t.Fatal(err)
	}
	return files.Root(), files
}

// WriteNote writes content to root/rel, creating parent directories, and returns the absolute path.
func WriteNote(t *testing.T, root, rel, content string) string {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return abs
}

// Logger returns a logger that only reports errors, to stderr.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
