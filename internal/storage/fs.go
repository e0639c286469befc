package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/vaultgraph/internal/apperr"
	"github.com/starford/vaultgraph/internal/models"
)

// DefaultMaxNoteSize is the byte limit above which notes are skipped.
const DefaultMaxNoteSize = 100000

// FS reads notes from a local directory tree.
type FS struct {
	root    string // absolute path to vault directory
	maxSize int64
}

// NewFS creates a new FS rooted at the given directory. The directory must already exist.
// maxSize <= 0 disables the size limit.
func NewFS(root string, maxSize int64) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: %w: %s: %v", apperr.ErrInvalidRoot, abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: %w: not a directory: %s", apperr.ErrInvalidRoot, abs)
	}
	return &FS{root: abs, maxSize: maxSize}, nil
}

// Root returns the absolute vault root.
func (f *FS) Root() string {
	return f.root
}

// Contains reports whether abs is the root or lies beneath it.
func (f *FS) Contains(abs string) bool {
	abs = filepath.Clean(abs)
	return abs == f.root || strings.HasPrefix(abs, f.root+string(os.PathSeparator))
}

// Rel returns abs relative to the root, using forward slashes.
func (f *FS) Rel(abs string) (string, error) {
	if !f.Contains(abs) {
		return "", fmt.Errorf("storage: path escapes vault root: %s", abs)
	}
	rel, err := filepath.Rel(f.root, abs)
	if err != nil {
		return "", fmt.Errorf("storage: rel: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

// Resolve turns a vault-relative path into an absolute one and rejects
// any result that escapes the root (directory traversal).
func (f *FS) Resolve(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute path %s: %w", rel, apperr.ErrOutsideRoot)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !f.Contains(abs) {
		return "", fmt.Errorf("storage: %s escapes vault root: %w", rel, apperr.ErrOutsideRoot)
	}
	return abs, nil
}

// Stat returns the attributes mirrored onto a Note node.
func (f *FS) Stat(abs string) (models.FileInfo, error) {
	if !f.Contains(abs) {
		return models.FileInfo{}, fmt.Errorf("storage: path escapes vault root: %s", abs)
	}
	return statFile(abs)
}

// Load checks the size limit, then reads the file.
func (f *FS) Load(abs string) ([]byte, models.FileInfo, error) {
	info, err := f.Stat(abs)
	if err != nil {
		return nil, models.FileInfo{}, err
	}
	if f.maxSize > 0 && info.Size > f.maxSize {
		return nil, info, apperr.Skip(abs, apperr.SkipOversized)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, info, fmt.Errorf("storage: read %s: %w", abs, err)
	}
	info.Size = int64(len(data))
	return data, info, nil
}
