// Package storage provides confined, size-limited access to the note tree on disk.
package storage

import "github.com/starford/vaultgraph/internal/models"

// Vault is the file side of the sync pipeline.
type Vault interface {
	// Root returns the absolute vault root.
	Root() string
	Contains(abs string) bool
	Rel(abs string) (string, error)
	Resolve(rel string) (string, error)
	// Load returns the raw bytes and file attributes of the file at abs.
	// Files above the size limit yield an oversized *apperr.SkipError without being read.
	Load(abs string) ([]byte, models.FileInfo, error)
}

var _ Vault = (*FS)(nil)
