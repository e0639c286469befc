package storage

import (
	"path/filepath"
	"strings"
)

// DefaultExtensions are the file extensions treated as notes.
var DefaultExtensions = []string{".md", ".markdown"}

// DefaultIgnore lists directory-name substrings skipped during walks and watches:
// editor metadata, version control, build output, virtual environments and caches.
var DefaultIgnore = []string{
	".obsidian", ".trash", ".git", ".svn", ".hg",
	"__pycache__", "node_modules", ".venv", "venv", "env", ".env",
	"build", "dist", "target", "bin", "obj",
	".idea", ".vscode", "coverage",
	".pytest_cache", ".mypy_cache", ".tox", ".eggs",
}

// Filter decides which directories and files take part in the graph.
type Filter struct {
	Extensions []string
	Ignore     []string
}

// DefaultFilter returns a Filter with DefaultExtensions and DefaultIgnore.
func DefaultFilter() Filter {
	return Filter{Extensions: DefaultExtensions, Ignore: DefaultIgnore}
}

// IgnoredDir reports whether a directory name contains any ignore substring.
func (f Filter) IgnoredDir(name string) bool {
	for _, p := range f.Ignore {
		if p != "" && strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// IsNote reports whether a file name is a visible file with a note extension.
func (f Filter) IsNote(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range f.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// IgnoredPath reports whether any directory segment of abs below root is ignored.
// The final segment is treated as a directory name too, so this also answers
// "should this directory be watched".
func (f Filter) IgnoredPath(root, abs string) bool {
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if f.IgnoredDir(seg) {
			return true
		}
	}
	return false
}

// Accept reports whether abs is a note file under root outside any ignored directory.
func (f Filter) Accept(root, abs string) bool {
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	if !f.IsNote(filepath.Base(abs)) {
		return false
	}
	return !f.IgnoredPath(root, filepath.Dir(abs))
}
