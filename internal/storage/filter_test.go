package storage

import (
	"path/filepath"
	"testing"
)

func TestFilter_IsNote(t *testing.T) {
	f := DefaultFilter()
	cases := map[string]bool{
		"a.md":       true,
		"b.markdown": true,
		"C.MD":       true,
		".hidden.md": false,
		"image.png":  false,
		"notes.txt":  false,
	}
	for name, want := range cases {
		if got := f.IsNote(name); got != want {
			t.Errorf("IsNote(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestFilter_IgnoredDirSubstring(t *testing.T) {
	f := DefaultFilter()
	for _, name := range []string{".git", ".obsidian", "node_modules", "my-venv", "dist"} {
		if !f.IgnoredDir(name) {
			t.Errorf("IgnoredDir(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"notes", "journal", "projects"} {
		if f.IgnoredDir(name) {
			t.Errorf("IgnoredDir(%q) = true, want false", name)
		}
	}
}

func TestFilter_Accept(t *testing.T) {
	f := DefaultFilter()
	root := filepath.FromSlash("/vault")
	cases := map[string]bool{
		"/vault/a.md":                   true,
		"/vault/notes/deep/a.md":        true,
		"/vault/.obsidian/workspace.md": false,
		"/vault/notes/.git/x.md":        false,
		"/vault/notes/a.txt":            false,
		"/elsewhere/a.md":               false,
	}
	for p, want := range cases {
		if got := f.Accept(root, filepath.FromSlash(p)); got != want {
			t.Errorf("Accept(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestFilter_CustomSets(t *testing.T) {
	f := Filter{Extensions: []string{".txt"}, Ignore: []string{"archive"}}
	if !f.IsNote("a.txt") || f.IsNote("a.md") {
		t.Error("custom extension set not honored")
	}
	if !f.IgnoredPath("/vault", "/vault/old-archive/x") {
		t.Error("custom ignore set not honored")
	}
}
