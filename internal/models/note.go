// Package models defines the domain types flowing between parser, synchronizer and surfaces.
package models

import "time"

// ParsedNote is the normalized record produced from a note's raw bytes.
type ParsedNote struct {
	Path          string         `json:"path"`
	Name          string         `json:"name"`
	Title         string         `json:"title"`
	Body          string         `json:"body"`
	Frontmatter   string         `json:"frontmatter,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Aliases       []string       `json:"aliases,omitempty"`
	Tags          []string       `json:"tags"`
	InternalLinks []string       `json:"internal_links"`
	ExternalLinks []ExternalLink `json:"external_links"`
	Headers       []Header       `json:"headers"`
	Hash          string         `json:"hash"`
	Encoding      string         `json:"encoding"`
}

// ExternalLink is a markdown [text](url) reference.
type ExternalLink struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Header is an ATX heading with its level (1-6) and 1-based line number in the body.
type Header struct {
	Title string `json:"title"`
	Level int    `json:"level"`
	Line  int    `json:"line"`
}

// FileInfo carries the filesystem attributes mirrored onto a Note node.
type FileInfo struct {
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	Accessed time.Time `json:"accessed"`
	ReadOnly bool      `json:"is_readonly"`
}
