package api

import (
	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/noteservice"
)

// NoteDetail is the full note response (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteSummary is a lightweight note reference (aliased from the domain layer).
type NoteSummary = noteservice.NoteSummary

// GraphStats is the graph count response (aliased from the domain layer).
type GraphStats = noteservice.GraphStats

// NoteListResponse wraps a list of note references.
type NoteListResponse struct {
	Notes []NoteSummary `json:"notes"`
	Total int           `json:"total"`
}

// DuplicatesResponse wraps groups of notes sharing a content hash.
type DuplicatesResponse struct {
	Groups []graph.DuplicateGroup `json:"groups"`
	Total  int                    `json:"total"`
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
