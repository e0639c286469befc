package graph

import "context"

//go:generate mockgen -source=store.go -destination=mocks/store.go -package=mocks

// Store is the idempotent upsert/delete surface of a property-graph backend.
// Every write is keyed by natural identity, so concurrent writers of the same
// vocabulary node converge on one node through the backend's own conflict handling.
type Store interface {
	// MergeNode matches ref by key or creates it, then sets the given properties.
	// Properties not named in set are left untouched.
	MergeNode(ctx context.Context, ref NodeRef, set Props) error
	// MergeEdge ensures a single rel edge from -> to. Both nodes must exist.
	MergeEdge(ctx context.Context, from NodeRef, rel RelType, to NodeRef) error
	// PruneEdges removes outgoing rel edges of from whose target has toLabel and is not in keep.
	PruneEdges(ctx context.Context, from NodeRef, rel RelType, toLabel Label, keep []NodeRef) (int, error)
	// DetachDelete removes the node and every edge touching it. It reports whether the node existed.
	DetachDelete(ctx context.Context, ref NodeRef) (bool, error)

	// GetNode returns the node or apperr.ErrNotFound.
	GetNode(ctx context.Context, ref NodeRef) (*Node, error)
	// Outgoing returns the targets of rel edges leaving from.
	Outgoing(ctx context.Context, from NodeRef, rel RelType) ([]Node, error)
	// Incoming returns the sources of rel edges entering to.
	Incoming(ctx context.Context, to NodeRef, rel RelType) ([]Node, error)
	// CountNodes returns node counts by label.
	CountNodes(ctx context.Context) (map[Label]int, error)
	// CountEdges returns edge counts by relationship type.
	CountEdges(ctx context.Context) (map[RelType]int, error)
	// DuplicateHashes groups Note paths by content hash, keeping groups with more than one note.
	DuplicateHashes(ctx context.Context) ([]DuplicateGroup, error)
	// DeleteOrphans removes vocabulary nodes of label with no edges at all.
	DeleteOrphans(ctx context.Context, label Label) (int, error)
	// PathsUnder returns the sorted paths of Folder or Note nodes at dir or
	// below it. An empty dir returns every path of label.
	PathsUnder(ctx context.Context, label Label, dir string) ([]string, error)

	Close() error
}
