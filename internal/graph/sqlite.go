package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sort"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/starford/vaultgraph/internal/apperr"
)

// SQLite driver names accepted by OpenSQLite.
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS nodes (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	label TEXT NOT NULL,
	key   TEXT NOT NULL,
	props TEXT NOT NULL DEFAULT '{}',
	UNIQUE(label, key)
);

CREATE TABLE IF NOT EXISTS edges (
	src INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	rel TEXT    NOT NULL,
	dst INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	UNIQUE(src, rel, dst)
);

CREATE INDEX IF NOT EXISTS idx_nodes_label ON nodes(label);
CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(dst, rel);
`

// SQLiteStore is an embedded property graph: one nodes table keyed by
// (label, canonical key) and one edges table keyed by (src, rel, dst).
type SQLiteStore struct {
	conn *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the graph database at path with the given driver
// (DriverCGO or DriverPureGo; empty means DriverCGO) and applies the schema.
func OpenSQLite(ctx context.Context, path, driver string) (*SQLiteStore, error) {
	var dsn string
	switch driver {
	case "", DriverCGO:
		driver = DriverCGO
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	case DriverPureGo:
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	default:
		return nil, fmt.Errorf("graph: unknown sqlite driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("graph: open db: %w", err)
	}
	// One writer at a time; concurrent callers queue on the pool instead of
	// racing for the database lock.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("graph: ping: %w", err)
	}
	if _, err := conn.ExecContext(ctx, sqliteSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("graph: apply schema: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// nodeID looks up the row id of ref. ok is false when the node does not exist.
func nodeID(ctx context.Context, q queryer, ref NodeRef) (id int64, ok bool, err error) {
	if err := ref.Validate(); err != nil {
		return 0, false, err
	}
	key, err := ref.keyString()
	if err != nil {
		return 0, false, err
	}
	err = q.QueryRowContext(ctx, `SELECT id FROM nodes WHERE label = ? AND key = ?`, string(ref.Label), key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("graph: lookup %s: %w", ref, err)
	}
	return id, true, nil
}

// MergeNode upserts ref and merges set into its stored properties.
func (s *SQLiteStore) MergeNode(ctx context.Context, ref NodeRef, set Props) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	key, err := ref.keyString()
	if err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("graph: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	props := Props{}
	var existing string
	err = tx.QueryRowContext(ctx, `SELECT props FROM nodes WHERE label = ? AND key = ?`, string(ref.Label), key).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("graph: merge node %s: %w", ref, err)
	default:
		if err := json.Unmarshal([]byte(existing), &props); err != nil {
			return fmt.Errorf("graph: decode props %s: %w", ref, err)
		}
	}
	maps.Copy(props, set)
	maps.Copy(props, ref.Key)

	data, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("graph: encode props %s: %w", ref, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO nodes (label, key, props) VALUES (?, ?, ?)
		ON CONFLICT(label, key) DO UPDATE SET props = excluded.props
	`, string(ref.Label), key, string(data))
	if err != nil {
		return fmt.Errorf("graph: merge node %s: %w", ref, err)
	}
	return tx.Commit()
}

// MergeEdge ensures exactly one rel edge between two existing nodes.
func (s *SQLiteStore) MergeEdge(ctx context.Context, from NodeRef, rel RelType, to NodeRef) error {
	if !rel.Valid() {
		return fmt.Errorf("graph: unknown relationship type %q", rel)
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("graph: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	src, ok, err := nodeID(ctx, tx, from)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("graph: merge edge: %s: %w", from, apperr.ErrNotFound)
	}
	dst, ok, err := nodeID(ctx, tx, to)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("graph: merge edge: %s: %w", to, apperr.ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO edges (src, rel, dst) VALUES (?, ?, ?)
		ON CONFLICT(src, rel, dst) DO NOTHING
	`, src, string(rel), dst)
	if err != nil {
		return fmt.Errorf("graph: merge edge %s-[%s]->%s: %w", from, rel, to, err)
	}
	return tx.Commit()
}

// PruneEdges deletes rel edges from `from` to toLabel nodes whose key is not in keep.
func (s *SQLiteStore) PruneEdges(ctx context.Context, from NodeRef, rel RelType, toLabel Label, keep []NodeRef) (int, error) {
	if !rel.Valid() || !toLabel.Valid() {
		return 0, fmt.Errorf("graph: prune %s->%s: invalid schema name", rel, toLabel)
	}
	keepKeys := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		ks, err := k.keyString()
		if err != nil {
			return 0, err
		}
		keepKeys[ks] = struct{}{}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("graph: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	src, ok, err := nodeID(ctx, tx, from)
	if err != nil || !ok {
		return 0, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT e.rowid, d.key FROM edges e
		JOIN nodes d ON d.id = e.dst
		WHERE e.src = ? AND e.rel = ? AND d.label = ?
	`, src, string(rel), string(toLabel))
	if err != nil {
		return 0, fmt.Errorf("graph: prune query: %w", err)
	}
	var stale []int64
	for rows.Next() {
		var rowid int64
		var key string
		if err := rows.Scan(&rowid, &key); err != nil {
			rows.Close()
			return 0, fmt.Errorf("graph: prune scan: %w", err)
		}
		if _, ok := keepKeys[key]; !ok {
			stale = append(stale, rowid)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, rowid := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE rowid = ?`, rowid); err != nil {
			return 0, fmt.Errorf("graph: prune delete: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("graph: prune commit: %w", err)
	}
	return len(stale), nil
}

// DetachDelete removes ref and every edge touching it.
func (s *SQLiteStore) DetachDelete(ctx context.Context, ref NodeRef) (bool, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("graph: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id, ok, err := nodeID(ctx, tx, ref)
	if err != nil || !ok {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE src = ? OR dst = ?`, id, id); err != nil {
		return false, fmt.Errorf("graph: delete edges of %s: %w", ref, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("graph: delete %s: %w", ref, err)
	}
	return true, tx.Commit()
}

// GetNode returns the node identified by ref.
func (s *SQLiteStore) GetNode(ctx context.Context, ref NodeRef) (*Node, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	key, err := ref.keyString()
	if err != nil {
		return nil, err
	}
	var raw string
	err = s.conn.QueryRowContext(ctx, `SELECT props FROM nodes WHERE label = ? AND key = ?`, string(ref.Label), key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("graph: get %s: %w", ref, err)
	}
	n := &Node{Label: ref.Label}
	if err := json.Unmarshal([]byte(raw), &n.Props); err != nil {
		return nil, fmt.Errorf("graph: decode props %s: %w", ref, err)
	}
	return n, nil
}

// Outgoing returns the targets of rel edges leaving from, ordered by label and key.
func (s *SQLiteStore) Outgoing(ctx context.Context, from NodeRef, rel RelType) ([]Node, error) {
	return s.neighbors(ctx, from, rel, `
		SELECT n.label, n.props FROM edges e
		JOIN nodes n ON n.id = e.dst
		WHERE e.src = ? AND e.rel = ?
		ORDER BY n.label, n.key
	`)
}

// Incoming returns the sources of rel edges entering to, ordered by label and key.
func (s *SQLiteStore) Incoming(ctx context.Context, to NodeRef, rel RelType) ([]Node, error) {
	return s.neighbors(ctx, to, rel, `
		SELECT n.label, n.props FROM edges e
		JOIN nodes n ON n.id = e.src
		WHERE e.dst = ? AND e.rel = ?
		ORDER BY n.label, n.key
	`)
}

func (s *SQLiteStore) neighbors(ctx context.Context, ref NodeRef, rel RelType, query string) ([]Node, error) {
	id, ok, err := nodeID(ctx, s.conn, ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrNotFound
	}
	rows, err := s.conn.QueryContext(ctx, query, id, string(rel))
	if err != nil {
		return nil, fmt.Errorf("graph: neighbors of %s: %w", ref, err)
	}
	defer rows.Close()

	out := []Node{}
	for rows.Next() {
		var label, raw string
		if err := rows.Scan(&label, &raw); err != nil {
			return nil, fmt.Errorf("graph: scan neighbor: %w", err)
		}
		n := Node{Label: Label(label)}
		if err := json.Unmarshal([]byte(raw), &n.Props); err != nil {
			return nil, fmt.Errorf("graph: decode neighbor: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountNodes returns node counts grouped by label.
func (s *SQLiteStore) CountNodes(ctx context.Context) (map[Label]int, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT label, COUNT(*) FROM nodes GROUP BY label`)
	if err != nil {
		return nil, fmt.Errorf("graph: count nodes: %w", err)
	}
	defer rows.Close()

	out := make(map[Label]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("graph: count nodes: %w", err)
		}
		out[Label(label)] = n
	}
	return out, rows.Err()
}

// CountEdges returns edge counts grouped by relationship type.
func (s *SQLiteStore) CountEdges(ctx context.Context) (map[RelType]int, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT rel, COUNT(*) FROM edges GROUP BY rel`)
	if err != nil {
		return nil, fmt.Errorf("graph: count edges: %w", err)
	}
	defer rows.Close()

	out := make(map[RelType]int)
	for rows.Next() {
		var rel string
		var n int
		if err := rows.Scan(&rel, &n); err != nil {
			return nil, fmt.Errorf("graph: count edges: %w", err)
		}
		out[RelType(rel)] = n
	}
	return out, rows.Err()
}

// DuplicateHashes groups notes by their hash property.
func (s *SQLiteStore) DuplicateHashes(ctx context.Context) ([]DuplicateGroup, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT props FROM nodes WHERE label = ?`, string(LabelNote))
	if err != nil {
		return nil, fmt.Errorf("graph: duplicates: %w", err)
	}
	defer rows.Close()

	byHash := make(map[string][]string)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("graph: duplicates scan: %w", err)
		}
		var p struct {
			Path string `json:"path"`
			Hash string `json:"hash"`
		}
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("graph: duplicates decode: %w", err)
		}
		if p.Hash != "" {
			byHash[p.Hash] = append(byHash[p.Hash], p.Path)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groupDuplicates(byHash), nil
}

func groupDuplicates(byHash map[string][]string) []DuplicateGroup {
	out := []DuplicateGroup{}
	for hash, paths := range byHash {
		if len(paths) < 2 {
			continue
		}
		sort.Strings(paths)
		out = append(out, DuplicateGroup{Hash: hash, Paths: paths})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out
}

// PathsUnder returns the paths of label nodes at or below dir.
func (s *SQLiteStore) PathsUnder(ctx context.Context, label Label, dir string) ([]string, error) {
	if !label.pathKeyed() {
		return nil, fmt.Errorf("graph: %s is not keyed by path", label)
	}
	rows, err := s.conn.QueryContext(ctx, `SELECT props FROM nodes WHERE label = ?`, string(label))
	if err != nil {
		return nil, fmt.Errorf("graph: paths under %s: %w", dir, err)
	}
	defer rows.Close()

	paths := []string{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("graph: paths scan: %w", err)
		}
		var p struct {
			Path string `json:"path"`
		}
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("graph: paths decode: %w", err)
		}
		if under(p.Path, dir) {
			paths = append(paths, p.Path)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// DeleteOrphans removes label nodes that no edge references.
func (s *SQLiteStore) DeleteOrphans(ctx context.Context, label Label) (int, error) {
	if !label.Vocabulary() {
		return 0, fmt.Errorf("graph: orphan cleanup not allowed for %s", label)
	}
	res, err := s.conn.ExecContext(ctx, `
		DELETE FROM nodes
		WHERE label = ?
		  AND NOT EXISTS (SELECT 1 FROM edges WHERE edges.dst = nodes.id OR edges.src = nodes.id)
	`, string(label))
	if err != nil {
		return 0, fmt.Errorf("graph: delete orphans %s: %w", label, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
