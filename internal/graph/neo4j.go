package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/starford/vaultgraph/internal/apperr"
)

// Neo4jConfig holds connection settings for a Bolt/Neo4j endpoint.
type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string
}

// Neo4jStore speaks parameterized Cypher to an external property-graph server.
// Values always travel as parameters; only schema labels, relationship types and
// key property names (all whitelisted) are spliced into query text.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ Store = (*Neo4jStore)(nil)

// OpenNeo4j connects, verifies connectivity and ensures uniqueness constraints.
func OpenNeo4j(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("graph: neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graph: neo4j connect %s: %w", cfg.URI, err)
	}
	s := &Neo4jStore{driver: driver, database: cfg.Database}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

// Close releases the driver's connection pool.
func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}

// EnsureSchema creates one uniqueness constraint per label over its natural key.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	for _, label := range Labels() {
		fields := label.KeyFields()
		props := make([]string, len(fields))
		for i, f := range fields {
			props[i] = "n." + f
		}
		target := props[0]
		if len(props) > 1 {
			target = "(" + strings.Join(props, ", ") + ")"
		}
		query := fmt.Sprintf("CREATE CONSTRAINT %s_key IF NOT EXISTS FOR (n:%s) REQUIRE %s IS UNIQUE",
			strings.ToLower(string(label)), label, target)
		if _, err := s.run(ctx, neo4j.AccessModeWrite, query, nil); err != nil {
			return fmt.Errorf("graph: ensure constraint %s: %w", label, err)
		}
	}
	return nil
}

func (s *Neo4jStore) run(ctx context.Context, mode neo4j.AccessMode, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return result.Collect(ctx)
}

// pattern renders "(v:Label {f: $p.f, ...})" for ref's key fields.
func pattern(variable string, ref NodeRef, param string) string {
	fields := ref.Label.KeyFields()
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s: $%s.%s", f, param, f)
	}
	return fmt.Sprintf("(%s:%s {%s})", variable, ref.Label, strings.Join(parts, ", "))
}

// keyTuple renders "[v.f1, v.f2]" for label's key fields.
func keyTuple(variable string, label Label) string {
	fields := label.KeyFields()
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = variable + "." + f
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func countOf(records []*neo4j.Record, key string) int {
	if len(records) == 0 {
		return 0
	}
	v, _ := records[0].Get(key)
	n, _ := v.(int64)
	return int(n)
}

// MergeNode runs MERGE on the key then SET n += $props.
func (s *Neo4jStore) MergeNode(ctx context.Context, ref NodeRef, set Props) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf("MERGE %s SET n += $props", pattern("n", ref, "key"))
	params := map[string]any{"key": map[string]any(ref.Key), "props": map[string]any(set)}
	if set == nil {
		params["props"] = map[string]any{}
	}
	if _, err := s.run(ctx, neo4j.AccessModeWrite, query, params); err != nil {
		return fmt.Errorf("graph: merge node %s: %w", ref, err)
	}
	return nil
}

// MergeEdge matches both endpoints and MERGEs the relationship between them.
func (s *Neo4jStore) MergeEdge(ctx context.Context, from NodeRef, rel RelType, to NodeRef) error {
	if !rel.Valid() {
		return fmt.Errorf("graph: unknown relationship type %q", rel)
	}
	if err := from.Validate(); err != nil {
		return err
	}
	if err := to.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf("MATCH %s MATCH %s MERGE (a)-[:%s]->(b) RETURN count(*) AS c",
		pattern("a", from, "from"), pattern("b", to, "to"), rel)
	records, err := s.run(ctx, neo4j.AccessModeWrite, query, map[string]any{
		"from": map[string]any(from.Key),
		"to":   map[string]any(to.Key),
	})
	if err != nil {
		return fmt.Errorf("graph: merge edge %s-[%s]->%s: %w", from, rel, to, err)
	}
	if countOf(records, "c") == 0 {
		return fmt.Errorf("graph: merge edge %s-[%s]->%s: %w", from, rel, to, apperr.ErrNotFound)
	}
	return nil
}

// PruneEdges deletes rel edges whose target key tuple is not in $keep.
func (s *Neo4jStore) PruneEdges(ctx context.Context, from NodeRef, rel RelType, toLabel Label, keep []NodeRef) (int, error) {
	if !rel.Valid() || !toLabel.Valid() {
		return 0, fmt.Errorf("graph: prune %s->%s: invalid schema name", rel, toLabel)
	}
	if err := from.Validate(); err != nil {
		return 0, err
	}
	keepTuples := make([]any, len(keep))
	for i, k := range keep {
		keepTuples[i] = k.keyValues()
	}
	query := fmt.Sprintf("MATCH %s-[r:%s]->(b:%s) WHERE NOT %s IN $keep DELETE r RETURN count(r) AS c",
		pattern("a", from, "from"), rel, toLabel, keyTuple("b", toLabel))
	records, err := s.run(ctx, neo4j.AccessModeWrite, query, map[string]any{
		"from": map[string]any(from.Key),
		"keep": keepTuples,
	})
	if err != nil {
		return 0, fmt.Errorf("graph: prune %s-[%s]: %w", from, rel, err)
	}
	return countOf(records, "c"), nil
}

// DetachDelete removes the node and all its relationships.
func (s *Neo4jStore) DetachDelete(ctx context.Context, ref NodeRef) (bool, error) {
	if err := ref.Validate(); err != nil {
		return false, err
	}
	query := fmt.Sprintf("MATCH %s DETACH DELETE n RETURN count(n) AS c", pattern("n", ref, "key"))
	records, err := s.run(ctx, neo4j.AccessModeWrite, query, map[string]any{"key": map[string]any(ref.Key)})
	if err != nil {
		return false, fmt.Errorf("graph: delete %s: %w", ref, err)
	}
	return countOf(records, "c") > 0, nil
}

// GetNode returns the properties of the node matched by ref.
func (s *Neo4jStore) GetNode(ctx context.Context, ref NodeRef) (*Node, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("MATCH %s RETURN properties(n) AS props", pattern("n", ref, "key"))
	records, err := s.run(ctx, neo4j.AccessModeRead, query, map[string]any{"key": map[string]any(ref.Key)})
	if err != nil {
		return nil, fmt.Errorf("graph: get %s: %w", ref, err)
	}
	if len(records) == 0 {
		return nil, apperr.ErrNotFound
	}
	props, _ := records[0].Get("props")
	m, _ := props.(map[string]any)
	return &Node{Label: ref.Label, Props: Props(m)}, nil
}

// Outgoing returns targets of rel edges leaving from.
func (s *Neo4jStore) Outgoing(ctx context.Context, from NodeRef, rel RelType) ([]Node, error) {
	return s.neighbors(ctx, from, fmt.Sprintf(
		"OPTIONAL MATCH %s OPTIONAL MATCH (n)-[:%s]->(m) RETURN n IS NOT NULL AS found, labels(m)[0] AS label, properties(m) AS props",
		pattern("n", from, "key"), rel), rel)
}

// Incoming returns sources of rel edges entering to.
func (s *Neo4jStore) Incoming(ctx context.Context, to NodeRef, rel RelType) ([]Node, error) {
	return s.neighbors(ctx, to, fmt.Sprintf(
		"OPTIONAL MATCH %s OPTIONAL MATCH (n)<-[:%s]-(m) RETURN n IS NOT NULL AS found, labels(m)[0] AS label, properties(m) AS props",
		pattern("n", to, "key"), rel), rel)
}

func (s *Neo4jStore) neighbors(ctx context.Context, ref NodeRef, query string, rel RelType) ([]Node, error) {
	if !rel.Valid() {
		return nil, fmt.Errorf("graph: unknown relationship type %q", rel)
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	records, err := s.run(ctx, neo4j.AccessModeRead, query, map[string]any{"key": map[string]any(ref.Key)})
	if err != nil {
		return nil, fmt.Errorf("graph: neighbors of %s: %w", ref, err)
	}
	out := []Node{}
	for _, rec := range records {
		found, _ := rec.Get("found")
		if ok, _ := found.(bool); !ok {
			return nil, apperr.ErrNotFound
		}
		label, _ := rec.Get("label")
		props, _ := rec.Get("props")
		l, _ := label.(string)
		m, _ := props.(map[string]any)
		if l == "" {
			continue
		}
		out = append(out, Node{Label: Label(l), Props: Props(m)})
	}
	return out, nil
}

// CountNodes returns node counts grouped by label.
func (s *Neo4jStore) CountNodes(ctx context.Context) (map[Label]int, error) {
	records, err := s.run(ctx, neo4j.AccessModeRead,
		"MATCH (n) UNWIND labels(n) AS label RETURN label, count(*) AS c", nil)
	if err != nil {
		return nil, fmt.Errorf("graph: count nodes: %w", err)
	}
	out := make(map[Label]int)
	for _, rec := range records {
		label, _ := rec.Get("label")
		c, _ := rec.Get("c")
		l, _ := label.(string)
		n, _ := c.(int64)
		out[Label(l)] = int(n)
	}
	return out, nil
}

// CountEdges returns relationship counts grouped by type.
func (s *Neo4jStore) CountEdges(ctx context.Context) (map[RelType]int, error) {
	records, err := s.run(ctx, neo4j.AccessModeRead,
		"MATCH ()-[r]->() RETURN type(r) AS rel, count(*) AS c", nil)
	if err != nil {
		return nil, fmt.Errorf("graph: count edges: %w", err)
	}
	out := make(map[RelType]int)
	for _, rec := range records {
		rel, _ := rec.Get("rel")
		c, _ := rec.Get("c")
		r, _ := rel.(string)
		n, _ := c.(int64)
		out[RelType(r)] = int(n)
	}
	return out, nil
}

// DuplicateHashes groups Note paths by hash.
func (s *Neo4jStore) DuplicateHashes(ctx context.Context) ([]DuplicateGroup, error) {
	records, err := s.run(ctx, neo4j.AccessModeRead, `
		MATCH (n:Note) WHERE n.hash IS NOT NULL
		WITH n.hash AS hash, collect(n.path) AS paths
		WHERE size(paths) > 1
		RETURN hash, paths`, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: duplicates: %w", err)
	}
	byHash := make(map[string][]string, len(records))
	for _, rec := range records {
		h, _ := rec.Get("hash")
		p, _ := rec.Get("paths")
		hash, _ := h.(string)
		raw, _ := p.([]any)
		for _, item := range raw {
			if path, ok := item.(string); ok {
				byHash[hash] = append(byHash[hash], path)
			}
		}
	}
	return groupDuplicates(byHash), nil
}

// PathsUnder returns the paths of label nodes at or below dir.
func (s *Neo4jStore) PathsUnder(ctx context.Context, label Label, dir string) ([]string, error) {
	if !label.pathKeyed() {
		return nil, fmt.Errorf("graph: %s is not keyed by path", label)
	}
	query := fmt.Sprintf(`
		MATCH (n:%s)
		WHERE $dir = '' OR n.path = $dir OR n.path STARTS WITH $prefix
		RETURN n.path AS path ORDER BY path`, label)
	records, err := s.run(ctx, neo4j.AccessModeRead, query, map[string]any{"dir": dir, "prefix": dirPrefix(dir)})
	if err != nil {
		return nil, fmt.Errorf("graph: paths under %s: %w", dir, err)
	}
	paths := make([]string, 0, len(records))
	for _, rec := range records {
		v, _ := rec.Get("path")
		if p, ok := v.(string); ok {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// DeleteOrphans removes vocabulary nodes of label with no relationships.
func (s *Neo4jStore) DeleteOrphans(ctx context.Context, label Label) (int, error) {
	if !label.Vocabulary() {
		return 0, fmt.Errorf("graph: orphan cleanup not allowed for %s", label)
	}
	query := fmt.Sprintf("MATCH (n:%s) WHERE NOT EXISTS { (n)--() } DELETE n RETURN count(n) AS c", label)
	records, err := s.run(ctx, neo4j.AccessModeWrite, query, nil)
	if err != nil {
		return 0, fmt.Errorf("graph: delete orphans %s: %w", label, err)
	}
	return countOf(records, "c"), nil
}
