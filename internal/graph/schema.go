// Package graph holds the property-graph schema contract (labels, relationship types,
// property names) and the Store primitives every backend implements.
package graph

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// Label is a node label. Only the constants below are valid; labels are
// interpolated into query text, so they must never come from user content.
type Label string

const (
	LabelFolder       Label = "Folder"
	LabelNote         Label = "Note"
	LabelTag          Label = "Tag"
	LabelInternalLink Label = "InternalLink"
	LabelExternalLink Label = "ExternalLink"
	LabelHeader       Label = "Header"
	LabelEntity       Label = "Entity"
)

// keyFields lists the natural-key properties per label, in a fixed order.
var keyFields = map[Label][]string{
	LabelFolder:       {"path"},
	LabelNote:         {"path"},
	LabelTag:          {"name"},
	LabelInternalLink: {"name"},
	LabelExternalLink: {"url", "text"},
	LabelHeader:       {"title", "level"},
	LabelEntity:       {"name"},
}

// Labels returns every schema label.
func Labels() []Label {
	return []Label{LabelFolder, LabelNote, LabelTag, LabelInternalLink, LabelExternalLink, LabelHeader, LabelEntity}
}

// VocabularyLabels are the shared node kinds that may be left dangling.
func VocabularyLabels() []Label {
	return []Label{LabelTag, LabelInternalLink, LabelExternalLink, LabelHeader, LabelEntity}
}

// Valid reports whether l is a schema label.
func (l Label) Valid() bool {
	_, ok := keyFields[l]
	return ok
}

// KeyFields returns the natural-key property names of l.
func (l Label) KeyFields() []string {
	return keyFields[l]
}

// Vocabulary reports whether l is a shared vocabulary label.
func (l Label) Vocabulary() bool {
	for _, v := range VocabularyLabels() {
		if v == l {
			return true
		}
	}
	return false
}

func (l Label) pathKeyed() bool {
	return l == LabelFolder || l == LabelNote
}

// dirPrefix is dir with a trailing separator, the prefix of every path below it.
func dirPrefix(dir string) string {
	sep := string(filepath.Separator)
	return strings.TrimSuffix(dir, sep) + sep
}

// under reports whether path is dir or lies below it. Every path is under "".
func under(path, dir string) bool {
	return dir == "" || path == dir || strings.HasPrefix(path, dirPrefix(dir))
}

// RelType is a relationship type. Like labels, only whitelisted values reach query text.
type RelType string

const (
	RelContains        RelType = "CONTAINS"
	RelTaggedWith      RelType = "TAGGED_WITH"
	RelLinksTo         RelType = "LINKS_TO"
	RelLinksToExternal RelType = "LINKS_TO_EXTERNAL"
	RelHasHeader       RelType = "HAS_HEADER"
	RelContainsEntity  RelType = "CONTAINS_ENTITY"

	RelMentions         RelType = "MENTIONS"
	RelRelatedTo        RelType = "RELATED_TO"
	RelWorksFor         RelType = "WORKS_FOR"
	RelAuthorOf         RelType = "AUTHOR_OF"
	RelPartOf           RelType = "PART_OF"
	RelSimilarTo        RelType = "SIMILAR_TO"
	RelCollaboratesWith RelType = "COLLABORATES_WITH"
	RelLocatedIn        RelType = "LOCATED_IN"
	RelDiscusses        RelType = "DISCUSSES"
	RelAttends          RelType = "ATTENDS"
)

var entityRelTypes = map[RelType]struct{}{
	RelMentions: {}, RelRelatedTo: {}, RelWorksFor: {}, RelAuthorOf: {}, RelPartOf: {},
	RelSimilarTo: {}, RelCollaboratesWith: {}, RelLocatedIn: {}, RelDiscusses: {}, RelAttends: {},
}

// Valid reports whether r is a schema relationship type.
func (r RelType) Valid() bool {
	switch r {
	case RelContains, RelTaggedWith, RelLinksTo, RelLinksToExternal, RelHasHeader, RelContainsEntity:
		return true
	}
	_, ok := entityRelTypes[r]
	return ok
}

// EntityRelType maps free-form relationship names from the detector onto the
// whitelist. Unknown names become RELATED_TO.
func EntityRelType(name string) RelType {
	r := RelType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), " ", "_")))
	if _, ok := entityRelTypes[r]; ok {
		return r
	}
	return RelRelatedTo
}

// Props is a bag of node properties.
type Props map[string]any

// NodeRef identifies a node by label and natural key.
type NodeRef struct {
	Label Label
	Key   Props
}

func FolderRef(path string) NodeRef { return NodeRef{Label: LabelFolder, Key: Props{"path": path}} }
func NoteRef(path string) NodeRef   { return NodeRef{Label: LabelNote, Key: Props{"path": path}} }
func TagRef(name string) NodeRef    { return NodeRef{Label: LabelTag, Key: Props{"name": name}} }
func EntityRef(name string) NodeRef { return NodeRef{Label: LabelEntity, Key: Props{"name": name}} }

func InternalLinkRef(name string) NodeRef {
	return NodeRef{Label: LabelInternalLink, Key: Props{"name": name}}
}

func ExternalLinkRef(url, text string) NodeRef {
	return NodeRef{Label: LabelExternalLink, Key: Props{"url": url, "text": text}}
}

func HeaderRef(title string, level int) NodeRef {
	return NodeRef{Label: LabelHeader, Key: Props{"title": title, "level": level}}
}

// Validate checks the label and that the key carries exactly the label's key fields.
func (r NodeRef) Validate() error {
	fields := r.Label.KeyFields()
	if fields == nil {
		return fmt.Errorf("graph: unknown label %q", r.Label)
	}
	if len(r.Key) != len(fields) {
		return fmt.Errorf("graph: %s key must have fields %v", r.Label, fields)
	}
	for _, f := range fields {
		if _, ok := r.Key[f]; !ok {
			return fmt.Errorf("graph: %s key missing %q", r.Label, f)
		}
	}
	return nil
}

// keyValues returns the key values ordered by KeyFields.
func (r NodeRef) keyValues() []any {
	fields := r.Label.KeyFields()
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = r.Key[f]
	}
	return out
}

// keyString is the canonical encoding of the key, e.g. ["Intro",1].
func (r NodeRef) keyString() (string, error) {
	data, err := json.Marshal(r.keyValues())
	if err != nil {
		return "", fmt.Errorf("graph: encode key: %w", err)
	}
	return string(data), nil
}

func (r NodeRef) String() string {
	k, _ := r.keyString()
	return string(r.Label) + k
}

// Node is a stored node with all its properties.
type Node struct {
	Label Label `json:"label"`
	Props Props `json:"properties"`
}

// Str returns the string property key, or "".
func (n Node) Str(key string) string {
	s, _ := n.Props[key].(string)
	return s
}

// Int returns the numeric property key as an int. Backends decode numbers
// differently (float64 from JSON, int64 from Bolt), so all are accepted.
func (n Node) Int(key string) int {
	switch v := n.Props[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// DuplicateGroup is a set of notes sharing one content hash.
type DuplicateGroup struct {
	Hash  string   `json:"hash"`
	Paths []string `json:"paths"`
}
