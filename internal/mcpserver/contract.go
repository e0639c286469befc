package mcpserver

// GraphSchema describes the labels, keys and relationship types that the
// query tools return, so MCP clients can interpret their output.
const GraphSchema = `# vaultgraph Graph Schema

The vault is mirrored into a property graph. Every node is identified by
its label and natural key; merging the same key twice updates the node.

## Nodes

| Label        | Key            | Other properties |
|--------------|----------------|------------------|
| Folder       | path           | name |
| Note         | path           | name, title, content, hash, size, created, modified, accessed, is_readonly, aliases, frontmatter |
| Tag          | name           | |
| InternalLink | name           | |
| ExternalLink | url, text      | |
| Header       | title, level   | |
| Entity       | name           | entity_type, confidence, description |

Paths returned by the tools are relative to the vault root and use forward
slashes. Timestamps are seconds since the Unix epoch.

## Relationships

- ` + "`Folder -CONTAINS-> Folder|Note`" + ` mirrors the directory tree.
- ` + "`Note -TAGGED_WITH-> Tag`" + ` for frontmatter tags and inline #tags.
- ` + "`Note -LINKS_TO-> InternalLink`" + ` for [[wikilinks]]. The link name is the
  target as written, so a note is reached through its file stem or an alias.
- ` + "`Note -LINKS_TO_EXTERNAL-> ExternalLink`" + ` for [text](url) links.
- ` + "`Note -HAS_HEADER-> Header`" + ` for Markdown headings.
- ` + "`Note -CONTAINS_ENTITY-> Entity`" + ` for detected people, organizations and concepts.
- ` + "`Entity -<TYPE>-> Entity`" + ` where TYPE is one of MENTIONS, RELATED_TO,
  WORKS_FOR, AUTHOR_OF, PART_OF, SIMILAR_TO, COLLABORATES_WITH, LOCATED_IN,
  DISCUSSES, ATTENDS.

## Sharing

Tag, InternalLink, ExternalLink, Header and Entity nodes are shared between
notes. Two notes with the same heading point at the same Header node.
Duplicate notes are detected by equal content hashes.
`
