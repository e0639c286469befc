// Package parser turns raw note bytes into a normalized models.ParsedNote:
// frontmatter, title, aliases, tags, wikilinks, external links, headers and content hash.
package parser

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v3"

	"github.com/starford/vaultgraph/internal/apperr"
	"github.com/starford/vaultgraph/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[([^\]|]+)(?:\|([^\]]+))?\]\]`)
	tagRe      = regexp.MustCompile(`#([a-zA-Z0-9_-]+)`)
	extLinkRe  = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	headerRe   = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

	utf8BOM = []byte{0xEF, 0xBB, 0xBF}
)

const frontmatterDelim = "---"

// Parse normalizes the raw bytes of the note at path. It never fails on malformed
// frontmatter or undecodable bytes; the only error is a skip for empty content.
func Parse(path string, raw []byte) (*models.ParsedNote, error) {
	text, enc := decode(raw)
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Skip(path, apperr.SkipEmpty)
	}

	fmRaw, meta, body := splitFrontmatter(text)

	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	return &models.ParsedNote{
		Path:          path,
		Name:          stem,
		Title:         deriveTitle(meta, stem),
		Body:          body,
		Frontmatter:   fmRaw,
		Metadata:      meta,
		Aliases:       stringList(meta["aliases"]),
		Tags:          extractTags(body, meta),
		InternalLinks: extractLinks(body),
		ExternalLinks: extractExternalLinks(body),
		Headers:       extractHeaders(body),
		Hash:          Hash(raw),
		Encoding:      enc,
	}, nil
}

// Hash returns the hex sha256 digest of raw bytes as read from disk.
func Hash(raw []byte) string {
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:])
}

// decode converts raw bytes to valid UTF-8 and reports the encoding name used.
// Valid UTF-8 is taken as is; anything else goes through BOM sniffing with a
// windows-1252 fallback, and leftover invalid sequences become U+FFFD.
func decode(raw []byte) (string, string) {
	if utf8.Valid(raw) {
		return string(bytes.TrimPrefix(raw, utf8BOM)), "utf-8"
	}

	enc, name, _ := charset.DetermineEncoding(raw, "")
	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "\uFFFD"), "utf-8"
	}
	text := strings.ToValidUTF8(string(out), "\uFFFD")
	return strings.TrimPrefix(text, "\uFEFF"), name
}

// splitFrontmatter separates a leading YAML block delimited by "---" lines from the body.
// A missing closing delimiter, invalid YAML, or a non-mapping document all mean "no metadata",
// with the full text returned as body.
func splitFrontmatter(text string) (string, map[string]any, string) {
	lines := strings.SplitAfter(text, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], " \t\r\n") != frontmatterDelim {
		return "", nil, text
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t\r\n") != frontmatterDelim {
			continue
		}
		block := strings.Join(lines[1:i], "")
		body := strings.TrimLeft(strings.Join(lines[i+1:], ""), "\r\n")

		var meta map[string]any
		if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
			return "", nil, text
		}
		return block, meta, body
	}
	return "", nil, text
}

func deriveTitle(meta map[string]any, stem string) string {
	if s, ok := meta["title"].(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return stem
}

// stringList accepts a YAML scalar string or a sequence of strings.
func stringList(v any) []string {
	var out []string
	switch val := v.(type) {
	case string:
		if s := strings.TrimSpace(val); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// extractTags unions frontmatter tags with inline #tags, deduplicated in first-seen order.
func extractTags(body string, meta map[string]any) []string {
	seen := make(map[string]struct{})
	out := []string{}
	add := func(t string) {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	for _, t := range stringList(meta["tags"]) {
		add(t)
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// extractLinks returns deduplicated wikilink targets; display aliases are dropped.
func extractLinks(body string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, m := range wikilinkRe.FindAllStringSubmatch(body, -1) {
		target := strings.TrimSpace(m[1])
		if target == "" {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

func extractExternalLinks(body string) []models.ExternalLink {
	seen := make(map[models.ExternalLink]struct{})
	out := []models.ExternalLink{}
	for _, m := range extLinkRe.FindAllStringSubmatch(body, -1) {
		link := models.ExternalLink{Text: strings.TrimSpace(m[1]), URL: strings.TrimSpace(m[2])}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		out = append(out, link)
	}
	return out
}

// extractHeaders returns every ATX heading with its 1-based line number in body.
func extractHeaders(body string) []models.Header {
	out := []models.Header{}
	for i, line := range strings.Split(body, "\n") {
		m := headerRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		out = append(out, models.Header{
			Title: strings.TrimSpace(m[2]),
			Level: len(m[1]),
			Line:  i + 1,
		})
	}
	return out
}
