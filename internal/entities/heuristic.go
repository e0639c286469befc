package entities

import (
	"context"
	"regexp"

	"github.com/starford/vaultgraph/internal/models"
)

var (
	personRe   = regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)
	orgSuffix  = regexp.MustCompile(`\b[A-Z][a-z]+ (?:Inc|Corp|LLC|Ltd|Company|Organization|Foundation)\b`)
	acronymRe  = regexp.MustCompile(`\b[A-Z][A-Z]+\b`)
	conceptRes = []*regexp.Regexp{
		regexp.MustCompile(`"([^"]+)"`),
		regexp.MustCompile(`\*([^*]+)\*`),
		regexp.MustCompile("`([^`]+)`"),
	}
)

const (
	maxPeople   = 5
	maxOrgs     = 3
	maxConcepts = 5
)

// HeuristicDetector finds entities with surface patterns: capitalized name
// pairs, company suffixes and acronyms, and quoted, emphasized or code spans.
// It never finds relationships and never fails.
type HeuristicDetector struct{}

func (HeuristicDetector) Detect(_ context.Context, note *models.ParsedNote) (*models.DetectionResult, error) {
	text := note.Body
	res := &models.DetectionResult{}
	seen := make(map[string]struct{})
	add := func(name string, typ models.EntityType, confidence float64) {
		if _, dup := seen[name]; dup || name == "" {
			return
		}
		seen[name] = struct{}{}
		res.Entities = append(res.Entities, models.Entity{Name: name, Type: typ, Confidence: confidence})
	}

	for _, m := range first(personRe.FindAllString(text, -1), maxPeople) {
		add(m, models.EntityPerson, 0.6)
	}
	for _, re := range []*regexp.Regexp{orgSuffix, acronymRe} {
		for _, m := range first(re.FindAllString(text, -1), maxOrgs) {
			add(m, models.EntityOrganization, 0.6)
		}
	}
	for _, re := range conceptRes {
		var names []string
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			names = append(names, m[1])
		}
		for _, m := range first(names, maxConcepts) {
			add(m, models.EntityConcept, 0.5)
		}
	}
	return res, nil
}

func first(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
