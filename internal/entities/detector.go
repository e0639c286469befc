// Package entities detects named entities and their relationships in notes.
// Detection is an optional enrichment: callers treat any error as "no entities".
package entities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/starford/vaultgraph/internal/models"
)

// Detector extracts entities and relationships from a parsed note.
type Detector interface {
	Detect(ctx context.Context, note *models.ParsedNote) (*models.DetectionResult, error)
}

var entityTypes = map[models.EntityType]struct{}{
	models.EntityPerson: {}, models.EntityOrganization: {}, models.EntityConcept: {},
	models.EntityLocation: {}, models.EntityBook: {}, models.EntityProject: {},
	models.EntityMeeting: {}, models.EntityTopic: {},
}

// Fallback runs Primary and, when it fails, Secondary.
type Fallback struct {
	Primary   Detector
	Secondary Detector
	Logger    *slog.Logger
}

func (f Fallback) Detect(ctx context.Context, note *models.ParsedNote) (*models.DetectionResult, error) {
	res, err := f.Primary.Detect(ctx, note)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	if f.Logger != nil {
		f.Logger.Debug("entities: primary detector failed, using fallback",
			slog.String("path", note.Path),
			slog.String("error", err.Error()))
	}
	return f.Secondary.Detect(ctx, note)
}

// Throttled waits on a shared limiter before every detection call.
type Throttled struct {
	Detector Detector
	Limiter  *rate.Limiter
}

// NewThrottled limits d to perSecond calls with the given burst.
func NewThrottled(d Detector, perSecond float64, burst int) Throttled {
	if burst < 1 {
		burst = 1
	}
	return Throttled{Detector: d, Limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (t Throttled) Detect(ctx context.Context, note *models.ParsedNote) (*models.DetectionResult, error) {
	if err := t.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("entities: rate limit: %w", err)
	}
	return t.Detector.Detect(ctx, note)
}

type wireEntity struct {
	Name        string   `json:"name"`
	Type        string   `json:"entity_type"`
	Confidence  *float64 `json:"confidence"`
	Description string   `json:"description"`
}

type wireRelationship struct {
	Source     string   `json:"source_entity"`
	Target     string   `json:"target_entity"`
	Type       string   `json:"relationship_type"`
	Confidence *float64 `json:"confidence"`
}

type wireResult struct {
	Entities      []wireEntity       `json:"entities"`
	Relationships []wireRelationship `json:"relationships"`
}

var errNoJSON = errors.New("entities: no JSON object in response")

// parseResponse decodes the outermost JSON object of a model reply, which may
// be wrapped in prose or a fenced code block. Entities with unknown types and
// relationships between unknown entities are dropped.
func parseResponse(text string) (*models.DetectionResult, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errNoJSON
	}
	var wire wireResult
	if err := json.Unmarshal([]byte(text[start:end+1]), &wire); err != nil {
		return nil, fmt.Errorf("entities: decode response: %w", err)
	}

	res := &models.DetectionResult{}
	known := make(map[string]struct{})
	for _, e := range wire.Entities {
		name := strings.TrimSpace(e.Name)
		typ := models.EntityType(e.Type)
		if _, ok := entityTypes[typ]; !ok || name == "" {
			continue
		}
		known[name] = struct{}{}
		res.Entities = append(res.Entities, models.Entity{
			Name:        name,
			Type:        typ,
			Confidence:  orDefault(e.Confidence, 0.8),
			Description: e.Description,
		})
	}
	for _, r := range wire.Relationships {
		src, dst := strings.TrimSpace(r.Source), strings.TrimSpace(r.Target)
		_, okSrc := known[src]
		_, okDst := known[dst]
		if !okSrc || !okDst {
			continue
		}
		res.Relationships = append(res.Relationships, models.Relationship{
			Source:     src,
			Target:     dst,
			Type:       r.Type,
			Confidence: orDefault(r.Confidence, 0.7),
		})
	}
	return res, nil
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
