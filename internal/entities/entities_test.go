package entities

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/vaultgraph/internal/models"
)

func note(body string) *models.ParsedNote {
	return &models.ParsedNote{Path: "/v/a.md", Title: "A", Body: body}
}

func entityNames(res *models.DetectionResult) []string {
	var out []string
	for _, e := range res.Entities {
		out = append(out, e.Name)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestHeuristic(t *testing.T) {
	res, err := HeuristicDetector{}.Detect(context.Background(), note(
		"Ada Lovelace met Charles Babbage at Acme Corp. The NASA team used `graphs` and \"knowledge\".\n"))
	if err != nil {
		t.Fatal(err)
	}
	got := entityNames(res)
	for _, want := range []string{"Ada Lovelace", "Charles Babbage", "Acme Corp", "NASA", "graphs", "knowledge"} {
		if !contains(got, want) {
			t.Errorf("missing %q in %v", want, got)
		}
	}
	for _, e := range res.Entities {
		switch e.Name {
		case "Ada Lovelace":
			if e.Type != models.EntityPerson || e.Confidence != 0.6 {
				t.Errorf("person = %+v", e)
			}
		case "graphs":
			if e.Type != models.EntityConcept || e.Confidence != 0.5 {
				t.Errorf("concept = %+v", e)
			}
		}
	}
	if len(res.Relationships) != 0 {
		t.Errorf("heuristic produced relationships: %+v", res.Relationships)
	}
}

func TestHeuristic_LimitsPeople(t *testing.T) {
	body := "Ann Able, Bob Baker, Cid Cole, Dan Dove, Eve Earl, Fay Ford, Gus Gale"
	res, _ := HeuristicDetector{}.Detect(context.Background(), note(body))
	people := 0
	for _, e := range res.Entities {
		if e.Type == models.EntityPerson {
			people++
		}
	}
	if people != maxPeople {
		t.Errorf("people = %d, want %d", people, maxPeople)
	}
}

func TestParseResponse_FencedJSON(t *testing.T) {
	reply := "Here you go:\n```json\n" + `{
  "entities": [
    {"name": "Ada", "entity_type": "Person", "confidence": 0.9},
    {"name": "Engine", "entity_type": "Project"},
    {"name": "Mystery", "entity_type": "Spaceship"}
  ],
  "relationships": [
    {"source_entity": "Ada", "target_entity": "Engine", "relationship_type": "WORKS_FOR"},
    {"source_entity": "Ada", "target_entity": "Mystery", "relationship_type": "MENTIONS"}
  ]
}` + "\n```"

	res, err := parseResponse(reply)
	if err != nil {
		t.Fatal(err)
	}
	if got := entityNames(res); len(got) != 2 || got[0] != "Ada" || got[1] != "Engine" {
		t.Errorf("entities = %v", got)
	}
	if res.Entities[1].Confidence != 0.8 {
		t.Errorf("default confidence = %v, want 0.8", res.Entities[1].Confidence)
	}
	if len(res.Relationships) != 1 || res.Relationships[0].Confidence != 0.7 {
		t.Errorf("relationships = %+v", res.Relationships)
	}
}

func TestParseResponse_NoJSON(t *testing.T) {
	if _, err := parseResponse("I could not find anything."); !errors.Is(err, errNoJSON) {
		t.Errorf("err = %v, want errNoJSON", err)
	}
}

func fakeMessagesAPI(t *testing.T, reply string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("X-Api-Key"))
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "Note Title: A") {
			t.Errorf("prompt missing title: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         DefaultModel,
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content":       []map[string]any{{"type": "text", "text": reply}},
			"usage":         map[string]any{"input_tokens": 10, "output_tokens": 20},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropicDetector(t *testing.T) {
	srv := fakeMessagesAPI(t, `{"entities":[{"name":"Ada","entity_type":"Person","confidence":0.95,"description":"mathematician"}],"relationships":[]}`, http.StatusOK)
	d, err := NewAnthropic(AnthropicConfig{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	res, err := d.Detect(context.Background(), note("Ada wrote notes."))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(res.Entities) != 1 || res.Entities[0].Description != "mathematician" || res.Entities[0].Confidence != 0.95 {
		t.Errorf("entities = %+v", res.Entities)
	}
}

func TestAnthropicDetector_RequiresKey(t *testing.T) {
	if _, err := NewAnthropic(AnthropicConfig{}); err == nil {
		t.Error("expected error for missing api key")
	}
}

func TestFallback_UsesSecondaryOnError(t *testing.T) {
	srv := fakeMessagesAPI(t, "", http.StatusBadRequest)
	d, err := New(Config{
		Provider:  ProviderAnthropic,
		Anthropic: AnthropicConfig{APIKey: "test-key", BaseURL: srv.URL},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := d.Detect(context.Background(), note("Ada Lovelace wrote notes."))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !contains(entityNames(res), "Ada Lovelace") {
		t.Errorf("fallback entities = %v", entityNames(res))
	}
}

type countingDetector struct{ calls int }

func (c *countingDetector) Detect(context.Context, *models.ParsedNote) (*models.DetectionResult, error) {
	c.calls++
	return &models.DetectionResult{}, nil
}

func TestThrottled_WaitsForLimiter(t *testing.T) {
	inner := &countingDetector{}
	d := Throttled{Detector: inner, Limiter: rate.NewLimiter(rate.Every(time.Hour), 1)}

	if _, err := d.Detect(context.Background(), note("x")); err != nil {
		t.Fatalf("first call: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := d.Detect(ctx, note("x")); err == nil {
		t.Fatal("second call was not throttled")
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	if _, err := New(Config{Provider: "openai"}, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}
