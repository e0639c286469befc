package models

// EntityType is the category assigned to a detected entity.
type EntityType string

const (
	EntityPerson       EntityType = "Person"
	EntityOrganization EntityType = "Organization"
	EntityConcept      EntityType = "Concept"
	EntityLocation     EntityType = "Location"
	EntityBook         EntityType = "Book"
	EntityProject      EntityType = "Project"
	EntityMeeting      EntityType = "Meeting"
	EntityTopic        EntityType = "Topic"
)

// Entity is a named thing mentioned in a note.
type Entity struct {
	Name        string     `json:"name"`
	Type        EntityType `json:"type"`
	Confidence  float64    `json:"confidence"`
	Description string     `json:"description,omitempty"`
}

// Relationship links two entities by name.
type Relationship struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// DetectionResult is what the entity detection collaborator returns for one note.
type DetectionResult struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

// Empty reports whether the result carries nothing to write.
func (r *DetectionResult) Empty() bool {
	return r == nil || (len(r.Entities) == 0 && len(r.Relationships) == 0)
}
