package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/document"
)

type EventType string

const (
	EventAnnotate          EventType = "annotate"
	EventCacheHit          EventType = "cache_hit"
	EventCacheMiss         EventType = "cache_miss"
	EventZeroMatch         EventType = "zero_match"
	EventDocumentAnnotated EventType = "document_annotated"
)

// Concept is a per-event tally of one recognized concept. Events carry
// aggregated concept counts rather than full entity lists to keep the
// analytics topic small.
type Concept struct {
	Terminology   string `json:"terminology,omitempty"`
	Type          string `json:"type"`
	PreferredForm string `json:"preferred_form"`
	NativeID      string `json:"native_id"`
	Count         int64  `json:"count"`
}

// AnnotateEvent describes one synchronous annotation request served by
// the recognizer. Type is EventCacheHit or EventCacheMiss when caching
// is active, EventAnnotate otherwise.
type AnnotateEvent struct {
	Type          EventType `json:"type"`
	TextBytes     int       `json:"text_bytes"`
	Format        string    `json:"format"`
	Terminologies []string  `json:"terminologies"`
	Entities      int       `json:"entities"`
	Concepts      []Concept `json:"concepts,omitempty"`
	LatencyMs     int64     `json:"latency_ms"`
	CacheHit      bool      `json:"cache_hit"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id"`
}

// DocumentAnnotatedEvent describes one document annotated by the
// background worker pipeline.
type DocumentAnnotatedEvent struct {
	Type       EventType `json:"type"`
	DocumentID string    `json:"document_id"`
	TextBytes  int       `json:"text_bytes"`
	Entities   int       `json:"entities"`
	Concepts   []Concept `json:"concepts,omitempty"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// ConceptsFromEntities folds a recognized entity stream into per-concept
// tallies, ordered by first appearance.
func ConceptsFromEntities(entities []document.Entity) []Concept {
	type key struct{ terminology, typ, preferred, nativeID string }
	index := make(map[key]int, len(entities))
	concepts := make([]Concept, 0, len(entities))
	for i := range entities {
		e := &entities[i]
		k := key{e.Terminology, e.Type(), e.PreferredForm(), e.NativeID()}
		if j, ok := index[k]; ok {
			concepts[j].Count++
			continue
		}
		index[k] = len(concepts)
		concepts = append(concepts, Concept{
			Terminology:   k.terminology,
			Type:          k.typ,
			PreferredForm: k.preferred,
			NativeID:      k.nativeID,
			Count:         1,
		})
	}
	return concepts
}
