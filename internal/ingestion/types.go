// Package ingestion defines the request/response types and Kafka event schemas
// used by the document ingestion pipeline.
package ingestion

import "time"

// IngestRequest is the JSON body accepted by the ingestion HTTP endpoint.
// Abstract and Body may not both be empty.
type IngestRequest struct {
	ExternalID string `json:"external_id"`
	Title      string `json:"title"`
	Abstract   string `json:"abstract"`
	Body       string `json:"body"`
	Source     string `json:"source"`
}

// IngestResponse is returned to the caller after a document is accepted.
type IngestResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// DocumentEvent is the Kafka message payload produced after a document is
// persisted and ready for annotation.
type DocumentEvent struct {
	DocumentID string    `json:"document_id"`
	ExternalID string    `json:"external_id,omitempty"`
	Title      string    `json:"title"`
	Abstract   string    `json:"abstract,omitempty"`
	Body       string    `json:"body,omitempty"`
	Source     string    `json:"source,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`
}
