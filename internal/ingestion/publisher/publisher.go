// Package publisher persists documents to PostgreSQL and publishes document
// events to Kafka for downstream annotation. Document IDs derive from the
// content hash, so resubmitting identical content is idempotent.
package publisher

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/resilience"
)

// docIDLength is the number of hex digits of the content hash used as the
// document ID.
const docIDLength = 16

// Publisher coordinates document persistence and Kafka event production.
type Publisher struct {
	db       *postgres.Client
	producer *kafka.Producer
	logger   *slog.Logger
}

// New creates a Publisher with the given database and Kafka producer.
func New(db *postgres.Client, producer *kafka.Producer) *Publisher {
	return &Publisher{
		db:       db,
		producer: producer,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Ingest persists the document in PostgreSQL and publishes a DocumentEvent
// to Kafka. Content that was already submitted resolves to the same
// document ID and is returned without re-insertion or re-publication.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	docID, contentHash := documentID(req)

	existing, err := p.findByID(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("checking for existing document: %w", err)
	}
	if existing != nil {
		p.logger.Info("duplicate submission detected",
			"doc_id", docID,
			"status", existing.Status,
		)
		return existing, nil
	}

	err = p.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (id, external_id, title, abstract, body, source, content_hash, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'PENDING')
		ON CONFLICT (id) DO NOTHING`,
			docID, nullableString(req.ExternalID), req.Title, req.Abstract, req.Body,
			nullableString(req.Source), contentHash)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}

	event := kafka.Event{
		Key: docID,
		Value: ingestion.DocumentEvent{
			DocumentID: docID,
			ExternalID: req.ExternalID,
			Title:      req.Title,
			Abstract:   req.Abstract,
			Body:       req.Body,
			Source:     req.Source,
			IngestedAt: time.Now().UTC(),
		},
	}

	err = resilience.Retry(ctx, "kafka-publish", resilience.RetryConfig{}, func() error {
		return p.producer.Publish(ctx, event)
	})
	if err != nil {
		p.logger.Error("failed to publish to kafka, document stuck in PENDING",
			"doc_id", docID,
			"error", err,
		)
	}
	return &ingestion.IngestResponse{
		DocumentID: docID,
		Status:     "PENDING",
	}, nil
}

// findByID checks if a document with the given ID already exists and
// returns its status.
func (p *Publisher) findByID(ctx context.Context, id string) (*ingestion.IngestResponse, error) {
	var resp ingestion.IngestResponse
	err := p.db.DB.QueryRowContext(ctx,
		`SELECT id, status FROM documents WHERE id=$1`, id).Scan(&resp.DocumentID, &resp.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}
	return &resp, nil
}

// documentID derives the document ID from a hash over all content fields.
// The full hash is kept alongside for integrity checks.
func documentID(req *ingestion.IngestRequest) (id, contentHash string) {
	h := sha256.New()
	for _, part := range []string{req.ExternalID, req.Title, req.Abstract, req.Body} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	contentHash = fmt.Sprintf("%x", h.Sum(nil))
	return contentHash[:docIDLength], contentHash
}

// nullableString converts a Go string to a sql.NullString, treating the
// empty string as NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
