// Package store persists recognized annotations in PostgreSQL. The
// annotator owns the write path; the recognizer reads through the same
// store when serving stored annotations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/rpc"
)

// storeTimeout bounds every store round trip so a stalled database
// connection cannot wedge an annotator worker or a recognizer request.
const storeTimeout = 10 * time.Second

// Store reads and writes annotation rows.
//
// It requires an `annotations` table:
//
//	CREATE TABLE annotations (
//	    id             BIGSERIAL PRIMARY KEY,
//	    document_id    TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
//	    entity_id      INT NOT NULL,
//	    start_pos      INT NOT NULL,
//	    end_pos        INT NOT NULL,
//	    surface        TEXT NOT NULL,
//	    type           TEXT NOT NULL,
//	    preferred_form TEXT NOT NULL,
//	    resource       TEXT NOT NULL,
//	    native_id      TEXT NOT NULL,
//	    cui            TEXT NOT NULL DEFAULT '',
//	    extra          TEXT[],
//	    terminology    TEXT NOT NULL DEFAULT '',
//	    zone           TEXT NOT NULL DEFAULT '',
//	    sentence_id    TEXT NOT NULL DEFAULT '',
//	    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//	CREATE INDEX annotations_document_idx ON annotations (document_id, entity_id);
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "annotation-store"),
	}
}

// Annotation is one stored entity occurrence. Zone names the article
// section the match came from; SentenceID is "<section>.<sentence>".
type Annotation struct {
	DocumentID    string    `json:"document_id"`
	EntityID      int       `json:"entity_id"`
	Start         int       `json:"start"`
	End           int       `json:"end"`
	Surface       string    `json:"surface"`
	Type          string    `json:"type"`
	PreferredForm string    `json:"preferred_form"`
	Resource      string    `json:"resource"`
	NativeID      string    `json:"native_id"`
	CUI           string    `json:"cui,omitempty"`
	Extra         []string  `json:"extra,omitempty"`
	Terminology   string    `json:"terminology,omitempty"`
	Zone          string    `json:"zone,omitempty"`
	SentenceID    string    `json:"sentence_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// FromArticle flattens an annotated article into storable rows.
func FromArticle(docID string, article *document.Article) []Annotation {
	var rows []Annotation
	for _, sec := range article.Sections {
		for _, sent := range sec.Sentences {
			for i := range sent.Entities {
				e := &sent.Entities[i]
				rows = append(rows, Annotation{
					DocumentID:    docID,
					EntityID:      e.ID,
					Start:         e.Start,
					End:           e.End,
					Surface:       e.Text,
					Type:          e.Type(),
					PreferredForm: e.PreferredForm(),
					Resource:      e.Resource(),
					NativeID:      e.NativeID(),
					CUI:           e.CUI(),
					Extra:         e.Extra(),
					Terminology:   e.Terminology,
					Zone:          sec.Type,
					SentenceID:    fmt.Sprintf("%d.%d", sec.ID, sent.ID),
				})
			}
		}
	}
	return rows
}

// Replace atomically swaps the stored annotations for a document:
// existing rows are deleted and the new set is bulk-loaded with COPY
// in the same transaction. Re-annotating a document is therefore
// idempotent.
func (s *Store) Replace(ctx context.Context, docID string, annotations []Annotation) error {
	start := time.Now()
	err := resilience.WithTimeout(ctx, storeTimeout, "annotations.replace", func(ctx context.Context) error {
		return s.replace(ctx, docID, annotations)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("annotations stored",
		"doc_id", docID,
		"rows", len(annotations),
		"elapsed", time.Since(start),
	)
	return nil
}

func (s *Store) replace(ctx context.Context, docID string, annotations []Annotation) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM annotations WHERE document_id = $1`, docID,
		); err != nil {
			return fmt.Errorf("deleting previous annotations: %w", err)
		}

		if len(annotations) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("annotations",
			"document_id", "entity_id", "start_pos", "end_pos", "surface",
			"type", "preferred_form", "resource", "native_id", "cui",
			"extra", "terminology", "zone", "sentence_id",
		))
		if err != nil {
			return fmt.Errorf("preparing copy: %w", err)
		}
		for i := range annotations {
			a := &annotations[i]
			if _, err := stmt.ExecContext(ctx,
				a.DocumentID, a.EntityID, a.Start, a.End, a.Surface,
				a.Type, a.PreferredForm, a.Resource, a.NativeID, a.CUI,
				pq.Array(a.Extra), a.Terminology, a.Zone, a.SentenceID,
			); err != nil {
				stmt.Close()
				return fmt.Errorf("buffering annotation row: %w", err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flushing copy: %w", err)
		}
		return stmt.Close()
	})
}

// ByDocument returns the stored annotations for a document ordered by
// position. The document row is checked first so a missing document
// and an unannotated one are distinguishable.
func (s *Store) ByDocument(ctx context.Context, docID string) ([]Annotation, error) {
	if _, err := s.Document(ctx, docID); err != nil {
		return nil, err
	}

	var annotations []Annotation
	err := resilience.WithTimeout(ctx, storeTimeout, "annotations.by_document", func(ctx context.Context) error {
		var err error
		annotations, err = s.byDocument(ctx, docID)
		return err
	})
	return annotations, err
}

func (s *Store) byDocument(ctx context.Context, docID string) ([]Annotation, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT document_id, entity_id, start_pos, end_pos, surface,
		        type, preferred_form, resource, native_id, cui,
		        extra, terminology, zone, sentence_id, created_at
		 FROM annotations
		 WHERE document_id = $1
		 ORDER BY start_pos, end_pos, entity_id`,
		docID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying annotations: %w", err)
	}
	defer rows.Close()

	var annotations []Annotation
	for rows.Next() {
		var a Annotation
		if err := rows.Scan(
			&a.DocumentID, &a.EntityID, &a.Start, &a.End, &a.Surface,
			&a.Type, &a.PreferredForm, &a.Resource, &a.NativeID, &a.CUI,
			pq.Array(&a.Extra), &a.Terminology, &a.Zone, &a.SentenceID, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning annotation row: %w", err)
		}
		annotations = append(annotations, a)
	}
	return annotations, rows.Err()
}

// Document fetches a document row by ID.
func (s *Store) Document(ctx context.Context, id string) (*rpc.Document, error) {
	var doc *rpc.Document
	err := resilience.WithTimeout(ctx, storeTimeout, "documents.get", func(ctx context.Context) error {
		var err error
		doc, err = s.document(ctx, id)
		return err
	})
	return doc, err
}

func (s *Store) document(ctx context.Context, id string) (*rpc.Document, error) {
	var (
		doc         rpc.Document
		abstract    sql.NullString
		body        sql.NullString
		source      sql.NullString
		createdAt   time.Time
		annotatedAt sql.NullTime
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, external_id, title, abstract, body, source, content_hash,
		        status, created_at, annotated_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(
		&doc.ID, &doc.ExternalID, &doc.Title, &abstract, &body, &source,
		&doc.ContentHash, &doc.Status, &createdAt, &annotatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.ErrDocumentNotFound, 404, "document not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}
	doc.Abstract = abstract.String
	doc.Body = body.String
	doc.Source = source.String
	doc.CreatedAt = createdAt.Unix()
	if annotatedAt.Valid {
		doc.AnnotatedAt = annotatedAt.Time.Unix()
	}
	return &doc, nil
}

// MarkStatus updates a document's pipeline status. ANNOTATED also
// stamps annotated_at.
func (s *Store) MarkStatus(ctx context.Context, docID, status string) error {
	return resilience.WithTimeout(ctx, storeTimeout, "documents.mark_status", func(ctx context.Context) error {
		var err error
		if status == "ANNOTATED" {
			_, err = s.db.DB.ExecContext(ctx,
				`UPDATE documents SET status = $1, annotated_at = NOW() WHERE id = $2`,
				status, docID,
			)
		} else {
			_, err = s.db.DB.ExecContext(ctx,
				`UPDATE documents SET status = $1 WHERE id = $2`,
				status, docID,
			)
		}
		if err != nil {
			return fmt.Errorf("updating document status: %w", err)
		}
		return nil
	})
}
