// Package validator provides input validation for ingestion requests. It
// enforces title and text length constraints and returns per-field error
// details.
package validator

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/internal/ingestion"
)

const (
	maxTitleLength    = 1024
	maxAbstractLength = 65536
	maxBodyLength     = 1048576
	maxExternalID     = 255
	maxSourceLength   = 128
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest checks that the title and text of the request meet
// the required length constraints and returns a ValidationError if not.
// A document needs a title and at least one of abstract or body.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		errs["title"] = "title is required"
	} else if len(title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	abstract := strings.TrimSpace(req.Abstract)
	body := strings.TrimSpace(req.Body)
	if abstract == "" && body == "" {
		errs["body"] = "abstract or body is required"
	}
	if len(abstract) > maxAbstractLength {
		errs["abstract"] = fmt.Sprintf("abstract must be at most %d characters", maxAbstractLength)
	}
	if len(body) > maxBodyLength {
		errs["body"] = fmt.Sprintf("body must be at most %d characters", maxBodyLength)
	}
	if len(req.ExternalID) > maxExternalID {
		errs["external_id"] = fmt.Sprintf("external id must be at most %d characters", maxExternalID)
	}
	if len(req.Source) > maxSourceLength {
		errs["source"] = fmt.Sprintf("source must be at most %d characters", maxSourceLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
