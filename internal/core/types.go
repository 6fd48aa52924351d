package core

import (
	"context"
	"fmt"
)

// Document is a collection document payload keyed by field name.
type Document map[string]any

// StoredDocument is a document as returned by a Store, with its identifier.
type StoredDocument struct {
	ID   string
	Data Document
}

// FindResult mirrors the host's paginated find response.
type FindResult struct {
	Docs []StoredDocument
}

// Store is the persistence collaborator the reconciler writes through.
// Implementations are adapters over the host CMS database.
type Store interface {
	Create(ctx context.Context, collection string, data Document) (StoredDocument, error)
	// FindEquals returns documents whose field equals value.
	FindEquals(ctx context.Context, collection, field string, value any) (FindResult, error)
	UpdateOne(ctx context.Context, collection, id string, data Document) (StoredDocument, error)
}

// Toucher is implemented by stores that can re-save documents without changes
// so host-side hooks run after an import.
type Toucher interface {
	Touch(ctx context.Context, collection string, ids []string) error
}

// ImportMode selects how records are reconciled against existing documents.
type ImportMode string

const (
	ModeAdd    ImportMode = "add"
	ModeUpdate ImportMode = "update"
	ModeUpsert ImportMode = "upsert"
)

// Valid reports whether m is a known mode.
func (m ImportMode) Valid() bool {
	switch m {
	case ModeAdd, ModeUpdate, ModeUpsert:
		return true
	}
	return false
}

// ParseImportMode converts a wire value to an ImportMode.
func ParseImportMode(s string) (ImportMode, error) {
	m := ImportMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: invalid import mode %q (want add, update or upsert)", ErrInvalidRequest, s)
	}
	return m, nil
}

// FieldType is the per-field metadata sent by the admin client.
type FieldType struct {
	Type      string `json:"type" yaml:"type"`
	Localized bool   `json:"localized,omitempty" yaml:"localized"`
}

// FieldTypeRichText is the host's type name for rich-text fields.
const FieldTypeRichText = "richText"

// ImportRequest is a single inbound import call.
type ImportRequest struct {
	CollectionSlug string               `json:"collectionSlug"`
	Data           []map[string]any     `json:"data"`
	ImportMode     ImportMode           `json:"importMode"`
	MatchField     string               `json:"matchField,omitempty"`
	FieldMappings  map[string]string    `json:"fieldMappings"`
	FieldTypes     map[string]FieldType `json:"fieldTypes,omitempty"`
}

// ImportStatus is the terminal outcome of one input record.
type ImportStatus string

const (
	StatusCreated ImportStatus = "created"
	StatusUpdated ImportStatus = "updated"
	StatusSkipped ImportStatus = "skipped"
	StatusError   ImportStatus = "error"
)

// ImportResult describes what happened to one input record.
type ImportResult struct {
	Status  ImportStatus   `json:"status"`
	ID      string         `json:"id,omitempty"`
	Field   string         `json:"field,omitempty"`
	Error   string         `json:"error,omitempty"`
	Details string         `json:"details,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// ImportSummary counts results by status.
type ImportSummary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"error"`
}

// Total returns the number of results folded into the summary.
func (s ImportSummary) Total() int {
	return s.Created + s.Updated + s.Skipped + s.Errors
}

// ImportResponse is returned once processing has started.
type ImportResponse struct {
	Message  string         `json:"message"`
	ImportID string         `json:"importId"`
	Results  []ImportResult `json:"results"`
	Summary  ImportSummary  `json:"summary"`
}

// Summarize folds results into per-status counts.
func Summarize(results []ImportResult) ImportSummary {
	var s ImportSummary
	for _, r := range results {
		switch r.Status {
		case StatusCreated:
			s.Created++
		case StatusUpdated:
			s.Updated++
		case StatusSkipped:
			s.Skipped++
		case StatusError:
			s.Errors++
		}
	}
	return s
}
