// Package memory provides an in-process document store.
// It backs development runs without a database and serves as the store in
// handler tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/JonMunkholm/jsonimport/internal/core"
	"github.com/google/uuid"
)

type document struct {
	id        string
	data      core.Document
	createdAt time.Time
	updatedAt time.Time
}

// Store keeps documents per collection in insertion order.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]*document
	audits      []core.AuditEntry
}

// New creates an empty Store.
func New() *Store {
	return &Store{collections: make(map[string][]*document)}
}

// Create stores data under a new id.
func (s *Store) Create(_ context.Context, collection string, data core.Document) (core.StoredDocument, error) {
	stored, err := encodeDocument(data)
	if err != nil {
		return core.StoredDocument{}, fmt.Errorf("create %s: %w", collection, err)
	}

	now := time.Now().UTC()
	doc := &document{
		id:        uuid.New().String(),
		data:      stored,
		createdAt: now,
		updatedAt: now,
	}

	s.mu.Lock()
	s.collections[collection] = append(s.collections[collection], doc)
	s.mu.Unlock()

	return core.StoredDocument{ID: doc.id, Data: cloneDocument(doc.data)}, nil
}

// FindEquals returns documents whose field value is JSON-equal to value.
func (s *Store) FindEquals(_ context.Context, collection, field string, value any) (core.FindResult, error) {
	want, err := canonical(value)
	if err != nil {
		return core.FindResult{}, fmt.Errorf("find %s: encode value for %s: %w", collection, field, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result core.FindResult
	for _, doc := range s.collections[collection] {
		var got any
		if field == "id" {
			got = doc.id
		} else {
			v, ok := doc.data[field]
			if !ok {
				continue
			}
			got = v
		}
		c, err := canonical(got)
		if err != nil {
			continue
		}
		if reflect.DeepEqual(c, want) {
			result.Docs = append(result.Docs, core.StoredDocument{ID: doc.id, Data: cloneDocument(doc.data)})
		}
	}
	return result, nil
}

// UpdateOne merges data into the top-level fields of document id.
func (s *Store) UpdateOne(_ context.Context, collection, id string, data core.Document) (core.StoredDocument, error) {
	patch, err := encodeDocument(data)
	if err != nil {
		return core.StoredDocument{}, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range s.collections[collection] {
		if doc.id != id {
			continue
		}
		for k, v := range patch {
			if k == "id" {
				continue
			}
			doc.data[k] = v
		}
		doc.updatedAt = time.Now().UTC()
		return core.StoredDocument{ID: doc.id, Data: cloneDocument(doc.data)}, nil
	}
	return core.StoredDocument{}, fmt.Errorf("update %s/%s: %w", collection, id, core.ErrNotFound)
}

// Touch bumps the update time of the given documents.
func (s *Store) Touch(_ context.Context, collection string, ids []string) error {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, doc := range s.collections[collection] {
		if want[doc.id] {
			doc.updatedAt = now
		}
	}
	return nil
}

// RecordImport appends an audit entry.
func (s *Store) RecordImport(_ context.Context, entry core.AuditEntry) error {
	s.mu.Lock()
	s.audits = append(s.audits, entry)
	s.mu.Unlock()
	return nil
}

// Audits returns recorded audit entries, oldest first.
func (s *Store) Audits() []core.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.AuditEntry(nil), s.audits...)
}

// Documents returns a snapshot of a collection, oldest first.
func (s *Store) Documents(collection string) []core.StoredDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]core.StoredDocument, 0, len(s.collections[collection]))
	for _, doc := range s.collections[collection] {
		docs = append(docs, core.StoredDocument{ID: doc.id, Data: cloneDocument(doc.data)})
	}
	return docs
}

// encodeDocument deep-copies d through a JSON round trip so stored values
// have the same shape as values read back from a database.
func encodeDocument(d core.Document) (core.Document, error) {
	out := core.Document{}
	if d == nil {
		return out, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

// cloneDocument copies a document that is already in stored form.
func cloneDocument(d core.Document) core.Document {
	out, err := encodeDocument(d)
	if err != nil {
		return core.Document{}
	}
	return out
}

// canonical normalizes v to its decoded-JSON form for comparison.
func canonical(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
