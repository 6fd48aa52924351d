package core

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// fakeStore is an in-package Store used by the reconciler and service tests.
type fakeStore struct {
	mu      sync.Mutex
	docs    map[string][]StoredDocument
	nextID  int
	creates int
	finds   int
	updates int

	createErr error
	findErr   error
	updateErr error

	touched []string
	audits  []AuditEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string][]StoredDocument)}
}

func (f *fakeStore) seed(collection string, data Document) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("doc-%d", f.nextID)
	f.docs[collection] = append(f.docs[collection], StoredDocument{ID: id, Data: data})
	return id
}

func (f *fakeStore) Create(_ context.Context, collection string, data Document) (StoredDocument, error) {
	f.mu.Lock()
	f.creates++
	err := f.createErr
	f.mu.Unlock()
	if err != nil {
		return StoredDocument{}, err
	}
	id := f.seed(collection, data)
	return StoredDocument{ID: id, Data: data}, nil
}

func (f *fakeStore) FindEquals(_ context.Context, collection, field string, value any) (FindResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	if f.findErr != nil {
		return FindResult{}, f.findErr
	}
	want := normalized(value)
	var res FindResult
	for _, d := range f.docs[collection] {
		var got any = d.ID
		if field != "id" {
			v, ok := d.Data[field]
			if !ok {
				continue
			}
			got = v
		}
		if reflect.DeepEqual(normalized(got), want) {
			res.Docs = append(res.Docs, d)
		}
	}
	return res, nil
}

func (f *fakeStore) UpdateOne(_ context.Context, collection, id string, data Document) (StoredDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil {
		return StoredDocument{}, f.updateErr
	}
	for i, d := range f.docs[collection] {
		if d.ID != id {
			continue
		}
		for k, v := range data {
			d.Data[k] = v
		}
		f.docs[collection][i] = d
		return d, nil
	}
	return StoredDocument{}, fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
}

func (f *fakeStore) Touch(_ context.Context, _ string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, ids...)
	return nil
}

func (f *fakeStore) RecordImport(_ context.Context, e AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits = append(f.audits, e)
	return nil
}

func (f *fakeStore) count(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs[collection])
}

func normalized(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	_ = json.Unmarshal(b, &out)
	return out
}
