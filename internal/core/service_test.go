package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []ImportSummary
}

func (o *recordingObserver) ImportFinished(_ context.Context, _ string, _ ImportMode, s ImportSummary, _ time.Duration) {
	o.mu.Lock()
	o.calls = append(o.calls, s)
	o.mu.Unlock()
}

func newTestService(t *testing.T, store Store, opts ServiceOptions) *Service {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(postsDefinition()))
	require.NoError(t, reg.Register(CollectionDefinition{Slug: "users"}))
	require.NoError(t, reg.SetImportable("posts", true))
	return NewService(reg, store, opts)
}

func TestValidateRequest(t *testing.T) {
	valid := ImportRequest{CollectionSlug: "posts", Data: []map[string]any{}, ImportMode: ModeAdd}

	tests := []struct {
		name    string
		mutate  func(*ImportRequest)
		wantErr string
	}{
		{"valid", func(*ImportRequest) {}, ""},
		{"missing slug", func(r *ImportRequest) { r.CollectionSlug = "" }, "collectionSlug"},
		{"missing data", func(r *ImportRequest) { r.Data = nil }, "data"},
		{"missing mode", func(r *ImportRequest) { r.ImportMode = "" }, "importMode"},
		{"bad mode", func(r *ImportRequest) { r.ImportMode = "replace" }, `"replace"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := ValidateRequest(req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidRequest)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseImportMode(t *testing.T) {
	m, err := ParseImportMode("upsert")
	require.NoError(t, err)
	assert.Equal(t, ModeUpsert, m)

	_, err = ParseImportMode("merge")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestServiceImport_UsesSchemaFieldTypes(t *testing.T) {
	store := newFakeStore()
	obs := &recordingObserver{}
	svc := newTestService(t, store, ServiceOptions{SchemaFieldTypes: true, TouchAfterImport: true, Observer: obs})

	resp, err := svc.Import(context.Background(), ImportRequest{
		CollectionSlug: "posts",
		ImportMode:     ModeAdd,
		FieldMappings:  map[string]string{"slug": "slug", "body": "body", "title.fr": "title"},
		Data: []map[string]any{
			{"slug": "a", "body": "Hello", "title.fr": "Salut"},
			{"slug": "b", "body": 3.0},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Import process completed", resp.Message)
	assert.NotEmpty(t, resp.ImportID)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, StatusCreated, resp.Results[0].Status)
	assert.Equal(t, StatusError, resp.Results[1].Status)
	assert.Equal(t, "body", resp.Results[1].Field)
	assert.Equal(t, ImportSummary{Created: 1, Errors: 1}, resp.Summary)

	doc := store.docs["posts"][0].Data
	assert.Equal(t, NewRichText("Hello"), doc["body"])
	assert.Equal(t, map[string]any{"fr": "Salut"}, doc["title"])

	assert.Equal(t, []string{resp.Results[0].ID}, store.touched)
	require.Len(t, store.audits, 1)
	assert.Equal(t, resp.ImportID, store.audits[0].ID)
	assert.Equal(t, 2, store.audits[0].Records)
	require.Len(t, obs.calls, 1)
	assert.Equal(t, resp.Summary, obs.calls[0])
}

func TestServiceImport_CopiesUntypedFields(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, ServiceOptions{})

	resp, err := svc.Import(context.Background(), ImportRequest{
		CollectionSlug: "posts",
		ImportMode:     ModeAdd,
		FieldMappings:  map[string]string{"name": "title", "text": "body"},
		Data:           []map[string]any{{"name": "A", "text": "Hello"}},
	})
	require.NoError(t, err)

	assert.Equal(t, ImportSummary{Created: 1}, resp.Summary)
	assert.Equal(t, Document{"title": "A", "body": "Hello"}, store.docs["posts"][0].Data)
}

func TestServiceImport_RequestTypesOverrideSchema(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, ServiceOptions{SchemaFieldTypes: true})

	resp, err := svc.Import(context.Background(), ImportRequest{
		CollectionSlug: "posts",
		ImportMode:     ModeAdd,
		FieldMappings:  map[string]string{"body": "body"},
		FieldTypes:     map[string]FieldType{"body": {Type: "textarea"}},
		Data:           []map[string]any{{"body": "raw"}},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, resp.Results[0].Status)
	assert.Equal(t, "raw", store.docs["posts"][0].Data["body"])
	assert.Empty(t, store.touched, "touch is off by default")
}

func TestServiceImport_TouchSkipsFailedRecords(t *testing.T) {
	store := newFakeStore()
	existing := store.seed("posts", Document{"slug": "a"})
	svc := newTestService(t, store, ServiceOptions{TouchAfterImport: true})

	resp, err := svc.Import(context.Background(), ImportRequest{
		CollectionSlug: "posts",
		ImportMode:     ModeUpdate,
		MatchField:     "slug",
		FieldMappings:  map[string]string{"slug": "slug"},
		Data:           []map[string]any{{"slug": "a"}, {"slug": "b"}},
	})
	require.NoError(t, err)

	assert.Equal(t, ImportSummary{Updated: 1, Skipped: 1}, resp.Summary)
	assert.Equal(t, []string{existing}, store.touched)
}

func TestServiceImport_RequestErrors(t *testing.T) {
	svc := newTestService(t, newFakeStore(), ServiceOptions{})

	_, err := svc.Import(context.Background(), ImportRequest{CollectionSlug: "posts", ImportMode: ModeAdd})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Import(context.Background(), ImportRequest{CollectionSlug: "users", ImportMode: ModeAdd, Data: []map[string]any{}})
	assert.NoError(t, err, "registered collections accept imports without being listed")

	_, err = svc.Import(context.Background(), ImportRequest{CollectionSlug: "pages", ImportMode: ModeAdd, Data: []map[string]any{}})
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestServiceImport_EmptyData(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, ServiceOptions{})

	resp, err := svc.Import(context.Background(), ImportRequest{
		CollectionSlug: "posts",
		ImportMode:     ModeAdd,
		Data:           []map[string]any{},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, ImportSummary{}, resp.Summary)
	assert.Equal(t, 0, store.creates)
}

// blockingStore holds every Create until release is closed.
type blockingStore struct {
	*fakeStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) Create(ctx context.Context, collection string, data Document) (StoredDocument, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.fakeStore.Create(ctx, collection, data)
}

func TestServiceImport_TooManyImports(t *testing.T) {
	store := &blockingStore{
		fakeStore: newFakeStore(),
		entered:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
	svc := newTestService(t, store, ServiceOptions{MaxConcurrent: 1, MaxWait: 50 * time.Millisecond})

	req := ImportRequest{
		CollectionSlug: "posts",
		ImportMode:     ModeAdd,
		FieldMappings:  map[string]string{"slug": "slug"},
		Data:           []map[string]any{{"slug": "a"}},
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Import(context.Background(), req)
		done <- err
	}()
	<-store.entered

	assert.Equal(t, 1, svc.LimiterStatus().Active)
	_, err := svc.Import(context.Background(), req)
	assert.True(t, errors.Is(err, ErrTooManyImports))

	close(store.release)
	require.NoError(t, <-done)
	require.NoError(t, svc.WaitForImports(context.Background()))
	assert.Equal(t, 0, svc.LimiterStatus().Active)
}

func TestServiceImport_AuditCarriesRequestMeta(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, ServiceOptions{})
	ctx := ContextWithRequestMeta(context.Background(), RequestMeta{IPAddress: "10.0.0.7", UserAgent: "curl/8"})

	_, err := svc.Import(ctx, ImportRequest{
		CollectionSlug: "posts",
		ImportMode:     ModeUpsert,
		MatchField:     "slug",
		FieldMappings:  map[string]string{"slug": "slug"},
		Data:           []map[string]any{{"slug": "a"}},
	})
	require.NoError(t, err)

	require.Len(t, store.audits, 1)
	entry := store.audits[0]
	assert.Equal(t, "posts", entry.Collection)
	assert.Equal(t, ModeUpsert, entry.Mode)
	assert.Equal(t, "slug", entry.MatchField)
	assert.Equal(t, "10.0.0.7", entry.IPAddress)
	assert.Equal(t, "curl/8", entry.UserAgent)
	assert.Equal(t, ImportSummary{Created: 1}, entry.Summary)
}

// cancellingStore cancels the caller's context after the first Create and
// fails any call made with a done context.
type cancellingStore struct {
	*fakeStore
	cancel   context.CancelFunc
	attempts int
}

func (c *cancellingStore) Create(ctx context.Context, collection string, data Document) (StoredDocument, error) {
	c.attempts++
	if err := ctx.Err(); err != nil {
		return StoredDocument{}, err
	}
	doc, err := c.fakeStore.Create(ctx, collection, data)
	c.cancel()
	return doc, err
}

func (c *cancellingStore) RecordImport(ctx context.Context, e AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.fakeStore.RecordImport(ctx, e)
}

func TestServiceImport_RunsToCompletionAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := &cancellingStore{fakeStore: newFakeStore(), cancel: cancel}
	svc := newTestService(t, store, ServiceOptions{})

	resp, err := svc.Import(ctx, ImportRequest{
		CollectionSlug: "posts",
		ImportMode:     ModeAdd,
		FieldMappings:  map[string]string{"slug": "slug"},
		Data:           []map[string]any{{"slug": "a"}, {"slug": "b"}, {"slug": "c"}},
	})
	require.NoError(t, err)

	require.Error(t, ctx.Err(), "caller context should be cancelled mid-run")
	assert.Equal(t, 3, store.attempts)
	assert.Equal(t, ImportSummary{Created: 3}, resp.Summary)
	assert.Len(t, store.docs["posts"], 3)
	require.Len(t, store.audits, 1)
	assert.Equal(t, resp.ImportID, store.audits[0].ID)
}
