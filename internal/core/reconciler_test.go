package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postsRequest(mode ImportMode, data ...map[string]any) ImportRequest {
	return ImportRequest{
		CollectionSlug: "posts",
		Data:           data,
		ImportMode:     mode,
		MatchField:     "slug",
		FieldMappings:  map[string]string{"slug": "slug", "title": "title"},
		FieldTypes:     blogTypes,
	}
}

func TestReconcile_AddNeverLooksUp(t *testing.T) {
	store := newFakeStore()
	store.seed("posts", Document{"slug": "a"})

	results := NewReconciler(store).Reconcile(context.Background(), postsRequest(ModeAdd,
		map[string]any{"slug": "a"},
		map[string]any{"slug": "b"},
	))

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, StatusCreated, r.Status)
		assert.NotEmpty(t, r.ID)
	}
	assert.Equal(t, 0, store.finds)
	assert.Equal(t, 3, store.count("posts"))
}

func TestReconcile_UpdateFirstMatch(t *testing.T) {
	store := newFakeStore()
	first := store.seed("posts", Document{"slug": "a", "views": 1.0})
	store.seed("posts", Document{"slug": "a", "views": 2.0})

	results := NewReconciler(store).Reconcile(context.Background(), postsRequest(ModeUpdate,
		map[string]any{"slug": "a", "title": map[string]any{"en": "New"}},
	))

	require.Len(t, results, 1)
	assert.Equal(t, StatusUpdated, results[0].Status)
	assert.Equal(t, first, results[0].ID)
	assert.Equal(t, 1, store.updates)
	assert.Equal(t, 0, store.creates)
	assert.Equal(t, 1.0, store.docs["posts"][0].Data["views"])
	assert.Equal(t, map[string]any{"en": "New"}, store.docs["posts"][0].Data["title"])
}

func TestReconcile_UpdateWithoutMatchSkips(t *testing.T) {
	store := newFakeStore()

	results := NewReconciler(store).Reconcile(context.Background(), postsRequest(ModeUpdate,
		map[string]any{"slug": "missing"},
	))

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, StatusSkipped, r.Status)
	assert.Equal(t, "slug", r.Field)
	assert.Equal(t, "Document not found for update", r.Error)
	assert.Equal(t, map[string]any{"slug": "missing"}, r.Data)
	assert.Equal(t, 0, store.creates)
	assert.Equal(t, 0, store.updates)
}

func TestReconcile_UpsertCreatesThenUpdates(t *testing.T) {
	store := newFakeStore()
	rec := NewReconciler(store)

	first := rec.Reconcile(context.Background(), postsRequest(ModeUpsert, map[string]any{"slug": "a"}))
	second := rec.Reconcile(context.Background(), postsRequest(ModeUpsert, map[string]any{"slug": "a"}))

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, StatusCreated, first[0].Status)
	assert.Equal(t, StatusUpdated, second[0].Status)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 1, store.count("posts"))
}

func TestReconcile_MatchFieldProblems(t *testing.T) {
	t.Run("no match field configured", func(t *testing.T) {
		store := newFakeStore()
		req := postsRequest(ModeUpsert, map[string]any{"slug": "a"})
		req.MatchField = ""

		results := NewReconciler(store).Reconcile(context.Background(), req)

		require.Len(t, results, 1)
		assert.Equal(t, StatusError, results[0].Status)
		assert.Equal(t, "Match field is required for update/upsert mode", results[0].Error)
		assert.Equal(t, 0, store.finds)
	})

	t.Run("match value missing from record", func(t *testing.T) {
		store := newFakeStore()

		results := NewReconciler(store).Reconcile(context.Background(), postsRequest(ModeUpdate,
			map[string]any{"title": map[string]any{"en": "No slug"}},
		))

		require.Len(t, results, 1)
		assert.Equal(t, StatusError, results[0].Status)
		assert.Equal(t, "slug", results[0].Field)
		assert.Equal(t, 0, store.finds)
	})
}

func TestReconcile_FieldErrorSkipsStore(t *testing.T) {
	store := newFakeStore()

	results := NewReconciler(store).Reconcile(context.Background(), postsRequest(ModeAdd,
		map[string]any{"slug": "a", "title": map[string]any{"en": "x", "fr": 5.0}},
		map[string]any{"slug": "b"},
	))

	require.Len(t, results, 2)
	assert.Equal(t, StatusError, results[0].Status)
	assert.Equal(t, "title.fr", results[0].Field)
	assert.Equal(t, "a", results[0].Data["slug"])
	assert.Equal(t, StatusCreated, results[1].Status)
	assert.Equal(t, 1, store.creates)
}

func TestReconcile_StoreErrors(t *testing.T) {
	tests := []struct {
		name      string
		mode      ImportMode
		setup     func(*fakeStore)
		wantField string
	}{
		{
			name:      "create failure names column",
			mode:      ModeAdd,
			setup:     func(f *fakeStore) { f.createErr = errors.New("create failed: slug: duplicate key value") },
			wantField: "slug",
		},
		{
			name:  "lookup failure",
			mode:  ModeUpdate,
			setup: func(f *fakeStore) { f.findErr = errors.New("connection refused") },
		},
		{
			name: "update failure",
			mode: ModeUpsert,
			setup: func(f *fakeStore) {
				f.seed("posts", Document{"slug": "a"})
				f.updateErr = errors.New(`ValidationError: title is invalid`)
			},
			wantField: "title",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			tt.setup(store)

			results := NewReconciler(store).Reconcile(context.Background(), postsRequest(tt.mode,
				map[string]any{"slug": "a"},
				map[string]any{"slug": "a"},
			))

			require.Len(t, results, 2)
			for _, r := range results {
				assert.Equal(t, StatusError, r.Status)
				assert.Equal(t, tt.wantField, r.Field)
				assert.NotEmpty(t, r.Error)
				assert.Contains(t, r.Details, "failed: ")
				assert.Equal(t, "a", r.Data["slug"])
			}
		})
	}
}

func TestReconcile_EmptyData(t *testing.T) {
	results := NewReconciler(newFakeStore()).Reconcile(context.Background(), postsRequest(ModeAdd))
	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]ImportResult{
		{Status: StatusCreated},
		{Status: StatusCreated},
		{Status: StatusUpdated},
		{Status: StatusSkipped},
		{Status: StatusError},
	})

	assert.Equal(t, ImportSummary{Created: 2, Updated: 1, Skipped: 1, Errors: 1}, s)
	assert.Equal(t, 5, s.Total())
}
