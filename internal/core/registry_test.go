package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postsDefinition() CollectionDefinition {
	return CollectionDefinition{
		Slug:  "posts",
		Label: "Posts",
		Fields: []CollectionField{
			{Name: "slug", Type: "text"},
			{Name: "title", Type: "text", Localized: true},
			{Name: "body", Type: FieldTypeRichText},
		},
		Locales: []string{"en", "fr"},
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(postsDefinition()))
	require.NoError(t, reg.Register(CollectionDefinition{Slug: "authors"}))

	def, ok := reg.Get("posts")
	require.True(t, ok)
	assert.Equal(t, "Posts", def.Label)

	authors, ok := reg.Get("authors")
	require.True(t, ok)
	assert.Equal(t, "authors", authors.Label, "label defaults to slug")

	_, ok = reg.Get("pages")
	assert.False(t, ok)
	assert.Equal(t, 2, reg.Count())
}

func TestRegistry_RegisterErrors(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Register(CollectionDefinition{}))

	require.NoError(t, reg.Register(postsDefinition()))
	err := reg.Register(postsDefinition())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_Importable(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(postsDefinition()))
	require.NoError(t, reg.Register(CollectionDefinition{Slug: "users"}))

	assert.Empty(t, reg.ImportableSlugs(), "registered collections start unlisted")

	require.NoError(t, reg.SetImportable("posts", true))
	def, ok := reg.Get("posts")
	require.True(t, ok)
	assert.True(t, def.Importable)

	assert.Equal(t, []string{"posts"}, reg.ImportableSlugs())
	assert.Equal(t, []string{"posts", "users"}, reg.Slugs(), "unlisted collections still accept imports")
	assert.ErrorIs(t, reg.SetImportable("pages", true), ErrUnknownCollection)
}

func TestRegistry_AllSorted(t *testing.T) {
	reg := NewRegistry()
	for _, slug := range []string{"tags", "authors", "posts"} {
		require.NoError(t, reg.Register(CollectionDefinition{Slug: slug}))
	}

	var slugs []string
	for _, def := range reg.All() {
		slugs = append(slugs, def.Slug)
	}
	assert.Equal(t, []string{"authors", "posts", "tags"}, slugs)
}

func TestCollectionDefinition_FieldNames(t *testing.T) {
	assert.Equal(t, []string{"slug", "title", "body", "id"}, postsDefinition().FieldNames())

	withID := CollectionDefinition{Fields: []CollectionField{{Name: "id"}, {Name: "name"}}}
	assert.Equal(t, []string{"id", "name"}, withID.FieldNames())
}

func TestCollectionDefinition_FieldTypes(t *testing.T) {
	types := postsDefinition().FieldTypes()

	assert.Equal(t, FieldType{Type: "text", Localized: true}, types["title"])
	assert.Equal(t, FieldType{Type: FieldTypeRichText}, types["body"])
	assert.Len(t, types, 3)
}

func TestPreview(t *testing.T) {
	p := Preview(postsDefinition(), 4, []string{"slug", "Heading", "body"})

	assert.Equal(t, "posts", p.Collection)
	assert.Equal(t, 4, p.Records)
	assert.Equal(t, []string{"slug", "Heading", "body"}, p.InputFields)
	assert.Equal(t, map[string]string{"slug": "slug", "Heading": "", "body": "body"}, p.SuggestedMappings)
	assert.Equal(t, "id", p.MatchField)
	assert.Equal(t, FieldTypeRichText, p.FieldTypes["body"].Type)
}

func TestDefaultMatchField(t *testing.T) {
	assert.Equal(t, "id", defaultMatchField([]string{"slug", "id"}))
	assert.Equal(t, "slug", defaultMatchField([]string{"slug", "title"}))
	assert.Equal(t, "", defaultMatchField(nil))
}
