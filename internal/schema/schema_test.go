package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/jsonimport/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
locales: [en, fr, en-us]
collections:
  - slug: posts
    label: Posts
    fields:
      - name: slug
        type: text
      - name: title
        localized: true
      - name: body
        type: richText
        localized: true
  - slug: authors
    locales: [de]
    fields:
      - name: name
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "fr", "en-US"}, f.Locales)
	require.Len(t, f.Collections, 2)
	assert.Equal(t, "text", f.Collections[0].Fields[1].Type, "type defaults to text")

	defs := f.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "posts", defs[0].Slug)
	assert.Equal(t, []string{"en", "fr", "en-US"}, defs[0].Locales)
	assert.Equal(t, []string{"de"}, defs[1].Locales)

	types := defs[0].FieldTypes()
	assert.Equal(t, core.FieldType{Type: "richText", Localized: true}, types["body"])
	assert.Equal(t, core.FieldType{Type: "text"}, types["slug"])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "", "empty"},
		{"unknown key", "collections:\n  - slug: a\n    colour: red\n", "colour"},
		{"missing slug", "collections:\n  - label: A\n", "slug is required"},
		{"duplicate slug", "collections:\n  - slug: a\n  - slug: a\n", "duplicate slug"},
		{"duplicate field", "collections:\n  - slug: a\n    fields:\n      - name: x\n      - name: x\n", "duplicate name"},
		{"dotted field", "collections:\n  - slug: a\n    fields:\n      - name: x.y\n", "must not contain"},
		{"unknown type", "collections:\n  - slug: a\n    fields:\n      - name: x\n        type: blob\n", "unknown type"},
		{"bad locale", "locales: [en, '!!']\ncollections: []\n", "invalid locale"},
		{"localized without locales", "collections:\n  - slug: a\n    fields:\n      - name: x\n        localized: true\n", "no locales"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFileAndRegister(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collections.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	f, err := LoadFile(path)
	require.NoError(t, err)

	reg := core.NewRegistry()
	require.NoError(t, f.Register(reg))
	assert.Equal(t, 2, reg.Count())

	def, ok := reg.Get("authors")
	require.True(t, ok)
	assert.Equal(t, "authors", def.Label, "label defaults to slug")
	assert.False(t, def.Importable)

	// Registering the same file twice collides on slugs.
	assert.Error(t, f.Register(reg))
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
