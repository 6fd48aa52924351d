package core

import (
	"fmt"
	"sort"
	"sync"
)

// CollectionField describes one field of a host collection.
type CollectionField struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Localized bool   `json:"localized,omitempty"`
}

// CollectionDefinition contains everything the importer knows about a
// host collection.
type CollectionDefinition struct {
	Slug    string            // Unique identifier: "posts"
	Label   string            // Display name: "Posts"
	Fields  []CollectionField // Declared fields, in schema order
	Locales []string          // Locale codes configured for localized fields

	// Importable is set by the plugin for the collections it lists. They are
	// the ones advertised by GET /api/collections.
	Importable bool
}

// FieldNames returns declared field names followed by "id".
func (d CollectionDefinition) FieldNames() []string {
	names := make([]string, 0, len(d.Fields)+1)
	hasID := false
	for _, f := range d.Fields {
		names = append(names, f.Name)
		if f.Name == "id" {
			hasID = true
		}
	}
	if !hasID {
		names = append(names, "id")
	}
	return names
}

// FieldTypes returns the schema's field metadata keyed by field name.
func (d CollectionDefinition) FieldTypes() map[string]FieldType {
	types := make(map[string]FieldType, len(d.Fields))
	for _, f := range d.Fields {
		types[f.Name] = FieldType{Type: f.Type, Localized: f.Localized}
	}
	return types
}

// Registry holds collection definitions. It is built once at startup by an
// explicit registration step and read concurrently by request handlers.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]CollectionDefinition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{collections: make(map[string]CollectionDefinition)}
}

// Register adds a collection definition.
// Returns an error if the slug is empty or already registered.
func (r *Registry) Register(def CollectionDefinition) error {
	if def.Slug == "" {
		return fmt.Errorf("register collection: empty slug")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[def.Slug]; exists {
		return fmt.Errorf("collection already registered: %s", def.Slug)
	}
	if def.Label == "" {
		def.Label = def.Slug
	}
	r.collections[def.Slug] = def
	return nil
}

// SetImportable sets the plugin listing flag of a registered collection.
func (r *Registry) SetImportable(slug string, importable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.collections[slug]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, slug)
	}
	def.Importable = importable
	r.collections[slug] = def
	return nil
}

// Get returns a collection definition by slug.
// Returns false if not found.
func (r *Registry) Get(slug string) (CollectionDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.collections[slug]
	return def, ok
}

// All returns all registered definitions sorted by slug.
func (r *Registry) All() []CollectionDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]CollectionDefinition, 0, len(r.collections))
	for _, def := range r.collections {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Slug < result[j].Slug
	})
	return result
}

// Slugs returns every registered slug, sorted.
func (r *Registry) Slugs() []string {
	all := r.All()
	slugs := make([]string, 0, len(all))
	for _, def := range all {
		slugs = append(slugs, def.Slug)
	}
	return slugs
}

// ImportableSlugs returns the sorted slugs of listed collections.
func (r *Registry) ImportableSlugs() []string {
	var slugs []string
	for _, def := range r.All() {
		if def.Importable {
			slugs = append(slugs, def.Slug)
		}
	}
	return slugs
}

// Count returns the number of registered collections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.collections)
}
