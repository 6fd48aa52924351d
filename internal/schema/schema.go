// Package schema loads collection definitions from a YAML file.
//
// The file describes the host collections the importer may write to:
//
//	locales: [en, fr]
//	collections:
//	  - slug: posts
//	    label: Posts
//	    fields:
//	      - name: slug
//	        type: text
//	      - name: title
//	        type: text
//	        localized: true
//	      - name: body
//	        type: richText
//	        localized: true
//
// A collection may override the file-level locales with its own list.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/jsonimport/internal/core"
)

// File is the decoded collections file.
type File struct {
	Locales     []string     `yaml:"locales"`
	Collections []Collection `yaml:"collections"`
}

// Collection is one collection entry.
type Collection struct {
	Slug    string   `yaml:"slug"`
	Label   string   `yaml:"label"`
	Locales []string `yaml:"locales"`
	Fields  []Field  `yaml:"fields"`
}

// Field is one field of a collection.
type Field struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Localized bool   `yaml:"localized"`
}

// knownTypes are the host field types the importer understands.
var knownTypes = map[string]bool{
	"text":                 true,
	"textarea":             true,
	"email":                true,
	"code":                 true,
	"json":                 true,
	"number":               true,
	"checkbox":             true,
	"date":                 true,
	"select":               true,
	"radio":                true,
	"point":                true,
	"relationship":         true,
	"upload":               true,
	"array":                true,
	"group":                true,
	"blocks":               true,
	core.FieldTypeRichText: true,
}

// LoadFile reads and validates the collections file at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read collections file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a collections document. Unknown keys are
// rejected. Locale codes are normalized to their canonical BCP 47 form.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("collections file is empty")
		}
		return nil, fmt.Errorf("decode collections: %w", err)
	}
	if err := f.normalize(); err != nil {
		return nil, err
	}
	return &f, nil
}

// normalize validates the file in place and reports every problem found.
func (f *File) normalize() error {
	var errs []string

	locales, err := canonicalLocales(f.Locales)
	if err != nil {
		errs = append(errs, "locales: "+err.Error())
	}
	f.Locales = locales

	seen := make(map[string]bool, len(f.Collections))
	for i := range f.Collections {
		c := &f.Collections[i]
		c.Slug = strings.TrimSpace(c.Slug)
		where := fmt.Sprintf("collections[%d]", i)
		if c.Slug == "" {
			errs = append(errs, where+": slug is required")
		} else {
			where = fmt.Sprintf("collection %q", c.Slug)
			if seen[c.Slug] {
				errs = append(errs, where+": duplicate slug")
			}
			seen[c.Slug] = true
		}

		if len(c.Locales) > 0 {
			locales, err := canonicalLocales(c.Locales)
			if err != nil {
				errs = append(errs, where+": locales: "+err.Error())
			}
			c.Locales = locales
		}

		fields := make(map[string]bool, len(c.Fields))
		localized := false
		for j := range c.Fields {
			fd := &c.Fields[j]
			fd.Name = strings.TrimSpace(fd.Name)
			switch {
			case fd.Name == "":
				errs = append(errs, fmt.Sprintf("%s: fields[%d]: name is required", where, j))
				continue
			case strings.Contains(fd.Name, "."):
				errs = append(errs, fmt.Sprintf("%s: field %q: name must not contain '.'", where, fd.Name))
			case fields[fd.Name]:
				errs = append(errs, fmt.Sprintf("%s: field %q: duplicate name", where, fd.Name))
			}
			fields[fd.Name] = true

			if fd.Type == "" {
				fd.Type = "text"
			}
			if !knownTypes[fd.Type] {
				errs = append(errs, fmt.Sprintf("%s: field %q: unknown type %q", where, fd.Name, fd.Type))
			}
			localized = localized || fd.Localized
		}

		if localized && len(c.effectiveLocales(f.Locales)) == 0 {
			errs = append(errs, where+": has localized fields but no locales are configured")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid collections file:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c Collection) effectiveLocales(fileLocales []string) []string {
	if len(c.Locales) > 0 {
		return c.Locales
	}
	return fileLocales
}

// canonicalLocales parses each code as a BCP 47 tag and returns the
// canonical spellings with duplicates removed.
func canonicalLocales(codes []string) ([]string, error) {
	var (
		out  []string
		bad  []string
		seen = make(map[string]bool, len(codes))
	)
	for _, code := range codes {
		tag, err := language.Parse(strings.TrimSpace(code))
		if err != nil {
			bad = append(bad, fmt.Sprintf("%q", code))
			continue
		}
		s := tag.String()
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if len(bad) > 0 {
		return out, fmt.Errorf("invalid locale code(s) %s", strings.Join(bad, ", "))
	}
	return out, nil
}

// Definitions converts the file to registry definitions, in file order.
func (f *File) Definitions() []core.CollectionDefinition {
	defs := make([]core.CollectionDefinition, 0, len(f.Collections))
	for _, c := range f.Collections {
		fields := make([]core.CollectionField, 0, len(c.Fields))
		for _, fd := range c.Fields {
			fields = append(fields, core.CollectionField{
				Name:      fd.Name,
				Type:      fd.Type,
				Localized: fd.Localized,
			})
		}
		defs = append(defs, core.CollectionDefinition{
			Slug:    c.Slug,
			Label:   c.Label,
			Fields:  fields,
			Locales: append([]string(nil), c.effectiveLocales(f.Locales)...),
		})
	}
	return defs
}

// Register adds every collection in f to reg.
func (f *File) Register(reg *core.Registry) error {
	for _, def := range f.Definitions() {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}
