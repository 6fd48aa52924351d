package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/JonMunkholm/jsonimport/internal/core"
)

// errBodyTooLarge is returned when the body exceeds the configured limit.
var errBodyTooLarge = errors.New("request body too large")

// importBody is the wire form of an import request. Data is decoded
// separately so a single object can be accepted.
type importBody struct {
	CollectionSlug string                    `json:"collectionSlug"`
	Data           json.RawMessage           `json:"data"`
	ImportMode     string                    `json:"importMode"`
	MatchField     string                    `json:"matchField"`
	FieldMappings  map[string]string         `json:"fieldMappings"`
	FieldTypes     map[string]core.FieldType `json:"fieldTypes"`
}

// isJSONRequest reports whether the request declares a JSON body.
func isJSONRequest(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// decodeBody reads a JSON object from r into v.
func decodeBody(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		return fmt.Errorf("%w: invalid JSON body: %v", core.ErrInvalidRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON body", core.ErrInvalidRequest)
	}
	return nil
}

// toImportRequest converts the wire body, resolving the collection slug
// against the path parameter.
func (b importBody) toImportRequest(pathSlug string) (core.ImportRequest, error) {
	slug := b.CollectionSlug
	switch {
	case slug == "":
		slug = pathSlug
	case pathSlug != "" && slug != pathSlug:
		return core.ImportRequest{}, fmt.Errorf("%w: collectionSlug %q does not match path collection %q",
			core.ErrInvalidRequest, slug, pathSlug)
	}

	records, err := decodeRecords(b.Data)
	if err != nil {
		return core.ImportRequest{}, err
	}

	return core.ImportRequest{
		CollectionSlug: slug,
		Data:           records,
		ImportMode:     core.ImportMode(b.ImportMode),
		MatchField:     b.MatchField,
		FieldMappings:  b.FieldMappings,
		FieldTypes:     b.FieldTypes,
	}, nil
}

// decodeRecords accepts an object or an array of objects. A missing or
// null value yields nil so request validation reports "data" as missing.
func decodeRecords(raw json.RawMessage) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '{':
		var record map[string]any
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return nil, fmt.Errorf("%w: data: %v", core.ErrInvalidRequest, err)
		}
		return []map[string]any{record}, nil

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: data: %v", core.ErrInvalidRequest, err)
		}
		records := make([]map[string]any, 0, len(items))
		for i, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) == 0 || item[0] != '{' {
				return nil, fmt.Errorf("%w: data[%d] must be an object", core.ErrInvalidRequest, i)
			}
			var record map[string]any
			if err := json.Unmarshal(item, &record); err != nil {
				return nil, fmt.Errorf("%w: data[%d]: %v", core.ErrInvalidRequest, i, err)
			}
			records = append(records, record)
		}
		return records, nil
	}

	return nil, fmt.Errorf("%w: data must be an object or an array of objects", core.ErrInvalidRequest)
}

// firstRecordKeys returns the keys of the first record in document order.
func firstRecordKeys(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return []string{}, nil
		}
		trimmed = items[0]
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object")
	}

	keys := []string{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key")
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
