package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/jsonimport/internal/core"
)

// CollectionInfo describes one collection and its import fields.
type CollectionInfo struct {
	Slug       string                    `json:"slug"`
	Label      string                    `json:"label"`
	Fields     []string                  `json:"fields"`
	FieldTypes map[string]core.FieldType `json:"fieldTypes"`
	Locales    []string                  `json:"locales,omitempty"`
}

func collectionInfo(def core.CollectionDefinition) CollectionInfo {
	return CollectionInfo{
		Slug:       def.Slug,
		Label:      def.Label,
		Fields:     def.FieldNames(),
		FieldTypes: def.FieldTypes(),
		Locales:    def.Locales,
	}
}

// handleListCollections returns the collections the plugin lists.
func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	infos := []CollectionInfo{}
	for _, def := range s.service.Registry().All() {
		if def.Importable {
			infos = append(infos, collectionInfo(def))
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"collections": infos})
}

// handleFields returns the field names (plus id) and field types of one
// collection, for building the mapping form.
func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	def, err := s.service.Collection(chi.URLParam(r, "collectionSlug"))
	if err != nil {
		respondError(w, r, err, map[string]any{"availableCollections": s.availableCollections()})
		return
	}
	writeJSON(w, r, http.StatusOK, collectionInfo(def))
}

// previewBody is the request of the preview route.
type previewBody struct {
	Data json.RawMessage `json:"data"`
}

// handlePreview parses pasted data and suggests a field mapping without
// writing anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if !isJSONRequest(r) {
		writeError(w, r, http.StatusBadRequest, "Content-Type must be application/json", nil, "REQ001")
		return
	}

	def, err := s.service.Collection(chi.URLParam(r, "collectionSlug"))
	if err != nil {
		respondError(w, r, err, map[string]any{"availableCollections": s.availableCollections()})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.Import.MaxBodySize))

	var body previewBody
	if err := decodeBody(r.Body, &body); err != nil {
		s.respondDecodeError(w, r, err)
		return
	}

	records, err := decodeRecords(body.Data)
	if err != nil {
		respondError(w, r, err, errorDetails(err))
		return
	}
	if records == nil {
		writeError(w, r, http.StatusBadRequest, "The import request is invalid", "missing required parameters: [data]", "REQ001")
		return
	}

	keys, err := firstRecordKeys(body.Data)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "The import request is invalid", err.Error(), "REQ001")
		return
	}

	writeJSON(w, r, http.StatusOK, core.Preview(def, len(records), keys))
}

// handleImportStatus returns the import limiter state.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.LimiterStatus())
}
