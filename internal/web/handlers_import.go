package web

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/jsonimport/internal/core"
	"github.com/JonMunkholm/jsonimport/internal/logging"
)

// handleImport runs an import for POST /api/import-json/{collectionSlug}.
//
// 400: bad content type, body or parameters. 404: unknown collection, with
// the available slugs as details. 503: no import slot. 500: anything else.
// Once records are processed the response is 200, even when every record
// failed; per-record failures are in the results.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("import handler panic",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			writeJSON(w, r, http.StatusInternalServerError, ErrorResponse{
				Error:   "Internal server error",
				Details: fmt.Sprint(rec),
				Code:    "ERR000",
			})
		}
	}()

	if !isJSONRequest(r) {
		writeError(w, r, http.StatusBadRequest, "Content-Type must be application/json", nil, "REQ001")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.Import.MaxBodySize))

	var body importBody
	if err := decodeBody(r.Body, &body); err != nil {
		s.respondDecodeError(w, r, err)
		return
	}

	req, err := body.toImportRequest(chi.URLParam(r, "collectionSlug"))
	if err != nil {
		respondError(w, r, err, errorDetails(err))
		return
	}

	ctx := withRequestMeta(r.Context(), r)
	resp, err := s.service.Import(ctx, req)
	if err != nil {
		var details any
		if errors.Is(err, core.ErrUnknownCollection) {
			details = map[string]any{"availableCollections": s.availableCollections()}
		} else {
			details = errorDetails(err)
		}
		respondError(w, r, err, details)
		return
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// respondDecodeError reports a body that could not be read.
func (s *Server) respondDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeError(w, r, http.StatusRequestEntityTooLarge, "Request body too large",
			fmt.Sprintf("limit is %s", s.cfg.Import.MaxBodySize), "REQ001")
		return
	}
	respondError(w, r, err, errorDetails(err))
}

// availableCollections returns every collection slug the host knows.
func (s *Server) availableCollections() []string {
	return s.service.Registry().Slugs()
}

// errorDetails exposes the technical text of client errors only.
func errorDetails(err error) any {
	if errors.Is(err, core.ErrInvalidRequest) {
		return err.Error()
	}
	return nil
}
