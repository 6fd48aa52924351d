package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/jsonimport/internal/logging"
	"github.com/google/uuid"
)

// ImportObserver is notified after every completed import run.
type ImportObserver interface {
	ImportFinished(ctx context.Context, collection string, mode ImportMode, summary ImportSummary, elapsed time.Duration)
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	MaxConcurrent int
	MaxWait       time.Duration

	// SchemaFieldTypes fills in field types the request omits from the
	// collection definition. Off by default: without fieldTypes every mapped
	// value is copied unchanged.
	SchemaFieldTypes bool

	// TouchAfterImport re-saves created and updated documents once the run
	// completes, when the store supports it.
	TouchAfterImport bool

	Observer ImportObserver
}

// Service is the entry point for import operations.
type Service struct {
	registry   *Registry
	store      Store
	reconciler *Reconciler
	limiter    *ImportLimiter
	schemaFT   bool
	touch      bool
	observer   ImportObserver
}

// NewService creates a Service over a collection registry and a store.
func NewService(registry *Registry, store Store, opts ServiceOptions) *Service {
	return &Service{
		registry:   registry,
		store:      store,
		reconciler: NewReconciler(store),
		limiter:    NewImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		schemaFT:   opts.SchemaFieldTypes,
		touch:      opts.TouchAfterImport,
		observer:   opts.Observer,
	}
}

// Registry returns the collection registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Collection returns a registered collection or ErrUnknownCollection.
// Any collection the host knows accepts imports; the plugin's collection
// list only decides which ones are advertised.
func (s *Service) Collection(slug string) (CollectionDefinition, error) {
	def, ok := s.registry.Get(slug)
	if !ok {
		return CollectionDefinition{}, fmt.Errorf("%w: %s", ErrUnknownCollection, slug)
	}
	return def, nil
}

// ValidateRequest checks the request-level parameters.
func ValidateRequest(req ImportRequest) error {
	var missing []string
	if req.CollectionSlug == "" {
		missing = append(missing, "collectionSlug")
	}
	if req.Data == nil {
		missing = append(missing, "data")
	}
	if req.ImportMode == "" {
		missing = append(missing, "importMode")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required parameters: %v", ErrInvalidRequest, missing)
	}
	if !req.ImportMode.Valid() {
		return fmt.Errorf("%w: invalid import mode %q", ErrInvalidRequest, req.ImportMode)
	}
	return nil
}

// Import validates req, reconciles every record against the store and
// returns the per-record results with their summary.
//
// A returned error means no record was processed. Once processing starts
// the response is always returned, even if every record failed.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportResponse, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	def, err := s.Collection(req.CollectionSlug)
	if err != nil {
		return nil, err
	}
	if s.schemaFT {
		req.FieldTypes = mergeFieldTypes(def.FieldTypes(), req.FieldTypes)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	// Once started, the run is not tied to the caller: a dropped connection
	// must not leave a half-applied batch.
	runCtx := context.WithoutCancel(ctx)

	importID := uuid.New().String()
	logger := logging.WithFields(ctx,
		"import_id", importID,
		"collection", req.CollectionSlug,
		"mode", req.ImportMode,
	)
	logger.Info("import started", "records", len(req.Data), "match_field", req.MatchField)

	started := time.Now()
	results := s.reconciler.Reconcile(runCtx, req)
	summary := Summarize(results)

	for i, r := range results {
		if r.Status == StatusError {
			logger.Debug("record failed", "index", i, "field", r.Field, "error", r.Error)
		}
	}

	if s.touch {
		s.touchImported(runCtx, logger, req.CollectionSlug, results)
	}

	elapsed := time.Since(started)
	logger.Info("import completed",
		"created", summary.Created,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
		"duration_ms", elapsed.Milliseconds(),
	)

	if rec, ok := s.store.(AuditRecorder); ok {
		if err := rec.RecordImport(runCtx, newAuditEntry(runCtx, importID, req, summary, started)); err != nil {
			logger.Warn("failed to record import audit entry", "error", err)
		}
	}
	if s.observer != nil {
		s.observer.ImportFinished(runCtx, req.CollectionSlug, req.ImportMode, summary, elapsed)
	}

	return &ImportResponse{
		Message:  "Import process completed",
		ImportID: importID,
		Results:  results,
		Summary:  summary,
	}, nil
}

// touchImported re-saves created and updated documents so host hooks run.
// Failures are logged and never change the results.
func (s *Service) touchImported(ctx context.Context, logger *slog.Logger, collection string, results []ImportResult) {
	toucher, ok := s.store.(Toucher)
	if !ok {
		return
	}
	var ids []string
	for _, r := range results {
		if (r.Status == StatusCreated || r.Status == StatusUpdated) && r.ID != "" {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	if err := toucher.Touch(ctx, collection, ids); err != nil {
		logger.Warn("post-import touch failed", "documents", len(ids), "error", err)
	}
}

// LimiterStatus returns the import limiter state.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// mergeFieldTypes overlays request field types on the schema defaults.
func mergeFieldTypes(schema, request map[string]FieldType) map[string]FieldType {
	merged := make(map[string]FieldType, len(schema)+len(request))
	for k, v := range schema {
		merged[k] = v
	}
	for k, v := range request {
		merged[k] = v
	}
	return merged
}
