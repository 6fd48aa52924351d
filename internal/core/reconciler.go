package core

import (
	"context"
	"fmt"
)

// Reconciler maps input records to documents and applies them to a Store,
// one record at a time.
type Reconciler struct {
	store Store
}

// NewReconciler creates a Reconciler writing through store.
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile processes every record of req in order and returns exactly one
// result per record. Record failures never abort the run.
func (r *Reconciler) Reconcile(ctx context.Context, req ImportRequest) []ImportResult {
	plans := planFields(req.FieldMappings, req.FieldTypes)

	results := make([]ImportResult, 0, len(req.Data))
	for _, record := range req.Data {
		results = append(results, r.reconcileRecord(ctx, req, plans, record))
	}
	return results
}

func (r *Reconciler) reconcileRecord(ctx context.Context, req ImportRequest, plans []fieldPlan, record map[string]any) ImportResult {
	doc, ferr := mapRecord(record, plans)
	if ferr != nil {
		return ImportResult{
			Status: StatusError,
			Field:  ferr.Field,
			Error:  ferr.Message,
			Data:   record,
		}
	}

	switch req.ImportMode {
	case ModeAdd:
		return r.create(ctx, req.CollectionSlug, doc, record)
	case ModeUpdate, ModeUpsert:
		return r.match(ctx, req, doc, record)
	default:
		return ImportResult{
			Status: StatusError,
			Error:  fmt.Sprintf("unsupported import mode %q", req.ImportMode),
			Data:   record,
		}
	}
}

func (r *Reconciler) match(ctx context.Context, req ImportRequest, doc Document, record map[string]any) ImportResult {
	if req.MatchField == "" {
		return ImportResult{
			Status: StatusError,
			Error:  "Match field is required for update/upsert mode",
			Data:   record,
		}
	}

	value, ok := doc[req.MatchField]
	if !ok {
		return ImportResult{
			Status: StatusError,
			Field:  req.MatchField,
			Error:  fmt.Sprintf("Match field is required: %q is not mapped or has no value in this record", req.MatchField),
			Data:   record,
		}
	}

	found, err := r.store.FindEquals(ctx, req.CollectionSlug, req.MatchField, value)
	if err != nil {
		return operationError("lookup", err, record)
	}

	if len(found.Docs) > 0 {
		updated, err := r.store.UpdateOne(ctx, req.CollectionSlug, found.Docs[0].ID, doc)
		if err != nil {
			return operationError("update", err, record)
		}
		return ImportResult{Status: StatusUpdated, ID: updated.ID}
	}

	if req.ImportMode == ModeUpsert {
		return r.create(ctx, req.CollectionSlug, doc, record)
	}

	return ImportResult{
		Status:  StatusSkipped,
		Field:   req.MatchField,
		Error:   "Document not found for update",
		Details: fmt.Sprintf("no document where %s equals %v", req.MatchField, value),
		Data:    map[string]any{req.MatchField: value},
	}
}

func (r *Reconciler) create(ctx context.Context, collection string, doc Document, record map[string]any) ImportResult {
	created, err := r.store.Create(ctx, collection, doc)
	if err != nil {
		return operationError("create", err, record)
	}
	return ImportResult{Status: StatusCreated, ID: created.ID}
}

// operationError converts a store failure into a record result.
func operationError(op string, err error, record map[string]any) ImportResult {
	msg := err.Error()
	return ImportResult{
		Status:  StatusError,
		Field:   extractErrorField(msg),
		Error:   msg,
		Details: op + " failed: " + MapError(err).Message,
		Data:    record,
	}
}
