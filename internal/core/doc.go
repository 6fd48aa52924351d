// Package core provides the business logic for JSON import operations.
//
// This package contains all domain logic independent of the HTTP layer and of
// any particular database. It can be used by web handlers or tests without
// modification.
//
// # Architecture
//
//   - Registry: collection definitions registered once at startup by the
//     plugin (see internal/plugin). Every registered collection accepts
//     data; the plugin only decides which ones are advertised.
//   - Service: the entry point. Validates a request, takes an import slot
//     and runs the Reconciler. Schema field types fill in request gaps only
//     when ServiceOptions.SchemaFieldTypes is set.
//   - Reconciler: maps each input record to a Document and performs exactly
//     one persistence action per record through the Store port.
//   - Store: the host persistence collaborator. Adapters live under
//     internal/store.
//
// # Field mapping
//
// Each (input field -> target field) pair is resolved once per request to a
// FieldKind:
//
//	KindPlain              value copied through
//	KindLocalized          {"en": "..", "fr": ".."} or "title.fr" -> title.fr
//	KindRichText           "text" -> root/paragraph/text tree
//	KindLocalizedRichText  per-locale rich-text trees
//
// A field error stops the record with status "error"; no store call is made.
//
// # Modes
//
//	add     create every record
//	update  update the first document whose match field equals the mapped
//	        value, skip records without a match
//	upsert  update on match, create otherwise
//
// Store failures are caught per record and reported with a best-effort field
// name guessed from the error text. No record failure aborts the batch.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with codes by
// [MapError]. Request-level problems are reported with the sentinel errors
// [ErrInvalidRequest], [ErrUnknownCollection] and [ErrTooManyImports].
package core
