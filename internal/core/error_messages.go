package core

// error_messages.go maps technical errors to user-facing messages with a
// short code for support reference.
//
// Codes by category:
//
//	REQ001 - Invalid request body or parameters
//	REQ002 - Request cancelled or timed out
//	COL001 - Collection not found or not enabled for import
//	IMP001 - Too many concurrent imports
//	DB001  - Duplicate value for a unique field
//	DB002  - Referenced document does not exist
//	DB003  - Database unavailable
//	DB004  - Database timeout
//	DB005  - Document not found
//	VAL001 - Document failed validation
//	ERR000 - Anything else
//
// Sentinel errors are checked first with errors.Is; the remaining patterns
// are matched case-insensitively against the error text, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage is the user-facing rendering of an error.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrInvalidRequest, UserMessage{"The import request is invalid", "Check the request body and required parameters", "REQ001"}},
	{ErrUnknownCollection, UserMessage{"Collection not found", "Use one of the available collections", "COL001"}},
	{ErrTooManyImports, UserMessage{"Too many imports are running", "Please wait a moment and try again", "IMP001"}},
	{ErrNotFound, UserMessage{"Document not found", "The document may have been deleted during the import", "DB005"}},
	{context.DeadlineExceeded, UserMessage{"The import timed out", "Split the data into smaller batches", "REQ002"}},
	{context.Canceled, UserMessage{"The request was cancelled", "Please try again", "REQ002"}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{"A document with this value already exists", "Use update or upsert mode, or remove the duplicate", "DB001"}},
	{"unique constraint", UserMessage{"A document with this value already exists", "Use update or upsert mode, or remove the duplicate", "DB001"}},
	{"foreign key", UserMessage{"Referenced document does not exist", "Import the referenced documents first", "DB002"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB003"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB003"}},
	{"database is locked", UserMessage{"Database is busy", "Please try again", "DB003"}},
	{"timeout", UserMessage{"Database operation timed out", "Please try again later", "DB004"}},
	{"validationerror", UserMessage{"The document failed validation", "Check the field named in the result", "VAL001"}},
	{"validation failed", UserMessage{"The document failed validation", "Check the field named in the result", "VAL001"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	text := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(text, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
