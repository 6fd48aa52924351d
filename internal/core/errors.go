package core

import (
	"errors"
	"regexp"
)

var (
	// ErrInvalidRequest marks request-level validation failures (HTTP 400).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnknownCollection is returned when the collection slug is not
	// registered or not enabled for import (HTTP 404).
	ErrUnknownCollection = errors.New("collection not found")

	// ErrNotFound is returned by stores when a document id does not exist.
	ErrNotFound = errors.New("document not found")
)

// FieldError is a record-level mapping failure. It short-circuits the record
// to an error result without any persistence call.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Patterns used to guess the offending field from store error text.
// Ordered from most to least specific; the first capture wins.
var errorFieldPatterns = []*regexp.Regexp{
	regexp.MustCompile(`failed:\s*([A-Za-z_][\w.]*)\s*:`),
	regexp.MustCompile(`(?i)field\s+["'\x60]([\w.]+)["'\x60]`),
	regexp.MustCompile(`ValidationError[^\w]+([A-Za-z_][\w.]*)`),
	regexp.MustCompile(`(?i)column\s+"([\w.]+)"`),
}

// extractErrorField returns a best-effort field name from an error message.
// The result is diagnostic only and may be empty.
func extractErrorField(msg string) string {
	for _, re := range errorFieldPatterns {
		if m := re.FindStringSubmatch(msg); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
