package core

import (
	"fmt"
	"sort"
)

// mapRecord applies the field plan to one input record.
// The first field error aborts the record; the partially built document is
// discarded by the caller.
func mapRecord(record map[string]any, plans []fieldPlan) (Document, *FieldError) {
	doc := make(Document, len(plans))
	for _, p := range plans {
		v, ok := record[p.Input]
		if !ok {
			continue
		}

		var ferr *FieldError
		switch p.Kind {
		case KindLocalized:
			ferr = mapLocalized(doc, p, v)
		case KindRichText, KindLocalizedRichText:
			ferr = mapRichText(doc, p, v)
		default:
			doc[p.Target] = v
		}
		if ferr != nil {
			return nil, ferr
		}
	}
	return doc, nil
}

func mapLocalized(doc Document, p fieldPlan, v any) *FieldError {
	if p.Locale != "" {
		if !isScalar(v) {
			return &FieldError{
				Field:   p.Target + "." + p.Locale,
				Message: fmt.Sprintf("value for locale %q must be a scalar, got %s", p.Locale, jsonKind(v)),
			}
		}
		localeMap(doc, p.Target)[p.Locale] = v
		return nil
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return &FieldError{
			Field:   p.Target,
			Message: fmt.Sprintf("localized field requires an object keyed by locale or a dotted-locale key such as %q", p.Target+".en"),
		}
	}

	values, ferr := localeStrings(p.Target, obj)
	if ferr != nil {
		return ferr
	}
	m := localeMap(doc, p.Target)
	for locale, s := range values {
		m[locale] = s
	}
	return nil
}

func mapRichText(doc Document, p fieldPlan, v any) *FieldError {
	switch val := v.(type) {
	case string:
		if p.Locale != "" {
			localeMap(doc, p.Target)[p.Locale] = NewRichText(val)
			return nil
		}
		if p.Kind == KindLocalizedRichText {
			return &FieldError{
				Field:   p.Target,
				Message: fmt.Sprintf("localized rich text requires an object keyed by locale or a dotted-locale key such as %q", p.Target+".en"),
			}
		}
		doc[p.Target] = NewRichText(val)
		return nil

	case map[string]any:
		if p.Locale != "" {
			break
		}
		values, ferr := localeStrings(p.Target, val)
		if ferr != nil {
			return ferr
		}
		m := localeMap(doc, p.Target)
		for locale, s := range values {
			m[locale] = NewRichText(s)
		}
		return nil
	}

	field := p.Target
	if p.Locale != "" {
		field += "." + p.Locale
	}
	return &FieldError{
		Field:   field,
		Message: fmt.Sprintf("rich text field expects a string or an object of strings keyed by locale, got %s", jsonKind(v)),
	}
}

// isScalar reports whether v is a JSON string, number, boolean or null.
func isScalar(v any) bool {
	switch v.(type) {
	case []any, map[string]any:
		return false
	}
	return true
}

// localeStrings validates that every value of a locale object is a string.
// Locales are checked in sorted order so the reported field is stable.
func localeStrings(target string, obj map[string]any) (map[string]string, *FieldError) {
	locales := make([]string, 0, len(obj))
	for locale := range obj {
		locales = append(locales, locale)
	}
	sort.Strings(locales)

	out := make(map[string]string, len(obj))
	for _, locale := range locales {
		s, ok := obj[locale].(string)
		if !ok {
			return nil, &FieldError{
				Field:   target + "." + locale,
				Message: fmt.Sprintf("value for locale %q must be a string, got %s", locale, jsonKind(obj[locale])),
			}
		}
		out[locale] = s
	}
	return out, nil
}

// localeMap returns the locale map stored at doc[field], creating it (or
// replacing a non-map value) when needed.
func localeMap(doc Document, field string) map[string]any {
	if m, ok := doc[field].(map[string]any); ok {
		return m
	}
	m := make(map[string]any)
	doc[field] = m
	return m
}

// jsonKind names the JSON type of a decoded value for error messages.
func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
