package core

import (
	"sort"
	"strings"
)

// FieldKind is the normalization strategy for one target field.
type FieldKind int

const (
	KindPlain FieldKind = iota
	KindLocalized
	KindRichText
	KindLocalizedRichText
)

func (k FieldKind) String() string {
	switch k {
	case KindLocalized:
		return "localized"
	case KindRichText:
		return "richText"
	case KindLocalizedRichText:
		return "localizedRichText"
	default:
		return "plain"
	}
}

// KindOf resolves the kind for a field type entry. A missing entry is plain.
func KindOf(ft FieldType, ok bool) FieldKind {
	if !ok {
		return KindPlain
	}
	rich := ft.Type == FieldTypeRichText
	switch {
	case ft.Localized && rich:
		return KindLocalizedRichText
	case ft.Localized:
		return KindLocalized
	case rich:
		return KindRichText
	default:
		return KindPlain
	}
}

// fieldPlan is one resolved (input -> target) mapping entry.
type fieldPlan struct {
	Input  string
	Target string
	Kind   FieldKind

	// Locale is the last segment of a dotted input field ("title.fr" -> "fr",
	// "meta.title.fr" -> "fr"). Empty when the input field has no dot.
	Locale string
}

// planFields resolves mappings and field kinds once per request.
// Entries with an empty target are dropped. Order is deterministic (by input
// field name) so that error reporting does not depend on map iteration.
func planFields(mappings map[string]string, types map[string]FieldType) []fieldPlan {
	inputs := make([]string, 0, len(mappings))
	for in, target := range mappings {
		if target == "" {
			continue
		}
		inputs = append(inputs, in)
	}
	sort.Strings(inputs)

	plans := make([]fieldPlan, 0, len(inputs))
	for _, in := range inputs {
		target := mappings[in]
		ft, ok := types[target]
		p := fieldPlan{Input: in, Target: target, Kind: KindOf(ft, ok)}
		if i := strings.LastIndex(in, "."); i >= 0 {
			p.Locale = in[i+1:]
		}
		plans = append(plans, p)
	}
	return plans
}
