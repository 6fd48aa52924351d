package core

// PreviewResult describes how a pasted data set would be mapped before the
// caller confirms the import.
type PreviewResult struct {
	Collection        string               `json:"collection"`
	Records           int                  `json:"records"`
	InputFields       []string             `json:"inputFields"`
	CollectionFields  []string             `json:"collectionFields"`
	SuggestedMappings map[string]string    `json:"suggestedMappings"`
	MatchField        string               `json:"matchField"`
	FieldTypes        map[string]FieldType `json:"fieldTypes,omitempty"`
}

// Preview suggests a field mapping for records.
// inputFields are the keys of the first record in document order; an input
// field is pre-mapped when the collection declares a field of the same name,
// otherwise it maps to "" (not imported).
func Preview(def CollectionDefinition, records int, inputFields []string) PreviewResult {
	collectionFields := def.FieldNames()
	known := make(map[string]bool, len(collectionFields))
	for _, f := range collectionFields {
		known[f] = true
	}

	suggested := make(map[string]string, len(inputFields))
	for _, in := range inputFields {
		if known[in] {
			suggested[in] = in
		} else {
			suggested[in] = ""
		}
	}

	return PreviewResult{
		Collection:        def.Slug,
		Records:           records,
		InputFields:       inputFields,
		CollectionFields:  collectionFields,
		SuggestedMappings: suggested,
		MatchField:        defaultMatchField(collectionFields),
		FieldTypes:        def.FieldTypes(),
	}
}

// defaultMatchField prefers "id", else the first declared field.
func defaultMatchField(fields []string) string {
	for _, f := range fields {
		if f == "id" {
			return f
		}
	}
	if len(fields) > 0 {
		return fields[0]
	}
	return ""
}
