package core

// RichTextNode is one node of the host's rich-text editor state.
// Field order and zero values match what the editor serializes so that
// imported documents compare equal to documents saved from the admin UI.
type RichTextNode struct {
	Type       string         `json:"type"`
	Format     any            `json:"format"`
	Indent     int            `json:"indent"`
	Version    int            `json:"version"`
	Direction  string         `json:"direction,omitempty"`
	TextFormat *int           `json:"textFormat,omitempty"`
	Children   []RichTextNode `json:"children,omitempty"`

	// Leaf-only fields.
	Text   *string `json:"text,omitempty"`
	Detail *int    `json:"detail,omitempty"`
	Mode   string  `json:"mode,omitempty"`
	Style  *string `json:"style,omitempty"`
}

// RichTextRoot is the top-level value stored in a rich-text field.
type RichTextRoot struct {
	Root RichTextNode `json:"root"`
}

// NewRichText wraps a plain string in a root -> paragraph -> text tree.
func NewRichText(text string) RichTextRoot {
	zero := 0
	empty := ""
	leaf := RichTextNode{
		Type:    "text",
		Format:  0,
		Version: 1,
		Text:    &text,
		Detail:  &zero,
		Mode:    "normal",
		Style:   &empty,
	}
	paragraph := RichTextNode{
		Type:       "paragraph",
		Format:     "",
		Version:    1,
		Direction:  "ltr",
		TextFormat: &zero,
		Children:   []RichTextNode{leaf},
	}
	return RichTextRoot{Root: RichTextNode{
		Type:      "root",
		Format:    "",
		Version:   1,
		Direction: "ltr",
		Children:  []RichTextNode{paragraph},
	}}
}
