package module

import (
	"fmt"
	"strings"
)

// Doc composes the formatted text of an Output. Empty sections are skipped,
// so a fully defaulted structured record renders as a short document rather
// than a page of empty headings.
type Doc struct {
	b strings.Builder
}

func (d *Doc) gap() {
	if d.b.Len() > 0 {
		d.b.WriteString("\n")
	}
}

// Title writes a level-one heading.
func (d *Doc) Title(title string) {
	d.gap()
	d.b.WriteString("# " + title + "\n")
}

// Section writes a heading followed by text. Nothing is written when text is blank.
func (d *Doc) Section(heading, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	d.gap()
	d.b.WriteString("## " + heading + "\n")
	d.b.WriteString(strings.TrimSpace(text) + "\n")
}

// Paragraph writes text on its own. Nothing is written when text is blank.
func (d *Doc) Paragraph(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	d.gap()
	d.b.WriteString(strings.TrimSpace(text) + "\n")
}

// List writes a heading and one bullet per non-blank item.
func (d *Doc) List(heading string, items []string) {
	var kept []string
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			kept = append(kept, strings.TrimSpace(item))
		}
	}
	if len(kept) == 0 {
		return
	}
	d.gap()
	d.b.WriteString("## " + heading + "\n")
	for _, item := range kept {
		d.b.WriteString("- " + item + "\n")
	}
}

// Numbered writes a heading and a numbered list.
func (d *Doc) Numbered(heading string, items []string) {
	if len(items) == 0 {
		return
	}
	d.gap()
	d.b.WriteString("## " + heading + "\n")
	for i, item := range items {
		fmt.Fprintf(&d.b, "%d. %s\n", i+1, strings.TrimSpace(item))
	}
}

// Field writes a "label: value" line. Nothing is written when value is blank.
func (d *Doc) Field(label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(&d.b, "**%s:** %s\n", label, strings.TrimSpace(value))
}

// String returns the composed text without a trailing newline.
func (d *Doc) String() string {
	return strings.TrimRight(d.b.String(), "\n")
}

// Labeled joins a label and detail as "label: detail", dropping whichever is empty.
func Labeled(label, detail string) string {
	label, detail = strings.TrimSpace(label), strings.TrimSpace(detail)
	switch {
	case label == "":
		return detail
	case detail == "":
		return label
	default:
		return label + ": " + detail
	}
}

// WithWarnings appends a warnings block to formatted text.
func WithWarnings(formatted string, warnings []string) string {
	if len(warnings) == 0 {
		return formatted
	}
	var d Doc
	d.Paragraph(formatted)
	d.List("Warnings", warnings)
	return d.String()
}
