package modules

import (
	"encoding/json"
	"fmt"
	"strings"
)

// schemaReminder closes every user instruction.
const schemaReminder = "Respond with a single JSON object that follows the schema in the system instruction. " +
	"Include a \"confidence\" field (high, medium or low) and a \"warnings\" array of strings. Do not wrap the JSON in prose."

// promptBuilder renders the user instruction for one call. Blank values are
// omitted so the instruction only carries context the caller supplied.
type promptBuilder struct {
	b strings.Builder
}

func newPrompt(task string) *promptBuilder {
	p := &promptBuilder{}
	p.b.WriteString(task)
	p.b.WriteString("\n")
	return p
}

func (p *promptBuilder) field(label string, value any) {
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return
		}
		fmt.Fprintf(&p.b, "\n%s: %s", label, strings.TrimSpace(v))
	case []string:
		if len(v) == 0 {
			return
		}
		fmt.Fprintf(&p.b, "\n%s: %s", label, strings.Join(v, ", "))
	default:
		fmt.Fprintf(&p.b, "\n%s: %v", label, v)
	}
}

// data appends v as an indented JSON block.
func (p *promptBuilder) data(label string, v any) {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		encoded = []byte(fmt.Sprintf("%v", v))
	}
	fmt.Fprintf(&p.b, "\n%s:\n%s", label, encoded)
}

func (p *promptBuilder) String() string {
	return p.b.String() + "\n\n" + schemaReminder
}
