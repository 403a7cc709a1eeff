package ai

import (
	"strings"

	"docjson/internal/config"
)

const fixedSchemaInstructions = `The JSON object MUST have exactly these top-level keys:
- "document_type": short label such as "invoice", "receipt", "resume", "letter"
- "entities": array of named entities (people, organizations, places, dates, amounts)
- "key_value_pairs": object mapping field names found in the document to their values
- "confidence_score": number between 0 and 1 expressing how confident you are
`

// BuildPrompt renders the instruction prompt around text, which is cut to
// at most maxChars runes first.
func BuildPrompt(text, schemaMode string, maxChars int) string {
	var b strings.Builder
	b.WriteString("Convert the following document text into clean JSON.\n")
	b.WriteString("Return ONLY valid JSON. No explanation.\n")
	if schemaMode == config.SchemaModeFixed {
		b.WriteString("\n")
		b.WriteString(fixedSchemaInstructions)
	}
	b.WriteString("\nTEXT:\n")
	b.WriteString(TruncateRunes(text, maxChars))
	b.WriteString("\n")
	return b.String()
}

// TruncateRunes returns at most n runes of s. n <= 0 returns s unchanged.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
