package analyze

import (
	"fmt"
	"strings"
)

const systemPrompt = `You catalog documents from the Herbert Simon papers archive.
Write summaries that are direct: never begin with "This document", "This is a", "This letter", "This paper" or "The document".
Begin with the subject matter or an action verb, for example "Discusses the role of..." or "Requests funding for...".`

const userTemplate = `Analyze this document and provide:

1. summary: a concise 1-2 sentence summary.
2. tags: a JSON array of topics, people, organizations and locations mentioned
   (e.g. "decision making", "Allen Newell", "RAND Corporation", "Pittsburgh").
3. language: the primary language of the document (e.g. "English", "Chinese", "German").

Document metadata:
- Title: %s
- Series: %s
- Type: %s
- Date: %s

Document text (may contain OCR errors):
---
%s
---

Respond only with JSON in this exact shape:
{"summary": "...", "tags": ["tag1", "tag2"], "language": "English"}`

func userPrompt(doc Document) string {
	return fmt.Sprintf(userTemplate,
		orUnknown(doc.Title), orUnknown(doc.Series), orUnknown(doc.ItemType), orUnknown(doc.Date), doc.Text)
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return "Unknown"
	}
	return value
}

var indirectOpeners = []string{"This document ", "This is a ", "This letter ", "This paper ", "The document "}

// tidySummary strips an indirect opener the model produced anyway and
// capitalizes what remains.
func tidySummary(summary string) string {
	summary = strings.TrimSpace(summary)
	for _, opener := range indirectOpeners {
		if len(summary) > len(opener) && strings.EqualFold(summary[:len(opener)], opener) {
			rest := strings.TrimSpace(summary[len(opener):])
			if rest == "" {
				return summary
			}
			return strings.ToUpper(rest[:1]) + rest[1:]
		}
	}
	return summary
}
