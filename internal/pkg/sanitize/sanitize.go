/*
Package sanitize strips markup from the free-text fields users store in documents.

Notes, events, file descriptions and flashcards are plain text. Anything that looks
like HTML is removed before it is persisted so no client ever renders stored markup.
*/
package sanitize

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// TextFields are the document fields treated as free text.
var TextFields = []string{"title", "description", "content", "text", "name", "question", "answer", "userName", "schoolName", "className"}

// Sanitizer removes all markup from text. It is safe for concurrent use.
type Sanitizer struct {
	policy *bluemonday.Policy
}

func New() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Text returns s without any HTML elements. Entities escaped by the policy are turned
// back into plain characters.
func (s *Sanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	return html.UnescapeString(s.policy.Sanitize(raw))
}

// Document sanitises every string-valued TextFields entry of data in place.
func (s *Sanitizer) Document(data map[string]any) {
	for _, field := range TextFields {
		if v, ok := data[field].(string); ok {
			data[field] = s.Text(v)
		}
	}
}
