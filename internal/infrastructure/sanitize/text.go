package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxPasses bounds the decode and strip loop for entity-encoded markup.
const maxPasses = 8

// Text removes every HTML element from free-text input. Values are stored as
// plain text, so entities are decoded, and the decoded text is stripped again
// until nothing changes. Encoded tags like &lt;script&gt; never survive.
type Text struct {
	policy *bluemonday.Policy
}

func NewText() *Text {
	return &Text{policy: bluemonday.StrictPolicy()}
}

func (t *Text) Clean(s string) string {
	out := s
	for i := 0; i < maxPasses; i++ {
		next := html.UnescapeString(t.policy.Sanitize(out))
		if next == out {
			return strings.TrimSpace(out)
		}
		out = next
	}
	// Still changing: keep the escaped form rather than risk live markup.
	return strings.TrimSpace(t.policy.Sanitize(out))
}
