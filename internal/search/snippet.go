package search

import (
	"strings"

	"github.com/gcbaptista/go-notes-index/internal/tokenizer"
)

const ellipsis = "…"

// buildSnippet cuts a window of radius words on each side of the word at
// position from text. Positions count words the same way indexing does.
// If position is unknown or past the end of the text (the note changed
// since it was indexed), the window starts at the first word.
// Whitespace runs are collapsed so multi-line notes render on one line.
func buildSnippet(text string, position, radius int) string {
	words := tokenizer.Words(text)
	if len(words) == 0 {
		return ""
	}

	center := position
	if center < 0 || center >= len(words) {
		center = 0
	}
	// Words are dense in position, but search for safety if they are not
	if words[center].Position != position {
		for i, w := range words {
			if w.Position == position {
				center = i
				break
			}
		}
	}

	first := max(center-radius, 0)
	last := min(center+radius, len(words)-1)

	var b strings.Builder
	if first > 0 {
		b.WriteString(ellipsis)
	}
	b.WriteString(strings.Join(strings.Fields(text[words[first].Start:words[last].End]), " "))
	if last < len(words)-1 {
		b.WriteString(ellipsis)
	}
	return b.String()
}
