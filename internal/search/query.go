package search

import (
	"strings"
	"unicode"

	"github.com/samber/lo"

	indexerrors "github.com/gcbaptista/go-notes-index/internal/errors"
	"github.com/gcbaptista/go-notes-index/internal/tokenizer"
)

// Query is a parsed query string.
//
//	word        optional term (OR)
//	+word       required term (AND)
//	"w1 w2"     required phrase, terms at consecutive word positions
//	+"w1 w2"    same as a bare phrase
//
// Every word goes through the index tokenizer, so a single query word may
// yield several terms ("state-of-the-art") or none (a stop word).
type Query struct {
	Optional []string // Distinct terms, in query order
	Required []string // Distinct terms, in query order
	Phrases  []Phrase
}

// Phrase is a sequence of terms that must appear at fixed relative
// positions. Offsets[i] is the word distance of Terms[i] from Terms[0];
// stop words removed from the phrase keep their gap.
type Phrase struct {
	Terms   []string
	Offsets []int
}

// Terms returns every distinct term of the query in first-seen order.
func (q Query) Terms() []string {
	all := make([]string, 0, len(q.Optional)+len(q.Required))
	all = append(all, q.Required...)
	for _, p := range q.Phrases {
		all = append(all, p.Terms...)
	}
	all = append(all, q.Optional...)
	return lo.Uniq(all)
}

// MustTerms returns the distinct terms every candidate has to contain.
func (q Query) MustTerms() []string {
	must := append([]string(nil), q.Required...)
	for _, p := range q.Phrases {
		must = append(must, p.Terms...)
	}
	return lo.Uniq(must)
}

// IsEmpty reports whether the query has no searchable term.
func (q Query) IsEmpty() bool {
	return len(q.Optional) == 0 && len(q.Required) == 0 && len(q.Phrases) == 0
}

// ParseQuery parses raw with the syntax described on Query.
// maxTerms limits the number of terms after tokenization; 0 means no limit.
func ParseQuery(tok *tokenizer.Tokenizer, raw string, maxTerms int) (Query, error) {
	var q Query
	runes := []rune(raw)
	count := 0

	addTerms := func(dst *[]string, tokens []tokenizer.Token) {
		for _, t := range tokens {
			count++
			if !lo.Contains(*dst, t.Term) {
				*dst = append(*dst, t.Term)
			}
		}
	}

	for i := 0; i < len(runes); {
		r := runes[i]
		if unicode.IsSpace(r) {
			i++
			continue
		}

		required := false
		if r == '+' {
			required = true
			i++
			if i >= len(runes) || unicode.IsSpace(runes[i]) {
				return Query{}, indexerrors.NewValidationError("query", "'+' must be followed by a word or a phrase")
			}
			r = runes[i]
		}

		if r == '"' {
			end := i + 1
			for end < len(runes) && runes[end] != '"' {
				end++
			}
			if end >= len(runes) {
				return Query{}, indexerrors.NewValidationError("query", "unterminated quoted phrase")
			}
			tokens := tok.Tokenize(string(runes[i+1 : end]))
			i = end + 1
			if len(tokens) == 0 {
				return Query{}, indexerrors.NewValidationError("query", "empty phrase")
			}
			if len(tokens) == 1 {
				addTerms(&q.Required, tokens)
				continue
			}
			count += len(tokens)
			phrase := Phrase{Terms: make([]string, len(tokens)), Offsets: make([]int, len(tokens))}
			for j, t := range tokens {
				phrase.Terms[j] = t.Term
				phrase.Offsets[j] = t.Position - tokens[0].Position
			}
			q.Phrases = append(q.Phrases, phrase)
			continue
		}

		end := i
		for end < len(runes) && !unicode.IsSpace(runes[end]) && runes[end] != '"' {
			end++
		}
		tokens := tok.Tokenize(string(runes[i:end]))
		i = end
		if required {
			addTerms(&q.Required, tokens)
		} else {
			addTerms(&q.Optional, tokens)
		}
	}

	if maxTerms > 0 && count > maxTerms {
		return Query{}, indexerrors.NewValidationError("query", "too many terms")
	}

	// A term that is also required does not need to stay optional
	must := q.MustTerms()
	q.Optional = lo.Filter(q.Optional, func(term string, _ int) bool {
		return !lo.Contains(must, term)
	})
	return q, nil
}

// String renders the query in its canonical syntax. Used in logs.
func (q Query) String() string {
	parts := make([]string, 0, len(q.Optional)+len(q.Required)+len(q.Phrases))
	for _, term := range q.Required {
		parts = append(parts, "+"+term)
	}
	for _, p := range q.Phrases {
		parts = append(parts, `"`+strings.Join(p.Terms, " ")+`"`)
	}
	parts = append(parts, q.Optional...)
	return strings.Join(parts, " ")
}
