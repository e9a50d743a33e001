// Package tokenizer turns note text into normalized, positioned terms.
// The same Tokenizer must be used for indexing and for querying.
package tokenizer

import (
	"slices"
	"strings"
	"unicode"

	"github.com/blevesearch/segment"
	"github.com/cespare/xxhash/v2"
	"github.com/kljensen/snowball/english"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/gcbaptista/go-notes-index/config"
	"github.com/gcbaptista/go-notes-index/model"
)

// englishStopWords is used when stop word removal is enabled and no custom list is configured.
var englishStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "can", "do",
	"for", "from", "had", "has", "have", "he", "if", "in", "is", "it", "its",
	"no", "not", "of", "on", "or", "so", "that", "the", "their", "they",
	"this", "to", "was", "were", "what", "when", "where", "which", "who",
	"will", "with",
}

// Token is a single normalized term, its word position, and the byte span
// [Start, End) of the word in the original text.
type Token struct {
	Term     string
	Position int
	Start    int
	End      int
}

// Options controls the optional stages of the pipeline.
type Options struct {
	Stemming        bool
	RemoveStopWords bool
	StopWords       []string // nil or empty means the built-in English list
}

// Tokenizer is immutable after construction and safe for concurrent use.
type Tokenizer struct {
	stemming    bool
	stopWords   map[string]struct{} // nil when stop words are kept
	fingerprint uint64
}

// New creates a Tokenizer with the given options.
func New(opts Options) *Tokenizer {
	t := &Tokenizer{stemming: opts.Stemming}
	if opts.RemoveStopWords {
		words := opts.StopWords
		if len(words) == 0 {
			words = englishStopWords
		}
		t.stopWords = make(map[string]struct{}, len(words))
		for _, w := range words {
			if n := normalizeWord(cases.Fold(), w); n != "" {
				t.stopWords[n] = struct{}{}
			}
		}
	}
	t.fingerprint = t.computeFingerprint()
	return t
}

// Fingerprint identifies the terms this Tokenizer produces. Two tokenizers
// with the same fingerprint turn any text into the same terms, so an index
// built by one can be queried with the other. It is never zero.
func (t *Tokenizer) Fingerprint() uint64 {
	return t.fingerprint
}

func (t *Tokenizer) computeFingerprint() uint64 {
	h := xxhash.New()
	_, _ = h.WriteString("tokenizer/1")
	if t.stemming {
		_, _ = h.WriteString("|stem")
	}
	if t.stopWords != nil {
		words := make([]string, 0, len(t.stopWords))
		for w := range t.stopWords {
			words = append(words, w)
		}
		slices.Sort(words)
		_, _ = h.WriteString("|stop")
		for _, w := range words {
			_, _ = h.WriteString("\x00" + w)
		}
	}
	if sum := h.Sum64(); sum != 0 {
		return sum
	}
	return 1
}

// FromSettings builds the Tokenizer described by index settings.
func FromSettings(settings config.IndexSettings) *Tokenizer {
	return New(Options{
		Stemming:        settings.Stemming,
		RemoveStopWords: settings.RemoveStopWords,
		StopWords:       settings.StopWords,
	})
}

// Tokenize converts text into an ordered slice of tokens.
// Punctuation is dropped, every remaining word consumes one position (stop
// words included) and stop words are then filtered out if configured.
func (t *Tokenizer) Tokenize(text string) []Token {
	tokens := make([]Token, 0) // Initialize as empty slice, not nil
	scanWords(text, func(word string, position, start, end int) {
		if _, stop := t.stopWords[word]; stop {
			return
		}
		tokens = append(tokens, Token{
			Term:     t.stem(word),
			Position: position,
			Start:    start,
			End:      end,
		})
	})
	return tokens
}

// Words returns every positioned word of text, stop words included and
// without stemming. Snippet construction uses it to map positions to bytes.
func Words(text string) []Token {
	words := make([]Token, 0)
	scanWords(text, func(word string, position, start, end int) {
		words = append(words, Token{Term: word, Position: position, Start: start, End: end})
	})
	return words
}

// TermStats aggregates the tokens of text per term, ordered by first occurrence.
func (t *Tokenizer) TermStats(text string) []model.TermStat {
	tokens := t.Tokenize(text)
	stats := make([]model.TermStat, 0)
	indexOf := make(map[string]int)
	for _, tok := range tokens {
		i, seen := indexOf[tok.Term]
		if !seen {
			i = len(stats)
			indexOf[tok.Term] = i
			stats = append(stats, model.TermStat{Term: tok.Term})
		}
		stats[i].Frequency++
		stats[i].Positions = append(stats[i].Positions, tok.Position)
	}
	return stats
}

func (t *Tokenizer) stem(word string) string {
	if !t.stemming || !hasLetter(word) {
		return word
	}
	if stemmed := english.Stem(word, false); stemmed != "" {
		return stemmed
	}
	return word
}

// scanWords splits text on Unicode word boundaries and calls fn for every
// word that survives normalization.
func scanWords(text string, fn func(word string, position, start, end int)) {
	folder := cases.Fold()
	segmenter := segment.NewWordSegmenterDirect([]byte(text))
	position := 0
	start := 0
	for segmenter.Segment() {
		end := start + len(segmenter.Bytes())
		if segmenter.Type() != segment.None {
			if word := normalizeWord(folder, text[start:end]); word != "" {
				fn(word, position, start, end)
				position++
			}
		}
		start = end
	}
	// segmenter.Err() only reports reader failures; a byte slice input cannot fail.
}

// normalizeWord applies NFKC, case folding and strips everything that is not
// a letter, mark or number.
func normalizeWord(folder cases.Caser, word string) string {
	word = folder.String(norm.NFKC.String(word))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsNumber(r) {
			return r
		}
		return -1
	}, word)
}

func hasLetter(word string) bool {
	for _, r := range word {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
