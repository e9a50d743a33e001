package tokenizer

import (
	"reflect"
	"sync"
	"testing"

	"github.com/gcbaptista/go-notes-index/config"
	"github.com/gcbaptista/go-notes-index/model"
)

func terms(tokens []Token) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, tok.Term)
	}
	return out
}

func positions(tokens []Token) []int {
	out := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, tok.Position)
	}
	return out
}

func TestTokenize(t *testing.T) {
	plain := New(Options{})

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", []string{}},
		{"simple lowercase", "hello world", []string{"hello", "world"}},
		{"with punctuation", "hello, world!", []string{"hello", "world"}},
		{"with numbers", "item123 test", []string{"item123", "test"}},
		{"leading/trailing spaces", "  hello world  ", []string{"hello", "world"}},
		{"all caps word", "HELLO WORLD", []string{"hello", "world"}},
		{"string with hyphen", "state-of-the-art", []string{"state", "of", "the", "art"}},
		{"apostrophe stripped", "don't panic", []string{"dont", "panic"}},
		{"only symbols", "!@#$%^", []string{}},
		{"only numbers", "12345 67890", []string{"12345", "67890"}},
		{"unicode case folding", "ÜBER ÉCOLE", []string{"über", "école"}},
		{"compatibility ligature", "ﬁle", []string{"file"}},
		{"newlines and tabs", "first\tsecond\nthird", []string{"first", "second", "third"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := terms(plain.Tokenize(tt.input))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTokenizeCanonicalEquivalence(t *testing.T) {
	plain := New(Options{})
	composed := plain.Tokenize("caf\u00e9")
	decomposed := plain.Tokenize("cafe\u0301")

	if len(composed) != 1 || len(decomposed) != 1 {
		t.Fatalf("expected one token each, got %v and %v", composed, decomposed)
	}
	if composed[0].Term != decomposed[0].Term {
		t.Errorf("composed %q and decomposed %q should normalize to the same term", composed[0].Term, decomposed[0].Term)
	}
}

func TestTokenizePositionsAndOffsets(t *testing.T) {
	text := "The quick, brown fox"
	tokens := New(Options{}).Tokenize(text)

	wantPositions := []int{0, 1, 2, 3}
	if got := positions(tokens); !reflect.DeepEqual(got, wantPositions) {
		t.Fatalf("positions = %v, want %v", got, wantPositions)
	}
	for _, tok := range tokens {
		if got := text[tok.Start:tok.End]; New(Options{}).Tokenize(got)[0].Term != tok.Term {
			t.Errorf("span %q of token %q does not round-trip", got, tok.Term)
		}
	}
	if text[tokens[1].Start:tokens[1].End] != "quick" {
		t.Errorf("expected span 'quick', got %q", text[tokens[1].Start:tokens[1].End])
	}
}

func TestTokenizeStopWords(t *testing.T) {
	tok := New(Options{RemoveStopWords: true})

	got := tok.Tokenize("the quick brown fox is in the garden")
	if want := []string{"quick", "brown", "fox", "garden"}; !reflect.DeepEqual(terms(got), want) {
		t.Errorf("terms = %v, want %v", terms(got), want)
	}
	// Stop words still consume positions
	if want := []int{1, 2, 3, 7}; !reflect.DeepEqual(positions(got), want) {
		t.Errorf("positions = %v, want %v", positions(got), want)
	}

	if all := tok.Tokenize("the and of"); len(all) != 0 {
		t.Errorf("all-stop-word input should yield no tokens, got %v", all)
	}
}

func TestTokenizeCustomStopWords(t *testing.T) {
	tok := New(Options{RemoveStopWords: true, StopWords: []string{"TODO", "fixme"}})

	got := terms(tok.Tokenize("todo: buy the milk FIXME"))
	if want := []string{"buy", "the", "milk"}; !reflect.DeepEqual(got, want) {
		t.Errorf("terms = %v, want %v", got, want)
	}
}

func TestTokenizeStemming(t *testing.T) {
	tok := New(Options{Stemming: true})

	got := terms(tok.Tokenize("running foxes jumped over dogs 2024"))
	want := []string{"run", "fox", "jump", "over", "dog", "2024"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("terms = %v, want %v", got, want)
	}
}

func TestTokenizeIsPure(t *testing.T) {
	tok := New(Options{Stemming: true, RemoveStopWords: true})
	text := "Concurrent readers tokenize the same note text"
	want := tok.Tokenize(text)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := tok.Tokenize(text); !reflect.DeepEqual(got, want) {
				t.Errorf("concurrent Tokenize returned %v, want %v", got, want)
			}
		}()
	}
	wg.Wait()
}

func TestWords(t *testing.T) {
	words := Words("The cats, sleeping.")
	want := []string{"the", "cats", "sleeping"}
	if got := terms(words); !reflect.DeepEqual(got, want) {
		t.Errorf("Words = %v, want %v", got, want)
	}
}

func TestTermStats(t *testing.T) {
	tok := New(Options{})
	got := tok.TermStats("to be or not to be")
	want := []model.TermStat{
		{Term: "to", Frequency: 2, Positions: []int{0, 4}},
		{Term: "be", Frequency: 2, Positions: []int{1, 5}},
		{Term: "or", Frequency: 1, Positions: []int{2}},
		{Term: "not", Frequency: 1, Positions: []int{3}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TermStats = %+v, want %+v", got, want)
	}

	if empty := tok.TermStats("   "); len(empty) != 0 {
		t.Errorf("TermStats of blank text = %v, want empty", empty)
	}
}

func TestFromSettings(t *testing.T) {
	settings := config.Default()
	settings.RemoveStopWords = true

	got := terms(FromSettings(settings).Tokenize("the running dogs"))
	if want := []string{"run", "dog"}; !reflect.DeepEqual(got, want) {
		t.Errorf("terms = %v, want %v", got, want)
	}
}

func TestFingerprint(t *testing.T) {
	base := New(Options{Stemming: true})
	if base.Fingerprint() == 0 {
		t.Fatal("fingerprint must not be zero")
	}
	if got := New(Options{Stemming: true}).Fingerprint(); got != base.Fingerprint() {
		t.Errorf("equal options gave fingerprints %x and %x", got, base.Fingerprint())
	}
	// Stop word order and case do not change the produced terms
	a := New(Options{RemoveStopWords: true, StopWords: []string{"todo", "fixme"}})
	b := New(Options{RemoveStopWords: true, StopWords: []string{"FIXME", "todo"}})
	if a.Fingerprint() != b.Fingerprint() {
		t.Errorf("equivalent stop word lists gave fingerprints %x and %x", a.Fingerprint(), b.Fingerprint())
	}

	differing := map[string]*Tokenizer{
		"no stemming":       New(Options{}),
		"default stopwords": New(Options{Stemming: true, RemoveStopWords: true}),
		"custom stopwords":  New(Options{Stemming: true, RemoveStopWords: true, StopWords: []string{"todo"}}),
	}
	for name, tok := range differing {
		if tok.Fingerprint() == base.Fingerprint() {
			t.Errorf("%s: fingerprint matches the stemming-only tokenizer", name)
		}
	}
	// Ignored stop words do not matter when removal is off
	if got := New(Options{Stemming: true, StopWords: []string{"todo"}}).Fingerprint(); got != base.Fingerprint() {
		t.Errorf("unused stop words changed the fingerprint")
	}
}
