package search

import (
	"math"
	"slices"
	"sort"
	"time"

	"github.com/gcbaptista/go-notes-index/index"
)

// candidateHit represents a document candidate during search processing
type candidateHit struct {
	docID         string
	score         float64
	lastIndexedAt time.Time
	matchedTerms  []string
	firstPosition int // Earliest position of any matched term, -1 if unknown
}

// inverseDocumentFrequency returns ln(N / (1 + df)).
// The smoothing makes terms present in nearly every document score below
// zero; they still match, they just rank last.
func inverseDocumentFrequency(totalDocs, docFreq int) float64 {
	if totalDocs == 0 {
		return 0
	}
	return math.Log(float64(totalDocs) / float64(1+docFreq))
}

// collectCandidates returns the documents matching q, scored with TF-IDF:
// the sum over the distinct query terms present in a document of
// termFrequency x idf(term).
func collectCandidates(ii *index.InvertedIndex, q Query) []*candidateHit {
	terms := q.Terms()
	must := q.MustTerms()

	postings := make(map[string]index.PostingList, len(terms))
	for _, term := range terms {
		postings[term] = ii.Lookup(term)
	}

	// A required term without postings rules out every document
	for _, term := range must {
		if len(postings[term]) == 0 {
			return nil
		}
	}

	// Candidate ids: the shortest required list bounds the set, otherwise
	// the union of all lists.
	var ids []string
	if len(must) > 0 {
		shortest := must[0]
		for _, term := range must[1:] {
			if len(postings[term]) < len(postings[shortest]) {
				shortest = term
			}
		}
		for _, p := range postings[shortest] {
			ids = append(ids, p.DocID)
		}
	} else {
		seen := make(map[string]struct{})
		for _, term := range terms {
			for _, p := range postings[term] {
				if _, ok := seen[p.DocID]; !ok {
					seen[p.DocID] = struct{}{}
					ids = append(ids, p.DocID)
				}
			}
		}
	}

	totalDocs := ii.DocumentCount()
	idf := make(map[string]float64, len(terms))
	for _, term := range terms {
		idf[term] = inverseDocumentFrequency(totalDocs, len(postings[term]))
	}

	// Terms are summed in sorted order so float addition is reproducible
	scoringOrder := slices.Clone(terms)
	sort.Strings(scoringOrder)

	candidates := make([]*candidateHit, 0, len(ids))
	for _, id := range ids {
		if !containsAll(postings, must, id) || !matchesPhrases(postings, q.Phrases, id) {
			continue
		}

		hit := &candidateHit{docID: id, firstPosition: -1}
		if doc, ok := ii.Document(id); ok {
			hit.lastIndexedAt = doc.LastIndexedAt
		}
		for _, term := range scoringOrder {
			p, ok := postings[term].Get(id)
			if !ok {
				continue
			}
			hit.score += float64(p.TermFrequency) * idf[term]
			hit.matchedTerms = append(hit.matchedTerms, term)
			if hit.firstPosition < 0 || p.Positions[0] < hit.firstPosition {
				hit.firstPosition = p.Positions[0]
			}
		}
		candidates = append(candidates, hit)
	}
	return candidates
}

func containsAll(postings map[string]index.PostingList, terms []string, docID string) bool {
	for _, term := range terms {
		if _, ok := postings[term].Find(docID); !ok {
			return false
		}
	}
	return true
}

// matchesPhrases reports whether docID contains every phrase at consecutive positions.
func matchesPhrases(postings map[string]index.PostingList, phrases []Phrase, docID string) bool {
	for _, phrase := range phrases {
		if !matchesPhrase(postings, phrase, docID) {
			return false
		}
	}
	return true
}

func matchesPhrase(postings map[string]index.PostingList, phrase Phrase, docID string) bool {
	positions := make([][]int, len(phrase.Terms))
	for i, term := range phrase.Terms {
		p, ok := postings[term].Get(docID)
		if !ok {
			return false
		}
		positions[i] = p.Positions
	}

	for _, start := range positions[0] {
		matched := true
		for i := 1; i < len(positions); i++ {
			if _, ok := slices.BinarySearch(positions[i], start+phrase.Offsets[i]); !ok {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// sortCandidates orders hits by score desc, then most recently indexed
// first, then DocID asc. The order is total, so results are reproducible.
func sortCandidates(hits []*candidateHit) {
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.lastIndexedAt.Equal(b.lastIndexedAt) {
			return a.lastIndexedAt.After(b.lastIndexedAt)
		}
		return a.docID < b.docID
	})
}
