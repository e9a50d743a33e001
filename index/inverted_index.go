package index

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/gcbaptista/go-notes-index/model"
)

// InvertedIndex maps a term to the postings of the documents containing it,
// and keeps a reverse map from each document to the terms it contributes so
// a document can be removed without scanning the whole index.
//
// An InvertedIndex is not safe for concurrent mutation. Published indexes are
// treated as immutable: writers call Clone and mutate the clone. A clone
// shares posting lists with its parent and copies a list the first time it
// touches it.
type InvertedIndex struct {
	postings map[string]PostingList
	reverse  map[string][]string // DocID -> sorted distinct terms; an entry exists for every document
	docs     map[string]Document

	totalTermOccurrences int

	// owned holds the terms whose posting list backing array belongs to this
	// index alone and may be modified in place.
	owned map[string]struct{}
}

// New creates an empty InvertedIndex.
func New() *InvertedIndex {
	return &InvertedIndex{
		postings: make(map[string]PostingList),
		reverse:  make(map[string][]string),
		docs:     make(map[string]Document),
	}
}

// Clone returns a copy-on-write child of the index. After Clone the parent
// no longer owns any posting list, so a stray mutation of the parent copies
// instead of writing into storage shared with the child.
func (ii *InvertedIndex) Clone() *InvertedIndex {
	ii.owned = nil
	return &InvertedIndex{
		postings:             maps.Clone(ii.postings),
		reverse:              maps.Clone(ii.reverse),
		docs:                 maps.Clone(ii.docs),
		totalTermOccurrences: ii.totalTermOccurrences,
	}
}

// Lookup returns the posting list for term, or nil if the term is not indexed.
func (ii *InvertedIndex) Lookup(term string) PostingList {
	return ii.postings[term]
}

// DocumentFrequency returns the number of documents containing term.
func (ii *InvertedIndex) DocumentFrequency(term string) int {
	return len(ii.postings[term])
}

// Document returns the metadata of docID.
func (ii *InvertedIndex) Document(docID string) (Document, bool) {
	doc, ok := ii.docs[docID]
	return doc, ok
}

// TermsOf returns the sorted distinct terms docID contributes. The slice must not be modified.
func (ii *InvertedIndex) TermsOf(docID string) []string {
	return ii.reverse[docID]
}

// DocumentCount returns the number of registered documents, including documents without terms.
func (ii *InvertedIndex) DocumentCount() int {
	return len(ii.docs)
}

// TermCount returns the number of distinct terms.
func (ii *InvertedIndex) TermCount() int {
	return len(ii.postings)
}

// TotalTermOccurrences returns the sum of all term frequencies.
func (ii *InvertedIndex) TotalTermOccurrences() int {
	return ii.totalTermOccurrences
}

// Terms returns all indexed terms in ascending order.
func (ii *InvertedIndex) Terms() []string {
	terms := make([]string, 0, len(ii.postings))
	for term := range ii.postings {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// DocumentIDs returns all registered document IDs in ascending order.
func (ii *InvertedIndex) DocumentIDs() []string {
	ids := make([]string, 0, len(ii.docs))
	for id := range ii.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Documents returns the metadata of all documents ordered by DocID.
func (ii *InvertedIndex) Documents() []Document {
	out := make([]Document, 0, len(ii.docs))
	for _, id := range ii.DocumentIDs() {
		out = append(out, ii.docs[id])
	}
	return out
}

// PutDocument registers docID or replaces its metadata without touching its postings.
// TermCount is always derived from the reverse map.
func (ii *InvertedIndex) PutDocument(doc Document) {
	if _, ok := ii.reverse[doc.DocID]; !ok {
		ii.reverse[doc.DocID] = nil
	}
	doc.TermCount = len(ii.reverse[doc.DocID])
	ii.docs[doc.DocID] = doc
}

// Insert records one occurrence of term at position in docID.
// Unknown documents are registered with empty metadata. Inserting an
// occurrence that is already recorded is a no-op.
func (ii *InvertedIndex) Insert(docID, term string, position int) {
	if _, ok := ii.docs[docID]; !ok {
		ii.PutDocument(Document{DocID: docID})
	}

	pl := ii.writableList(term)
	i, found := pl.Find(docID)
	if found {
		p := pl[i]
		at, exists := slices.BinarySearch(p.Positions, position)
		if exists {
			return
		}
		p.Positions = slices.Insert(slices.Clone(p.Positions), at, position)
		p.TermFrequency = len(p.Positions)
		pl[i] = p
	} else {
		pl = slices.Insert(pl, i, Posting{DocID: docID, TermFrequency: 1, Positions: []int{position}})
		ii.addReverse(docID, term)
	}
	ii.postings[term] = pl
	ii.totalTermOccurrences++
}

// AddDocument indexes doc with the given term statistics, replacing any
// previous postings of the same DocID. Stats with zero frequency are ignored.
func (ii *InvertedIndex) AddDocument(doc Document, stats []model.TermStat) {
	ii.RemoveDocument(doc.DocID)

	terms := make([]string, 0, len(stats))
	for _, stat := range stats {
		if stat.Frequency <= 0 || len(stat.Positions) == 0 {
			continue
		}
		positions := slices.Clone(stat.Positions)
		slices.Sort(positions)
		positions = slices.Compact(positions)

		pl := ii.writableList(stat.Term)
		i, found := pl.Find(doc.DocID)
		if found {
			// the same term listed twice: merge the occurrences
			merged := append(slices.Clone(pl[i].Positions), positions...)
			slices.Sort(merged)
			merged = slices.Compact(merged)
			ii.totalTermOccurrences += len(merged) - pl[i].TermFrequency
			pl[i] = Posting{DocID: doc.DocID, TermFrequency: len(merged), Positions: merged}
			continue
		}
		pl = slices.Insert(pl, i, Posting{DocID: doc.DocID, TermFrequency: len(positions), Positions: positions})
		ii.postings[stat.Term] = pl
		ii.totalTermOccurrences += len(positions)
		terms = append(terms, stat.Term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		terms = nil
	}

	ii.reverse[doc.DocID] = terms
	doc.TermCount = len(ii.reverse[doc.DocID])
	ii.docs[doc.DocID] = doc
}

// RemoveDocument deletes docID's postings, reverse map entry and metadata.
// It only visits the terms listed in the reverse map. Returns false if the
// document was not registered.
func (ii *InvertedIndex) RemoveDocument(docID string) bool {
	terms, known := ii.reverse[docID]
	if !known {
		if _, ok := ii.docs[docID]; !ok {
			return false
		}
	}

	for _, term := range terms {
		pl := ii.writableList(term)
		i, found := pl.Find(docID)
		if !found {
			continue
		}
		ii.totalTermOccurrences -= pl[i].TermFrequency
		pl = slices.Delete(pl, i, i+1)
		if len(pl) == 0 {
			delete(ii.postings, term)
			delete(ii.owned, term)
			continue
		}
		ii.postings[term] = pl
	}

	delete(ii.reverse, docID)
	delete(ii.docs, docID)
	return true
}

// Clear removes every document and term.
func (ii *InvertedIndex) Clear() {
	ii.postings = make(map[string]PostingList)
	ii.reverse = make(map[string][]string)
	ii.docs = make(map[string]Document)
	ii.totalTermOccurrences = 0
	ii.owned = nil
}

// writableList returns a posting list for term that this index may modify in place.
func (ii *InvertedIndex) writableList(term string) PostingList {
	if ii.owned == nil {
		ii.owned = make(map[string]struct{})
	}
	if _, ok := ii.owned[term]; ok {
		return ii.postings[term]
	}
	pl := slices.Clone(ii.postings[term])
	if pl != nil {
		ii.postings[term] = pl
	}
	ii.owned[term] = struct{}{}
	return pl
}

func (ii *InvertedIndex) addReverse(docID, term string) {
	terms := ii.reverse[docID]
	at, exists := slices.BinarySearch(terms, term)
	if exists {
		return
	}
	ii.reverse[docID] = slices.Insert(slices.Clone(terms), at, term)
	doc := ii.docs[docID]
	doc.TermCount = len(ii.reverse[docID])
	ii.docs[docID] = doc
}

// Build assembles an index from decoded documents and posting lists,
// derives the reverse map and totals, and verifies every invariant.
func Build(docs []Document, postings map[string]PostingList) (*InvertedIndex, error) {
	ii := New()
	for _, doc := range docs {
		if _, dup := ii.docs[doc.DocID]; dup {
			return nil, fmt.Errorf("duplicate document %q", doc.DocID)
		}
		ii.docs[doc.DocID] = doc
		ii.reverse[doc.DocID] = nil
	}

	terms := make([]string, 0, len(postings))
	for term := range postings {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	for _, term := range terms {
		pl := postings[term]
		ii.postings[term] = pl
		for _, p := range pl {
			if _, ok := ii.docs[p.DocID]; !ok {
				return nil, fmt.Errorf("term %q references unknown document %q", term, p.DocID)
			}
			// terms are visited in order, so each reverse slice stays sorted
			ii.reverse[p.DocID] = append(ii.reverse[p.DocID], term)
			ii.totalTermOccurrences += p.TermFrequency
		}
	}

	if err := ii.Check(); err != nil {
		return nil, err
	}
	return ii, nil
}

// Check verifies the structural invariants of the index: sorted posting
// lists, positive frequencies matching positions, and bidirectional
// consistency between posting lists and the reverse map.
func (ii *InvertedIndex) Check() error {
	total := 0
	for term, pl := range ii.postings {
		if len(pl) == 0 {
			return fmt.Errorf("term %q has an empty posting list", term)
		}
		for i, p := range pl {
			if i > 0 && pl[i-1].DocID >= p.DocID {
				return fmt.Errorf("posting list of %q is not sorted by document id at %d", term, i)
			}
			if p.TermFrequency < 1 {
				return fmt.Errorf("posting (%q, %q) has frequency %d", term, p.DocID, p.TermFrequency)
			}
			if p.TermFrequency != len(p.Positions) {
				return fmt.Errorf("posting (%q, %q) has frequency %d but %d positions", term, p.DocID, p.TermFrequency, len(p.Positions))
			}
			for j := 1; j < len(p.Positions); j++ {
				if p.Positions[j-1] >= p.Positions[j] {
					return fmt.Errorf("posting (%q, %q) positions are not strictly increasing", term, p.DocID)
				}
			}
			if _, ok := slices.BinarySearch(ii.reverse[p.DocID], term); !ok {
				return fmt.Errorf("reverse map of %q is missing term %q", p.DocID, term)
			}
			total += p.TermFrequency
		}
	}
	if total != ii.totalTermOccurrences {
		return fmt.Errorf("total term occurrences is %d, postings sum to %d", ii.totalTermOccurrences, total)
	}

	if len(ii.reverse) != len(ii.docs) {
		return fmt.Errorf("reverse map has %d documents, document table has %d", len(ii.reverse), len(ii.docs))
	}
	for docID, terms := range ii.reverse {
		doc, ok := ii.docs[docID]
		if !ok {
			return fmt.Errorf("reverse map references unknown document %q", docID)
		}
		if doc.TermCount != len(terms) {
			return fmt.Errorf("document %q records %d terms, reverse map has %d", docID, doc.TermCount, len(terms))
		}
		for i, term := range terms {
			if i > 0 && terms[i-1] >= term {
				return fmt.Errorf("reverse map of %q is not sorted", docID)
			}
			if _, ok := ii.postings[term].Find(docID); !ok {
				return fmt.Errorf("reverse map of %q lists %q without a posting", docID, term)
			}
		}
	}
	return nil
}
