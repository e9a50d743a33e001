package index

import (
	"sort"
	"time"
)

// Posting records the occurrences of one term in one document.
// TermFrequency always equals len(Positions) and is never zero.
type Posting struct {
	DocID         string
	TermFrequency int
	Positions     []int // Word positions in ascending order
}

// PostingList is a slice of Posting sorted by DocID ascending.
// Lists handed out by an InvertedIndex belong to a snapshot and must not be modified.
type PostingList []Posting

// Find returns the index of docID in the list and whether it is present.
// When absent, the index is the insertion point that keeps the list sorted.
func (pl PostingList) Find(docID string) (int, bool) {
	i := sort.Search(len(pl), func(i int) bool {
		return pl[i].DocID >= docID
	})
	return i, i < len(pl) && pl[i].DocID == docID
}

// Get returns the posting of docID, if any.
func (pl PostingList) Get(docID string) (Posting, bool) {
	if i, ok := pl.Find(docID); ok {
		return pl[i], true
	}
	return Posting{}, false
}

// Document is the metadata kept for every indexed document.
type Document struct {
	DocID         string
	ContentHash   string
	Length        int // Number of word positions in the indexed text
	TermCount     int // Number of distinct terms
	LastIndexedAt time.Time
}
