package model

import "time"

// TermStat is the per-term summary of a piece of text: how often the term
// occurs and at which word positions.
type TermStat struct {
	Term      string `json:"term"`
	Frequency int    `json:"frequency"`
	Positions []int  `json:"positions"`
}

// IncrementalResult reports the outcome of an incremental index call.
// Updated is false when the stored content hash already matched.
type IncrementalResult struct {
	Updated   bool `json:"updated"`
	TermCount int  `json:"term_count"` // Distinct terms the document contributes
}

// RemoveResult reports whether a document was known and removed.
type RemoveResult struct {
	Removed bool `json:"removed"`
}

// DocumentInfo is the public view of an indexed document's metadata.
type DocumentInfo struct {
	DocID         string    `json:"doc_id"`
	ContentHash   string    `json:"content_hash"`
	Length        int       `json:"length"`
	TermCount     int       `json:"term_count"`
	LastIndexedAt time.Time `json:"last_indexed_at"`
}
