package index

// Snapshot is an immutable, generation-tagged version of the index.
// Readers may hold a Snapshot for as long as they like; a newer generation
// never modifies an older one.
type Snapshot struct {
	Index      *InvertedIndex
	Generation uint64
	// Analyzer fingerprints the tokenizer options the terms were produced
	// with. Zero means unknown.
	Analyzer uint64
}

// NewSnapshot creates an empty snapshot at the given generation.
func NewSnapshot(generation uint64) *Snapshot {
	return &Snapshot{Index: New(), Generation: generation}
}

// Next wraps a mutated clone as the successor of s.
func (s *Snapshot) Next(ii *InvertedIndex) *Snapshot {
	return &Snapshot{Index: ii, Generation: s.Generation + 1, Analyzer: s.Analyzer}
}
