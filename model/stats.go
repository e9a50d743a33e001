package model

// LoadStatus describes what was found on disk when an index was opened.
// Missing, Corrupt and Incompatible are not errors: the index starts empty
// and the caller may decide to rebuild it. Incompatible means the file was
// built with different tokenizer options.
type LoadStatus string

const (
	LoadStatusLoaded  LoadStatus = "loaded"
	LoadStatusCreated LoadStatus = "created"
	LoadStatusMissing LoadStatus = "missing"
	LoadStatusCorrupt LoadStatus = "corrupt"

	LoadStatusIncompatible LoadStatus = "incompatible"
)

// IndexStats represents statistics for the open index
type IndexStats struct {
	StoragePath          string     `json:"storage_path"`
	Generation           uint64     `json:"generation"`
	PersistedGeneration  uint64     `json:"persisted_generation"`
	DocumentCount        int        `json:"document_count"`
	TermCount            int        `json:"term_count"`
	TotalTermOccurrences int        `json:"total_term_occurrences"`
	LoadStatus           LoadStatus `json:"load_status"`
}
