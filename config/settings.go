// Package config provides configuration structures for the notes index.
// It defines tokenizer, query, snippet and persistence settings.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// IndexSettings contains all configuration options for a notes index.
// The tokenizer options (Stemming, RemoveStopWords, StopWords) apply to both
// indexing and querying; changing them requires a rebuild of the index, and
// an index opened with other options than it was built with loads as
// incompatible. The zero value has Stemming off: start from Default to get
// the usual options.
type IndexSettings struct {
	StoragePath      string   `json:"storage_path" yaml:"storage_path"`           // Snapshot file of the index
	NotesRoot        string   `json:"notes_root" yaml:"notes_root"`               // Directory holding the note files (content source and watcher root)
	Extensions       []string `json:"extensions" yaml:"extensions"`               // Note file extensions picked up by the watcher (e.g. ".md")
	Stemming         bool     `json:"stemming" yaml:"stemming"`                   // Apply English snowball stemming to terms
	RemoveStopWords  bool     `json:"remove_stop_words" yaml:"remove_stop_words"` // Drop stop words from indexed and query text
	StopWords        []string `json:"stop_words" yaml:"stop_words"`               // Overrides the built-in English stop word list
	DefaultLimit     int      `json:"default_limit" yaml:"default_limit"`         // Hits returned when a search passes limit 0
	MaxLimit         int      `json:"max_limit" yaml:"max_limit"`                 // Upper bound on a search limit
	MaxQueryTerms    int      `json:"max_query_terms" yaml:"max_query_terms"`     // Queries with more terms are rejected
	SnippetRadius    int      `json:"snippet_radius" yaml:"snippet_radius"`       // Words kept on each side of the first match
	ContentCacheSize int      `json:"content_cache_size" yaml:"content_cache_size"`
	AsyncPersistence bool     `json:"async_persistence" yaml:"async_persistence"` // Persist in the background instead of in the caller
	SyncWorkers      int      `json:"sync_workers" yaml:"sync_workers"`           // Parallel file reads during a directory sync
	LogLevel         string   `json:"log_level" yaml:"log_level"`
	LogFormat        string   `json:"log_format" yaml:"log_format"` // "text" or "json"
	ListenAddr       string   `json:"listen_addr" yaml:"listen_addr"`
}

// Default returns settings with all defaults applied.
func Default() IndexSettings {
	settings := IndexSettings{Stemming: true}
	settings.ApplyDefaults()
	return settings
}

// LoadFile reads YAML settings from path and applies defaults to missing values.
func LoadFile(path string) (IndexSettings, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is supplied by the operator
	if err != nil {
		return IndexSettings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	settings := IndexSettings{Stemming: true}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return IndexSettings{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	settings.ApplyDefaults()

	if problems := settings.Validate(); len(problems) > 0 {
		return IndexSettings{}, fmt.Errorf("invalid config file %s: %s", path, strings.Join(problems, "; "))
	}
	return settings, nil
}

// Validate checks the settings for values that cannot work together and
// returns one message per problem.
func (settings *IndexSettings) Validate() []string {
	var problems []string

	if settings.DefaultLimit < 0 {
		problems = append(problems, "default_limit cannot be negative")
	}
	if settings.MaxLimit < 0 {
		problems = append(problems, "max_limit cannot be negative")
	}
	if settings.MaxLimit > 0 && settings.DefaultLimit > settings.MaxLimit {
		problems = append(problems, fmt.Sprintf("default_limit (%d) exceeds max_limit (%d)", settings.DefaultLimit, settings.MaxLimit))
	}
	if settings.MaxQueryTerms < 0 {
		problems = append(problems, "max_query_terms cannot be negative")
	}
	if settings.SnippetRadius < 0 {
		problems = append(problems, "snippet_radius cannot be negative")
	}
	if settings.SyncWorkers < 0 {
		problems = append(problems, "sync_workers cannot be negative")
	}
	if settings.LogFormat != "" && settings.LogFormat != "text" && settings.LogFormat != "json" {
		problems = append(problems, "Invalid log_format '"+settings.LogFormat+"' (must be 'text' or 'json')")
	}

	problems = append(problems, checkDuplicates("extensions", settings.Extensions)...)
	for _, ext := range settings.Extensions {
		if !strings.HasPrefix(ext, ".") {
			problems = append(problems, "Extension '"+ext+"' must start with '.'")
		}
	}
	for _, word := range settings.StopWords {
		if strings.TrimSpace(word) == "" {
			problems = append(problems, "Stop word cannot be empty or whitespace-only")
			break
		}
	}

	return problems
}

// checkDuplicates checks for duplicate values in a slice and returns error messages
func checkDuplicates(fieldName string, values []string) []string {
	var errors []string
	seen := make(map[string]bool)

	for _, value := range values {
		if seen[value] {
			errors = append(errors, "Duplicate value '"+value+"' found in "+fieldName)
		}
		seen[value] = true
	}

	return errors
}

// ApplyDefaults applies default values to the index settings
func (settings *IndexSettings) ApplyDefaults() {
	if settings.DefaultLimit == 0 {
		settings.DefaultLimit = 10
	}
	if settings.MaxLimit == 0 {
		settings.MaxLimit = 100
	}
	if settings.MaxQueryTerms == 0 {
		settings.MaxQueryTerms = 32
	}
	if settings.SnippetRadius == 0 {
		settings.SnippetRadius = 8
	}
	if settings.ContentCacheSize == 0 {
		settings.ContentCacheSize = 256
	}
	if settings.SyncWorkers == 0 {
		settings.SyncWorkers = 4
	}
	if settings.LogLevel == "" {
		settings.LogLevel = "info"
	}
	if settings.LogFormat == "" {
		settings.LogFormat = "text"
	}
	if settings.ListenAddr == "" {
		settings.ListenAddr = ":8080"
	}

	// Initialize empty slices if nil to prevent nil pointer issues
	if settings.Extensions == nil || len(settings.Extensions) == 0 {
		settings.Extensions = []string{".md", ".txt"}
	}
	if settings.StopWords == nil {
		settings.StopWords = []string{}
	}
}
