package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	settings := IndexSettings{}
	settings.ApplyDefaults()

	assert.Equal(t, 10, settings.DefaultLimit)
	assert.Equal(t, 100, settings.MaxLimit)
	assert.Equal(t, 32, settings.MaxQueryTerms)
	assert.Equal(t, 8, settings.SnippetRadius)
	assert.Equal(t, 256, settings.ContentCacheSize)
	assert.Equal(t, 4, settings.SyncWorkers)
	assert.Equal(t, "info", settings.LogLevel)
	assert.Equal(t, "text", settings.LogFormat)
	assert.Equal(t, []string{".md", ".txt"}, settings.Extensions)
	assert.NotNil(t, settings.StopWords)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	settings := IndexSettings{DefaultLimit: 5, SnippetRadius: 3, Extensions: []string{".org"}}
	settings.ApplyDefaults()

	assert.Equal(t, 5, settings.DefaultLimit)
	assert.Equal(t, 3, settings.SnippetRadius)
	assert.Equal(t, []string{".org"}, settings.Extensions)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		settings IndexSettings
		want     []string // substrings expected in the problems, nil means valid
	}{
		{
			name:     "defaults are valid",
			settings: Default(),
		},
		{
			name:     "default limit above max",
			settings: IndexSettings{DefaultLimit: 50, MaxLimit: 20},
			want:     []string{"exceeds max_limit"},
		},
		{
			name:     "negative values",
			settings: IndexSettings{MaxQueryTerms: -1, SnippetRadius: -2},
			want:     []string{"max_query_terms", "snippet_radius"},
		},
		{
			name:     "bad log format",
			settings: IndexSettings{LogFormat: "xml"},
			want:     []string{"log_format"},
		},
		{
			name:     "duplicate and malformed extensions",
			settings: IndexSettings{Extensions: []string{".md", ".md", "txt"}},
			want:     []string{"Duplicate value '.md'", "must start with '.'"},
		},
		{
			name:     "blank stop word",
			settings: IndexSettings{StopWords: []string{"the", " "}},
			want:     []string{"Stop word cannot be empty"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems := tt.settings.Validate()
			if tt.want == nil {
				assert.Empty(t, problems)
				return
			}
			joined := strings.Join(problems, "\n")
			for _, fragment := range tt.want {
				assert.Contains(t, joined, fragment)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes-index.yaml")
	content := `
storage_path: /var/lib/notes/index.snix
notes_root: /home/me/notes
remove_stop_words: true
default_limit: 20
extensions: [".md"]
async_persistence: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	settings, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/notes/index.snix", settings.StoragePath)
	assert.Equal(t, "/home/me/notes", settings.NotesRoot)
	assert.True(t, settings.RemoveStopWords)
	assert.True(t, settings.Stemming, "stemming defaults to on when not set")
	assert.True(t, settings.AsyncPersistence)
	assert.Equal(t, 20, settings.DefaultLimit)
	assert.Equal(t, []string{".md"}, settings.Extensions)
	assert.Equal(t, 100, settings.MaxLimit)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	badYAML := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badYAML, []byte("default_limit: [oops"), 0o600))
	_, err = LoadFile(badYAML)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("log_format: xml\n"), 0o600))
	_, err = LoadFile(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_format")
}
