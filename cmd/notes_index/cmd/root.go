// Package cmd provides the CLI commands of notes-index.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/gcbaptista/go-notes-index/config"
	"github.com/gcbaptista/go-notes-index/internal/engine"
	"github.com/gcbaptista/go-notes-index/internal/logging"
	"github.com/gcbaptista/go-notes-index/internal/metrics"
	"github.com/gcbaptista/go-notes-index/internal/watcher"
)

// Version is set at build time.
var Version = "dev"

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath  string
	storagePath string
	notesRoot   string
	logLevel    string
	logFormat   string
}

// NewRootCmd creates the root command of the notes-index CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "notes-index",
		Short: "Full-text index for a folder of notes",
		Long: `notes-index keeps a TF-IDF full-text index of plain-text notes.

The index lives in a single snapshot file. Notes are identified by their
path relative to the notes root.

Examples:
  notes-index sync --notes ~/notes --storage ~/.notes.snix
  notes-index search "+garden tomatoes"
  notes-index serve --config notes-index.yaml`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("notes-index version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML settings file")
	cmd.PersistentFlags().StringVarP(&opts.storagePath, "storage", "s", "", "Snapshot file of the index (overrides storage_path)")
	cmd.PersistentFlags().StringVarP(&opts.notesRoot, "notes", "n", "", "Notes directory (overrides notes_root)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: text, json")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newAnalyzeCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newSyncCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))

	return cmd
}

// Execute runs the root command with a context canceled on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// loadSettings merges the config file, the flags and the defaults, and
// configures logging.
func (o *globalOptions) loadSettings(requireStorage bool) (config.IndexSettings, error) {
	settings := config.Default()
	if o.configPath != "" {
		loaded, err := config.LoadFile(o.configPath)
		if err != nil {
			return config.IndexSettings{}, err
		}
		settings = loaded
	}
	if o.storagePath != "" {
		settings.StoragePath = o.storagePath
	}
	if o.notesRoot != "" {
		settings.NotesRoot = o.notesRoot
	}
	if o.logLevel != "" {
		settings.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		settings.LogFormat = o.logFormat
	}
	if requireStorage && settings.StoragePath == "" {
		return config.IndexSettings{}, fmt.Errorf("no storage path: set storage_path in the config file or pass --storage")
	}

	logging.Setup(settings.LogLevel, settings.LogFormat)
	return settings, nil
}

// session is an engine with its index open, plus the optional watcher.
type session struct {
	settings config.IndexSettings
	engine   *engine.Engine
	watcher  *watcher.Watcher // nil without a notes root
	registry *prometheus.Registry
}

// openSession opens (or starts) the index named by the settings.
func (o *globalOptions) openSession() (*session, error) {
	settings, err := o.loadSettings(true)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	eng, err := engine.NewEngine(settings, engine.WithMetrics(m))
	if err != nil {
		return nil, err
	}
	if _, err := eng.OpenIndex(settings.StoragePath); err != nil {
		return nil, err
	}

	s := &session{settings: settings, engine: eng, registry: registry}
	if settings.NotesRoot != "" {
		w, err := watcher.New(eng, watcher.Options{
			Root:       settings.NotesRoot,
			Extensions: settings.Extensions,
			Workers:    settings.SyncWorkers,
			Metrics:    m,
		})
		if err != nil {
			_ = eng.Close()
			return nil, err
		}
		s.watcher = w
	}
	return s, nil
}

func (s *session) close() error {
	return s.engine.Close()
}

func (s *session) requireWatcher() error {
	if s.watcher == nil {
		return fmt.Errorf("no notes directory: set notes_root in the config file or pass --notes")
	}
	return nil
}
