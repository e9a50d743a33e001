package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gcbaptista/go-notes-index/api"
	"github.com/gcbaptista/go-notes-index/internal/engine"
	"github.com/gcbaptista/go-notes-index/services"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var listen string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index over HTTP",
		Long: `Serve the index over HTTP.

With a notes directory configured the index is synced on startup, and
--watch keeps it in step with file changes while the server runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.openSession()
			if err != nil {
				return err
			}
			defer func() {
				if err := s.close(); err != nil {
					slog.Error("Failed to close index", "error", err)
				}
			}()
			if listen == "" {
				listen = s.settings.ListenAddr
			}
			return runServe(cmd.Context(), s, listen, watch)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (overrides listen_addr)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow changes in the notes directory")
	return cmd
}

func runServe(ctx context.Context, s *session, listen string, watch bool) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), api.CORSMiddleware())

	apiOpts := []api.Option{api.WithGatherer(s.registry)}
	if s.watcher != nil {
		apiOpts = append(apiOpts, api.WithSyncer(s.watcher))
		if _, err := s.watcher.Sync(ctx); err != nil {
			return err
		}
	}
	api.SetupRoutes(router, s.engine, apiOpts...)

	server := &http.Server{
		Addr:              listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting server", "addr", listen, "storage", s.settings.StoragePath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if watch && s.watcher != nil {
		g.Go(func() error {
			return s.watcher.Run(gctx)
		})
	}
	return g.Wait()
}

func newAnalyzeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <text>",
		Short: "Show the terms and positions text is indexed under",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := opts.loadSettings(false)
			if err != nil {
				return err
			}
			eng, err := engine.NewEngine(settings)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), eng.IndexTextStandalone(strings.Join(args, " ")))
		},
	}
}

func newSearchCmd(opts *globalOptions) *cobra.Command {
	var limit, offset int
	var format string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Long: `Search the index.

Bare words are optional, +word is required, "quoted words" must appear
as a phrase.

Examples:
  notes-index search garden
  notes-index search '+garden "cherry tomatoes"' --limit 5
  notes-index search invoice --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession()
			if err != nil {
				return err
			}
			defer func() { _ = s.close() }()

			result, err := s.engine.SearchContext(cmd.Context(), strings.Join(args, " "), limit, offset)
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			return writeResults(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of hits (0 for the configured default)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of hits to skip")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func newSyncCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Index new and changed notes and drop deleted ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.openSession()
			if err != nil {
				return err
			}
			defer func() { _ = s.close() }()
			if err := s.requireWatcher(); err != nil {
				return err
			}

			report, err := s.watcher.Sync(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.engine.Flush(); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Sync the notes directory, then follow its changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.openSession()
			if err != nil {
				return err
			}
			defer func() { _ = s.close() }()
			if err := s.requireWatcher(); err != nil {
				return err
			}

			if _, err := s.watcher.Sync(cmd.Context()); err != nil {
				return err
			}
			return s.watcher.Run(cmd.Context())
		},
	}
}

func newStatsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print statistics of the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.openSession()
			if err != nil {
				return err
			}
			defer func() { _ = s.close() }()

			stats, err := s.engine.Stats()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeResults(w io.Writer, result services.SearchResult) error {
	if len(result.Hits) == 0 {
		if _, err := fmt.Fprintln(w, "No results."); err != nil {
			return err
		}
	}
	for i, hit := range result.Hits {
		if _, err := fmt.Fprintf(w, "%2d. %s  (%.3f)\n", result.Offset+i+1, hit.DocID, hit.Score); err != nil {
			return err
		}
		if hit.Snippet != "" {
			if _, err := fmt.Fprintf(w, "    %s\n", hit.Snippet); err != nil {
				return err
			}
		}
	}
	for term, suggestions := range result.Suggestions {
		if _, err := fmt.Fprintf(w, "Did you mean %s for %q?\n", strings.Join(suggestions, ", "), term); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d of %d hits (generation %d, %dms)\n", len(result.Hits), result.Total, result.Generation, result.Took)
	return err
}
