package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sawyer0/compliance-copilot-assistant/internal/cache"
	"github.com/Sawyer0/compliance-copilot-assistant/internal/extract"
	"github.com/Sawyer0/compliance-copilot-assistant/internal/fetch"
	"github.com/Sawyer0/compliance-copilot-assistant/internal/normalize"
	"github.com/Sawyer0/compliance-copilot-assistant/internal/ocr"
	"github.com/Sawyer0/compliance-copilot-assistant/internal/registry"
	"github.com/Sawyer0/compliance-copilot-assistant/internal/schedule"
	"github.com/Sawyer0/compliance-copilot-assistant/internal/store"
)

const userAgent = "regingest/1.0 (+https://github.com/Sawyer0/compliance-copilot-assistant)"

// errRunFailed signals sources that failed on every endpoint; mapped to
// exit code 1 by Execute.
var errRunFailed = errors.New("one or more sources failed")

func runCmd() *cobra.Command {
	var (
		dbPath       string
		cacheDir     string
		cacheMaxAge  time.Duration
		sourceID     string
		jurisdiction string
		tag          string
		concurrency  int
		hostGap      time.Duration
		force        bool
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one ingestion pass over the due sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sourcesDir, _ := cmd.Flags().GetString("sources")
			reg, err := registry.Load(sourcesDir)
			if err != nil {
				return fmt.Errorf("load sources: %w", err)
			}

			var st store.Store
			if dryRun {
				st = store.NewMemory()
				log.Info().Msg("dry run, nothing will be persisted")
			} else {
				st, err = store.OpenSQLite(dbPath)
				if err != nil {
					return fmt.Errorf("open store: %w", err)
				}
			}
			defer st.Close()

			httpCache := &cache.Cache{Dir: cacheDir}
			if cacheMaxAge > 0 {
				if n, err := httpCache.PurgeByAge(cacheMaxAge); err != nil {
					log.Warn().Err(err).Msg("cache purge failed")
				} else if n > 0 {
					log.Debug().Int("purged", n).Msg("expired cache entries removed")
				}
			}

			runner := &schedule.Runner{
				Fetcher: &fetch.Client{
					UserAgent: userAgent,
					Cache:     httpCache,
					HostGap:   hostGap,
				},
				Extractor:  &extract.Extractor{OCR: ocr.New()},
				Normalizer: &normalize.Normalizer{Store: st},
				FetchLog:   st,
			}

			summary, err := runner.Run(ctx, reg, schedule.Options{
				SourceID:             sourceID,
				Jurisdiction:         jurisdiction,
				Tag:                  tag,
				Force:                force,
				MaxConcurrentFetches: concurrency,
			})
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), summary)
			if summary.FullyFailed() {
				return errRunFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "regingest.db", "SQLite database path")
	cmd.Flags().StringVar(&cacheDir, "cache.dir", ".regingest-cache", "Conditional-GET cache directory")
	cmd.Flags().DurationVar(&cacheMaxAge, "cache.maxAge", 0, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	cmd.Flags().StringVar(&sourceID, "source", "", "Run a single source by id (also selects on-demand and inactive sources)")
	cmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "Only sources of this jurisdiction")
	cmd.Flags().StringVar(&tag, "tag", "", "Only sources carrying this tag")
	cmd.Flags().IntVar(&concurrency, "concurrency", schedule.DefaultMaxConcurrentFetches, "Maximum concurrent fetches")
	cmd.Flags().DurationVar(&hostGap, "host-gap", time.Second, "Minimum spacing between requests to one host")
	cmd.Flags().BoolVar(&force, "force", false, "Fetch selected sources even when not due")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run the full pipeline against an in-memory store")
	return cmd
}
