// Command regingest runs the compliance document ingestion pipeline over
// the declared source registry: fetch, extract, normalize, store.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "regingest",
		Short: "Ingest regulatory documents from declared sources",
		Long: `regingest fetches declared regulatory and compliance sources,
extracts their text (with OCR fallback for scanned PDFs), normalizes it,
and stores content-addressed document versions. Sources are declared in
per-region YAML files; only sources due per their fetch frequency run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	cmd.PersistentFlags().String("sources", "sources", "Directory of per-region source YAML files")

	cmd.AddCommand(runCmd(), sourcesCmd(), validateCmd())
	return cmd
}
