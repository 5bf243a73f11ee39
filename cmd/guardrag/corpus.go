// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/guardrag/internal/corpus"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the document store (ingest, stats)",
	Long: `Corpus manages the local SQLite document store that the FTS5 retriever
backend searches. Use subcommands to ingest corpus files or inspect the
store.`,
}

var corpusIngestCmd = &cobra.Command{
	Use:   "ingest [file ...]",
	Short: "Load documents from YAML corpus files into the store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCorpusIngest,
}

func runCorpusIngest(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	store, err := corpus.OpenStore(cfg.Corpus)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	var total corpus.IngestSummary
	for _, path := range args {
		summary, err := store.IngestFile(ctx, path)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		fmt.Printf("%s: %d added, %d updated, %d failed\n", path, summary.Added, summary.Updated, summary.Failed)
		total.Added += summary.Added
		total.Updated += summary.Updated
		total.Failed += summary.Failed
	}
	if total.Failed > 0 {
		return fmt.Errorf("%d document(s) failed ingest", total.Failed)
	}
	return nil
}

var corpusStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := pipelineConfig()
		store, err := corpus.OpenStore(cfg.Corpus)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Count(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("documents: %d\n", n)
		return nil
	},
}

func init() {
	corpusCmd.AddCommand(corpusIngestCmd)
	corpusCmd.AddCommand(corpusStatsCmd)

	rootCmd.AddCommand(corpusCmd)
}
