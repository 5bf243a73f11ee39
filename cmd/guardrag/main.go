// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the guardrag CLI.
// Implements: prd001-introspection, prd002-gate, prd003-evidence-filter,
//             prd005-trajectory-search, prd006-corpus, prd007-pipeline
//             (CLI surface). See docs/ARCHITECTURE § Pipeline Interface.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/guardrag/internal/secrets"
	"github.com/pdiddy/guardrag/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the guardrag CLI.
var rootCmd = &cobra.Command{
	Use:   "guardrag",
	Short: "Risk-aware retrieval gating and safety-informed answer search",
	Long: `guardrag governs whether, how, and with what evidence a language model may
retrieve external documents before answering. Every prompt passes through
introspection, a retrieval gate, an evidence safety filter, and a
safety-informed trajectory search that picks the safest high-quality answer.

Each stage is reachable as a subcommand: answer runs the full pipeline,
gate shows the retrieval decision alone, corpus manages the document
store, and audit inspects the per-request decision trail.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./guardrag.yaml or ~/.config/guardrag/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("guardrag")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "guardrag"))
		}
	}

	viper.SetEnvPrefix("GUARDRAG")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// pipelineConfig assembles the full configuration from viper, with
// defaults filled for anything the config file leaves unset.
func pipelineConfig() types.PipelineConfig {
	cfg := types.PipelineConfig{
		Gate: types.GateConfig{
			DefaultTopK:     viper.GetInt("gate.default_top_k"),
			RestrictTopK:    viper.GetInt("gate.restrict_top_k"),
			SourceAllowlist: viper.GetStringSlice("gate.source_allowlist"),
			DenylistTerms:   viper.GetStringSlice("gate.denylist_terms"),
			TimeWindowDays:  viper.GetInt("gate.time_window_days"),
			MaxSnippetChars: viper.GetInt("gate.max_snippet_chars"),
		},
		Filter: types.FilterConfig{
			DropBelow:       viper.GetFloat64("filter.drop_below"),
			MinKeep:         viper.GetInt("filter.min_keep"),
			MaxSnippetChars: viper.GetInt("filter.max_snippet_chars"),
		},
		Reward: types.RewardConfig{
			TauSafety: viper.GetFloat64("reward.tau_safety"),
			Lambda:    viper.GetFloat64("reward.lambda"),
		},
		Search: types.SearchConfig{
			Iterations:    viper.GetInt("search.iterations"),
			MaxDepth:      viper.GetInt("search.max_depth"),
			CPuct:         viper.GetFloat64("search.c_puct"),
			UnsafePenalty: viper.GetFloat64("search.unsafe_penalty"),
			Deadline:      viper.GetDuration("search.deadline"),
			EvalWorkers:   viper.GetInt("search.eval_workers"),
			OracleRetries: viper.GetInt("search.oracle_retries"),
		},
		Cache: types.CacheConfig{
			MaxEntries: viper.GetInt("cache.max_entries"),
		},
		Corpus: types.CorpusConfig{
			Backend:   viper.GetString("corpus.backend"),
			IndexDir:  viper.GetString("corpus.index_dir"),
			RemoteURL: viper.GetString("corpus.remote_url"),
			Timeout:   viper.GetDuration("corpus.timeout"),
			UserAgent: viper.GetString("corpus.user_agent"),
		},
		Oracle: types.OracleConfig{
			Provider: viper.GetString("oracle.provider"),
			Model:    viper.GetString("oracle.model"),
			APIKey:   secretDefault("openai-api-key", viper.GetString("oracle.api_key")),
			Seed:     viper.GetInt("oracle.seed"),
		},
		Audit: types.AuditConfig{
			Dir:  viper.GetString("audit.dir"),
			ToDB: viper.GetBool("audit.to_db"),
		},
	}
	if cfg.Corpus.IndexDir == "" {
		cfg.Corpus.IndexDir = "corpus"
	}
	if cfg.Search.Deadline == 0 {
		cfg.Search.Deadline = 30 * time.Second
	}
	return cfg.Defaults()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
