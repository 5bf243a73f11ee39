// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// GateConfig holds settings for the retrieval gate.
// Per prd002-gate R2.1-R2.5.
type GateConfig struct {
	// DefaultTopK is the number of documents requested under Retrieve
	// (default 8).
	DefaultTopK int `json:"default_top_k" yaml:"default_top_k"`

	// RestrictTopK is the reduced document count under Restrict. Zero
	// means half of DefaultTopK, floored at 3.
	RestrictTopK int `json:"restrict_top_k" yaml:"restrict_top_k"`

	// SourceAllowlist names the trusted sources applied under Restrict.
	SourceAllowlist []string `json:"source_allowlist" yaml:"source_allowlist"`

	// DenylistTerms are procedural trigger phrases stripped by the query
	// rewrite under Restrict.
	DenylistTerms []string `json:"denylist_terms" yaml:"denylist_terms"`

	// TimeWindowDays limits restricted retrieval to recent documents.
	// Zero disables the window.
	TimeWindowDays int `json:"time_window_days" yaml:"time_window_days"`

	// MaxSnippetChars caps snippet length carried into evidence (default 600).
	MaxSnippetChars int `json:"max_snippet_chars" yaml:"max_snippet_chars"`
}

// FilterConfig holds settings for the evidence safety filter.
// Per prd003-evidence-filter R2, R3.
type FilterConfig struct {
	// DropBelow is the safety score threshold; documents scoring under it
	// are pruned (default 0).
	DropBelow float64 `json:"drop_below" yaml:"drop_below"`

	// MinKeep is the minimum kept-document count before the fallback
	// chain triggers. Zero derives max(1, ceil(0.3 * top_k)).
	MinKeep int `json:"min_keep" yaml:"min_keep"`

	// MaxSnippetChars caps the snippet stored per kept document (default 240).
	MaxSnippetChars int `json:"max_snippet_chars" yaml:"max_snippet_chars"`
}

// RewardConfig holds settings for the composite reward.
// Per prd005-trajectory-search R4.
type RewardConfig struct {
	// TauSafety is the safety floor; F(S) is zero below it (default 0).
	TauSafety float64 `json:"tau_safety" yaml:"tau_safety"`

	// Lambda weights the introspection-quality term so it breaks ties
	// without dominating (default 0.2).
	Lambda float64 `json:"lambda" yaml:"lambda"`
}

// SearchConfig holds settings for the trajectory search engine.
// Per prd005-trajectory-search R1-R3, R5-R6.
type SearchConfig struct {
	// Iterations is the search iteration budget (default 30).
	Iterations int `json:"iterations" yaml:"iterations"`

	// MaxDepth bounds trajectory length (default 4).
	MaxDepth int `json:"max_depth" yaml:"max_depth"`

	// CPuct is the exploration constant in the selection rule (default 1.2).
	CPuct float64 `json:"c_puct" yaml:"c_puct"`

	// UnsafePenalty suppresses the exploration weight of unsafe-dominated
	// children when no safe-eligible sibling exists (default 0.25).
	UnsafePenalty float64 `json:"unsafe_penalty" yaml:"unsafe_penalty"`

	// Deadline is the wall-clock budget for one search. Zero disables it.
	Deadline time.Duration `json:"deadline" yaml:"deadline"`

	// EvalWorkers bounds concurrent sibling evaluations (default 4).
	EvalWorkers int `json:"eval_workers" yaml:"eval_workers"`

	// OracleRetries is the per-node judge retry cap before the node is
	// conservatively marked unsafe (default 2).
	OracleRetries int `json:"oracle_retries" yaml:"oracle_retries"`
}

// CacheConfig holds settings for the judge score cache.
// Per prd004-score-cache R1-R3.
type CacheConfig struct {
	// MaxEntries bounds the cache; zero means unbounded (pure memoization).
	MaxEntries int `json:"max_entries" yaml:"max_entries"`
}

// CorpusConfig holds settings for the document store and retrievers.
// Per prd006-corpus R1-R3.
type CorpusConfig struct {
	// Backend selects the retriever: "fts5", "bm25", or "remote".
	Backend string `json:"backend" yaml:"backend"`

	// IndexDir is the directory holding the SQLite corpus database.
	IndexDir string `json:"index_dir" yaml:"index_dir"`

	// RemoteURL is the endpoint for the remote retriever backend.
	RemoteURL string `json:"remote_url,omitempty" yaml:"remote_url,omitempty"`

	// Timeout is the HTTP request timeout for the remote backend.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent by the remote backend
	// (e.g. "guardrag/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// OracleConfig holds settings for LLM-backed judge and generator backends.
type OracleConfig struct {
	// Provider selects the backend: "heuristic" or "openai".
	Provider string `json:"provider" yaml:"provider"`

	// Model is the model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Seed fixes generation sampling when reproducibility is requested.
	Seed int `json:"seed" yaml:"seed"`
}

// AuditConfig holds settings for the audit sink.
// Per prd007-pipeline R4.
type AuditConfig struct {
	// Dir is the directory for append-only audit records (default "audit/").
	Dir string `json:"dir" yaml:"dir"`

	// ToDB mirrors records into the corpus SQLite database when true.
	ToDB bool `json:"to_db" yaml:"to_db"`
}

// PipelineConfig groups all stage configurations for one request.
// Passed explicitly into every component call; components read no
// ambient state (required for the determinism property).
type PipelineConfig struct {
	Gate   GateConfig   `json:"gate" yaml:"gate"`
	Filter FilterConfig `json:"filter" yaml:"filter"`
	Reward RewardConfig `json:"reward" yaml:"reward"`
	Search SearchConfig `json:"search" yaml:"search"`
	Cache  CacheConfig  `json:"cache" yaml:"cache"`
	Corpus CorpusConfig `json:"corpus" yaml:"corpus"`
	Oracle OracleConfig `json:"oracle" yaml:"oracle"`
	Audit  AuditConfig  `json:"audit" yaml:"audit"`
}

// Defaults fills unset fields with their documented defaults and returns
// the completed config.
func (c PipelineConfig) Defaults() PipelineConfig {
	if c.Gate.DefaultTopK <= 0 {
		c.Gate.DefaultTopK = 8
	}
	if c.Gate.MaxSnippetChars <= 0 {
		c.Gate.MaxSnippetChars = 600
	}
	if c.Filter.MaxSnippetChars <= 0 {
		c.Filter.MaxSnippetChars = 240
	}
	if c.Reward.Lambda == 0 {
		c.Reward.Lambda = 0.2
	}
	if c.Search.Iterations <= 0 {
		c.Search.Iterations = 30
	}
	if c.Search.MaxDepth <= 0 {
		c.Search.MaxDepth = 4
	}
	if c.Search.CPuct == 0 {
		c.Search.CPuct = 1.2
	}
	if c.Search.UnsafePenalty == 0 {
		c.Search.UnsafePenalty = 0.25
	}
	if c.Search.EvalWorkers <= 0 {
		c.Search.EvalWorkers = 4
	}
	if c.Search.OracleRetries <= 0 {
		c.Search.OracleRetries = 2
	}
	if c.Corpus.Backend == "" {
		c.Corpus.Backend = "fts5"
	}
	if c.Corpus.Timeout <= 0 {
		c.Corpus.Timeout = 10 * time.Second
	}
	if c.Corpus.UserAgent == "" {
		c.Corpus.UserAgent = "guardrag/0.1"
	}
	if c.Oracle.Provider == "" {
		c.Oracle.Provider = "heuristic"
	}
	if c.Audit.Dir == "" {
		c.Audit.Dir = "audit"
	}
	return c
}
