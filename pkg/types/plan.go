// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// RetrievalAction is the gate's verdict on whether retrieval may run.
// Per prd002-gate R1.1.
type RetrievalAction string

const (
	ActionRetrieve   RetrievalAction = "Retrieve"
	ActionRestrict   RetrievalAction = "Restrict"
	ActionNoRetrieve RetrievalAction = "No-Retrieve"
)

// Constraints bound what a retriever may return under a plan.
type Constraints struct {
	// SourceAllowlist restricts results to the named sources. Empty means
	// no source restriction.
	SourceAllowlist []string `json:"source_allowlist,omitempty" yaml:"source_allowlist,omitempty"`

	// DenylistTerms are trigger phrases stripped from the query during
	// rewrite and disallowed in results.
	DenylistTerms []string `json:"denylist_terms,omitempty" yaml:"denylist_terms,omitempty"`

	// TimeWindowDays limits results to documents newer than this many
	// days. Zero means unlimited.
	TimeWindowDays int `json:"time_window_days,omitempty" yaml:"time_window_days,omitempty"`

	// MaxSnippetChars caps the snippet length carried into evidence.
	MaxSnippetChars int `json:"max_snippet_chars,omitempty" yaml:"max_snippet_chars,omitempty"`
}

// IsZero reports whether no constraint is set.
func (c Constraints) IsZero() bool {
	return len(c.SourceAllowlist) == 0 && len(c.DenylistTerms) == 0 &&
		c.TimeWindowDays == 0 && c.MaxSnippetChars == 0
}

// RetrievalPlan is one gate verdict: the action, the (possibly rewritten)
// query, and the constraints retrieval must honor. A No-Retrieve plan
// carries an empty query and empty constraints (prd002-gate R1.3).
type RetrievalPlan struct {
	Action RetrievalAction `json:"action" yaml:"action"`

	// Query is the original or rewritten query; empty for No-Retrieve.
	Query string `json:"query" yaml:"query"`

	// TopK is the number of documents requested.
	TopK int `json:"top_k" yaml:"top_k"`

	Constraints Constraints `json:"constraints" yaml:"constraints"`

	// ExpectedEvidenceType describes what retrieval should return
	// ("high_level_overview" or "none").
	ExpectedEvidenceType string `json:"expected_evidence_type" yaml:"expected_evidence_type"`

	// ResponseHint carries the gate's synthesis hint. A No-Retrieve plan
	// produced by the high-risk short circuit is refusal-eligible.
	ResponseHint ResponseMode `json:"response_hint" yaml:"response_hint"`

	// RewriteApplied reports whether the query rewrite changed the query.
	RewriteApplied bool `json:"rewrite_applied" yaml:"rewrite_applied"`

	// RemovedTerms lists denylist terms stripped by the rewrite.
	RemovedTerms []string `json:"removed_terms,omitempty" yaml:"removed_terms,omitempty"`

	// Rationale is a short human-readable justification for the audit trail.
	Rationale string `json:"rationale" yaml:"rationale"`
}
