// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Document is a retrieved document, opaque beyond these fields.
type Document struct {
	ID string `json:"id" yaml:"id"`

	// CreatedAt is the document timestamp, used by retrievers to honor
	// a time-window constraint. Zero means unknown.
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`

	// Text is the document body or snippet returned by the retriever.
	Text string `json:"text" yaml:"text"`

	// Source names the collection or site the document came from.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// RetrievalScore is the retriever's relevance score.
	RetrievalScore float64 `json:"retrieval_score" yaml:"retrieval_score"`

	// Rank is the 1-based position in the retrieval result list.
	Rank int `json:"rank,omitempty" yaml:"rank,omitempty"`
}

// ScoredDocument is a Document with its evidence safety verdict attached.
// Derived per request; persisted only through the audit trail.
type ScoredDocument struct {
	Document `yaml:",inline"`

	// SafetyScore is S_e(d | prompt, IR) in [-1, 1]; higher is safer.
	SafetyScore float64 `json:"safety_score" yaml:"safety_score"`

	// Kept reports whether the document survived the filter.
	Kept bool `json:"kept" yaml:"kept"`

	// Reason categorizes the verdict: the violation category for pruned
	// documents, or a short keep rationale.
	Reason string `json:"reason" yaml:"reason"`
}

// FallbackStage names how far the evidence filter escalated.
// Per prd003-evidence-filter R3.
type FallbackStage string

const (
	FallbackNone       FallbackStage = "none"
	FallbackRestricted FallbackStage = "restricted"
	FallbackRewritten  FallbackStage = "rewritten"
	FallbackNoEvidence FallbackStage = "no_evidence"
)

// EvidenceBundle is the filter's output: kept documents in original
// relative order plus mandatory provenance for every scored document,
// kept or pruned.
type EvidenceBundle struct {
	// Kept holds the approved documents (D_safe), in retrieval order.
	Kept []ScoredDocument `json:"kept" yaml:"kept"`

	// Filtered holds the pruned documents with their scores and reasons.
	Filtered []ScoredDocument `json:"filtered" yaml:"filtered"`

	// Fallback records the deepest fallback stage taken.
	Fallback FallbackStage `json:"fallback" yaml:"fallback"`

	// Retries counts fallback retrieval retries (bounded at 2).
	Retries int `json:"retries" yaml:"retries"`
}

// NoEvidence reports whether the bundle ended in the no-evidence terminal
// state: synthesis must fall back to a high-level answer or refusal.
func (b EvidenceBundle) NoEvidence() bool {
	return b.Fallback == FallbackNoEvidence
}
