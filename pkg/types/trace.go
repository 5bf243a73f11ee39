// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Prompt is the immutable user request entering the pipeline.
type Prompt struct {
	// Text is the raw prompt text.
	Text string `json:"text" yaml:"text"`

	// Metadata carries request provenance (timestamp, source tag,
	// optional domain tag). Never mutated after construction.
	Metadata PromptMetadata `json:"metadata" yaml:"metadata"`
}

// PromptMetadata describes where and when a prompt originated.
type PromptMetadata struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Source    string    `json:"source" yaml:"source"`
	Domain    string    `json:"domain,omitempty" yaml:"domain,omitempty"`
}

// Severity is an ordered risk level: low < medium < high.
// Per prd001-introspection R2.2.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// severityRank maps levels to their ordering. Unknown levels rank highest
// so a malformed value is treated as maximum risk.
var severityRank = map[Severity]int{
	SeverityLow:    0,
	SeverityMedium: 1,
	SeverityHigh:   2,
}

// AtLeast reports whether s is at or above other in the low < medium < high
// ordering. Unknown values compare as high.
func (s Severity) AtLeast(other Severity) bool {
	return rankOf(s) >= rankOf(other)
}

func rankOf(s Severity) int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return severityRank[SeverityHigh]
}

// RetrievalRisk is the assessed risk of grounding the answer in retrieved
// documents, ordered the same way as Severity.
type RetrievalRisk = Severity

// RetrievalNeed describes how much the answer depends on external evidence.
type RetrievalNeed string

const (
	NeedNone     RetrievalNeed = "none"
	NeedHelpful  RetrievalNeed = "helpful"
	NeedRequired RetrievalNeed = "required"
)

// RiskCategory is the inferred harm domain of the request.
type RiskCategory string

const (
	CategoryBenignInfo    RiskCategory = "benign_info"
	CategoryMedical       RiskCategory = "medical"
	CategoryLegal         RiskCategory = "legal"
	CategoryFinancial     RiskCategory = "financial"
	CategorySelfHarm      RiskCategory = "self_harm"
	CategoryViolence      RiskCategory = "violence"
	CategoryHateExtremism RiskCategory = "hate_extremism"
	CategoryCyber         RiskCategory = "cyber"
	CategoryPrivacyPII    RiskCategory = "privacy_pii"
	CategorySexual        RiskCategory = "sexual"
	CategoryWeapons       RiskCategory = "weapons"
	CategoryIllicitDrugs  RiskCategory = "illicit_drugs"
	CategoryOther         RiskCategory = "other"
)

// ResponseMode hints how the final answer should be synthesized.
type ResponseMode string

const (
	ModeSafeGrounded  ResponseMode = "safe_grounded"
	ModeSafeHighLevel ResponseMode = "safe_high_level"
	ModeRefuse        ResponseMode = "refuse_with_alternatives"
)

// Ambiguity records whether the request admits materially different readings.
type Ambiguity struct {
	IsAmbiguous bool `json:"is_ambiguous" yaml:"is_ambiguous"`

	// Readings lists the competing interpretations when ambiguous.
	Readings []string `json:"readings,omitempty" yaml:"readings,omitempty"`
}

// IR is the typed introspection record produced by trace validation.
// Immutable once validated; invalid traces never reach the gate.
// Per prd001-introspection R1, R2.
type IR struct {
	IntentHypothesis string        `json:"intent_hypothesis" yaml:"intent_hypothesis"`
	RiskCategory     RiskCategory  `json:"risk_category" yaml:"risk_category"`
	Severity         Severity      `json:"severity" yaml:"severity"`
	Ambiguity        Ambiguity     `json:"ambiguity" yaml:"ambiguity"`
	RetrievalNeed    RetrievalNeed `json:"retrieval_need" yaml:"retrieval_need"`
	RetrievalRisk    RetrievalRisk `json:"retrieval_risk" yaml:"retrieval_risk"`
	ResponseMode     ResponseMode  `json:"response_mode" yaml:"response_mode"`
	Confidence       float64       `json:"confidence" yaml:"confidence"`
	Notes            string        `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Trace is a parsed introspection output: ordered reasoning steps, the IR
// record, and the user-visible summary. A trajectory node may hold a trace
// whose Steps are extended by further introspection moves.
type Trace struct {
	Raw    string   `json:"raw,omitempty" yaml:"raw,omitempty"`
	Steps  []string `json:"reasoning_steps" yaml:"reasoning_steps"`
	IR     IR       `json:"ir" yaml:"ir"`
	Output string   `json:"output" yaml:"output"`
}
