// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ScoreKind selects which judgement the oracle is asked to make.
type ScoreKind string

const (
	ScoreDocSafety      ScoreKind = "doc-safety"
	ScoreResponseSafety ScoreKind = "response-safety"
	ScoreHelpfulness    ScoreKind = "helpfulness"
	ScoreIntrospection  ScoreKind = "introspection-quality"
)

// JudgeScore is one oracle verdict with its label and rationale.
type JudgeScore struct {
	// Score is the scalar verdict. Safety kinds range over [-1, 1];
	// helpfulness and introspection quality over [0, 1].
	Score float64 `json:"score" yaml:"score"`

	Label     string `json:"label" yaml:"label"`
	Rationale string `json:"rationale" yaml:"rationale"`
}

// Scores bundles the three judge verdicts for one candidate.
type Scores struct {
	Helpfulness   JudgeScore `json:"helpfulness" yaml:"helpfulness"`
	Safety        JudgeScore `json:"safety" yaml:"safety"`
	Introspection JudgeScore `json:"introspection" yaml:"introspection"`
}

// CompositeResult is the combined reward R = F(S)*H + S + lambda*I with
// its term breakdown for the audit trail. Never persisted apart from the
// node it scored.
type CompositeResult struct {
	H float64 `json:"h" yaml:"h"`
	S float64 `json:"s" yaml:"s"`
	I float64 `json:"i" yaml:"i"`
	R float64 `json:"r" yaml:"r"`

	// GatedS is F(S): zero below the safety floor, otherwise S clamped
	// to [0, 1]. Kept so the audit trail shows when the veto fired.
	GatedS float64 `json:"gated_s" yaml:"gated_s"`
}

// Vetoed reports whether the safety veto zeroed the helpfulness term.
func (c CompositeResult) Vetoed() bool {
	return c.GatedS == 0
}
