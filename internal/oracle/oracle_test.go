// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"context"
	"strings"
	"testing"

	"github.com/pdiddy/guardrag/pkg/types"
)

func TestFingerprintDeterministic(t *testing.T) {
	jc := Context{
		Prompt:    "what is photosynthesis",
		IR:        types.IR{Severity: types.SeverityLow, RiskCategory: types.CategoryBenignInfo},
		Candidate: "Photosynthesis converts light into chemical energy.",
	}
	a := jc.Fingerprint(types.ScoreHelpfulness)
	b := jc.Fingerprint(types.ScoreHelpfulness)
	if a != b {
		t.Error("identical contexts produced different fingerprints")
	}
	if a == jc.Fingerprint(types.ScoreResponseSafety) {
		t.Error("different kinds share a fingerprint")
	}

	other := jc
	other.Candidate += "!"
	if a == other.Fingerprint(types.ScoreHelpfulness) {
		t.Error("different candidates share a fingerprint")
	}
}

func TestHeuristicDocSafety(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		ir        types.IR
		wantSign  int // -1 negative, +1 non-negative
		wantLabel string
	}{
		{"procedural harm", "a step-by-step exploit guide", types.IR{}, -1, "procedural_harm"},
		{"pii", "her passport and credit card numbers", types.IR{}, -1, "pii"},
		{"pii stricter under privacy context", "ssn records", types.IR{RiskCategory: types.CategoryPrivacyPII}, -1, "pii"},
		{"neutral under high severity", "general chemistry background", types.IR{Severity: types.SeverityHigh}, 1, "high_severity_context"},
		{"clean", "the mitochondria is the powerhouse of the cell", types.IR{}, 1, "safe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HeuristicJudge{}.Score(context.Background(), types.ScoreDocSafety, Context{Candidate: tt.candidate, IR: tt.ir})
			if err != nil {
				t.Fatal(err)
			}
			if tt.wantSign < 0 && got.Score >= 0 {
				t.Errorf("Score = %v, want negative", got.Score)
			}
			if tt.wantSign > 0 && got.Score < 0 {
				t.Errorf("Score = %v, want non-negative", got.Score)
			}
			if got.Label != tt.wantLabel {
				t.Errorf("Label = %q, want %q", got.Label, tt.wantLabel)
			}
		})
	}
}

func TestHeuristicPIIScoresTighterUnderPrivacyContext(t *testing.T) {
	base, _ := HeuristicJudge{}.Score(context.Background(), types.ScoreDocSafety, Context{Candidate: "a passport scan"})
	strict, _ := HeuristicJudge{}.Score(context.Background(), types.ScoreDocSafety, Context{
		Candidate: "a passport scan",
		IR:        types.IR{RiskCategory: types.CategoryPrivacyPII},
	})
	if strict.Score >= base.Score {
		t.Errorf("privacy context score %v not stricter than %v", strict.Score, base.Score)
	}
}

func TestHeuristicResponseSafety(t *testing.T) {
	j := HeuristicJudge{}
	unsafe, _ := j.Score(context.Background(), types.ScoreResponseSafety, Context{Candidate: "here is the malware payload"})
	if unsafe.Score >= 0 {
		t.Errorf("unsafe response scored %v", unsafe.Score)
	}
	refusal, _ := j.Score(context.Background(), types.ScoreResponseSafety, Context{Candidate: "I can't help with that request."})
	if refusal.Label != "refusal" || refusal.Score <= 0 {
		t.Errorf("refusal scored %+v", refusal)
	}
}

func TestHeuristicHelpfulnessRange(t *testing.T) {
	j := HeuristicJudge{}
	for _, candidate := range []string{
		"",
		"short",
		strings.Repeat("a reasonable explanation. ", 10),
		strings.Repeat("padding ", 200),
		"I can't help with that. Here are safe alternatives I can help with.",
	} {
		got, err := j.Score(context.Background(), types.ScoreHelpfulness, Context{Candidate: candidate})
		if err != nil {
			t.Fatal(err)
		}
		if got.Score < 0 || got.Score > 1 {
			t.Errorf("helpfulness %v outside [0,1] for %q", got.Score, candidate[:min(20, len(candidate))])
		}
	}
}

func TestHeuristicIntrospection(t *testing.T) {
	j := HeuristicJudge{}

	complete := types.IR{
		IntentHypothesis: "x", RiskCategory: types.CategoryBenignInfo,
		Severity: types.SeverityLow, RetrievalNeed: types.NeedHelpful,
		RetrievalRisk: types.SeverityLow, ResponseMode: types.ModeSafeGrounded,
	}
	got, _ := j.Score(context.Background(), types.ScoreIntrospection, Context{IR: complete})
	if got.Label != "ok" {
		t.Errorf("complete IR labeled %q", got.Label)
	}

	incomplete := complete
	incomplete.Severity = ""
	got, _ = j.Score(context.Background(), types.ScoreIntrospection, Context{IR: incomplete})
	if got.Label != "incomplete" {
		t.Errorf("incomplete IR labeled %q", got.Label)
	}

	contradictory := complete
	contradictory.ResponseMode = types.ModeRefuse
	contradictory.RetrievalNeed = types.NeedRequired
	got, _ = j.Score(context.Background(), types.ScoreIntrospection, Context{IR: contradictory})
	if got.Label != "inconsistent" {
		t.Errorf("contradictory IR labeled %q", got.Label)
	}
}

func TestUnknownKindErrors(t *testing.T) {
	if _, err := (HeuristicJudge{}).Score(context.Background(), "vibes", Context{}); err == nil {
		t.Error("unknown kind did not error")
	}
}

func TestExtractJSON(t *testing.T) {
	got := extractJSON("Sure! Here you go:\n```json\n{\"score\": 0.5}\n```")
	if got != `{"score": 0.5}` {
		t.Errorf("extractJSON() = %q", got)
	}
}
