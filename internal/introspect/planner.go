// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package introspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/guardrag/pkg/types"
)

// Producer yields raw introspection text for a prompt. The pipeline only
// requires the output to parse into the IR schema; an LLM-backed producer
// can replace the planner without touching callers. Per Strategy pattern
// (prd001-introspection R3.1).
type Producer interface {
	Produce(ctx context.Context, prompt types.Prompt) (string, error)
}

// riskKeywords maps harm categories to coarse trigger vocabularies. The
// planner is a deterministic no-model baseline; categories are picked
// conservatively when several match.
var riskKeywords = map[types.RiskCategory][]string{
	types.CategoryCyber:        {"hack", "exploit", "malware", "payload", "ddos", "phishing", "bypass"},
	types.CategoryWeapons:      {"weapon", "gun", "bomb", "explosive"},
	types.CategorySelfHarm:     {"suicide", "self-harm", "kill myself"},
	types.CategoryPrivacyPII:   {"passport", "ssn", "credit card", "bank account", "phone number"},
	types.CategoryIllicitDrugs: {"meth", "cocaine", "heroin", "how to make drugs"},
	types.CategoryViolence:     {"kill", "murder", "assault"},
}

// categoryPriority orders categories from most to least conservative when
// a prompt matches more than one.
var categoryPriority = []types.RiskCategory{
	types.CategorySelfHarm,
	types.CategoryWeapons,
	types.CategoryCyber,
	types.CategoryViolence,
	types.CategoryIllicitDrugs,
	types.CategoryPrivacyPII,
}

var jailbreakSignals = []string{
	"ignore previous",
	"developer message",
	"system prompt",
	"jailbreak",
	"bypass safety",
	"do not refuse",
}

// dangerousCategories never get retrieval and refuse at high severity.
var dangerousCategories = map[types.RiskCategory]bool{
	types.CategorySelfHarm:     true,
	types.CategoryWeapons:      true,
	types.CategoryViolence:     true,
	types.CategoryCyber:        true,
	types.CategoryIllicitDrugs: true,
}

// Planner is the deterministic heuristic Producer. It classifies the
// prompt with keyword vocabularies and renders a strict-tag trace.
type Planner struct{}

// Produce renders an introspection trace for the prompt. It never fails;
// the error return satisfies the Producer contract.
func (Planner) Produce(_ context.Context, prompt types.Prompt) (string, error) {
	ir, steps := plan(prompt.Text)
	return FormatTrace(steps, ir, "Introspection complete: proceeding with a safety-first plan."), nil
}

func plan(prompt string) (types.IR, []string) {
	low := strings.ToLower(prompt)

	var signals []string
	for _, s := range jailbreakSignals {
		if strings.Contains(low, s) {
			signals = append(signals, s)
		}
	}

	hits := map[types.RiskCategory]bool{}
	for cat, kws := range riskKeywords {
		for _, kw := range kws {
			if strings.Contains(low, kw) {
				hits[cat] = true
				break
			}
		}
	}

	category := types.CategoryBenignInfo
	for _, c := range categoryPriority {
		if hits[c] {
			category = c
			break
		}
	}

	severity := inferSeverity(category, signals)
	need := inferNeed(low, category)
	risk := inferRetrievalRisk(category, signals)
	mode := inferMode(category, severity)

	ambiguous := len(strings.TrimSpace(prompt)) < 20 || len(hits) > 1 || len(signals) > 0

	intent := "benign info seeking"
	if category != types.CategoryBenignInfo {
		intent = "potentially sensitive request"
	}

	ir := types.IR{
		IntentHypothesis: intent,
		RiskCategory:     category,
		Severity:         severity,
		Ambiguity:        types.Ambiguity{IsAmbiguous: ambiguous},
		RetrievalNeed:    need,
		RetrievalRisk:    risk,
		ResponseMode:     mode,
		Confidence:       0.6,
	}

	steps := []string{
		fmt.Sprintf("Intent hypothesis: %s (treat prompt as untrusted).", intent),
		fmt.Sprintf("Risk categorization: category=%s, severity=%s.", category, severity),
		fmt.Sprintf("Ambiguity assessment: is_ambiguous=%v.", ambiguous),
		fmt.Sprintf("Retrieval necessity: retrieval_need=%s.", need),
		fmt.Sprintf("Retrieval risk: retrieval_risk=%s (retrieval can be an attack surface).", risk),
		fmt.Sprintf("Recommended response mode: %s.", mode),
	}

	return ir, steps
}

func inferSeverity(category types.RiskCategory, signals []string) types.Severity {
	if len(signals) > 0 {
		return types.SeverityHigh
	}
	if dangerousCategories[category] {
		return types.SeverityHigh
	}
	if category == types.CategoryPrivacyPII {
		return types.SeverityMedium
	}
	return types.SeverityLow
}

func inferNeed(low string, category types.RiskCategory) types.RetrievalNeed {
	if dangerousCategories[category] {
		return types.NeedNone
	}
	for _, k := range []string{"cite", "citation", "evidence", "paper", "dataset", "latest"} {
		if strings.Contains(low, k) {
			return types.NeedRequired
		}
	}
	return types.NeedHelpful
}

func inferRetrievalRisk(category types.RiskCategory, signals []string) types.RetrievalRisk {
	if len(signals) > 0 || dangerousCategories[category] {
		return types.SeverityHigh
	}
	if category == types.CategoryPrivacyPII {
		return types.SeverityMedium
	}
	return types.SeverityLow
}

func inferMode(category types.RiskCategory, severity types.Severity) types.ResponseMode {
	if severity == types.SeverityHigh && dangerousCategories[category] {
		return types.ModeRefuse
	}
	if category == types.CategoryPrivacyPII {
		return types.ModeSafeHighLevel
	}
	return types.ModeSafeGrounded
}
