// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package policy routes a classified request to a response mode,
// independently of the retrieval gate. The gate decides what evidence
// may be fetched; policy decides how the answer may be shaped.
// Implements: prd007-pipeline (R2); docs/ARCHITECTURE § Policy Routing.
package policy

import (
	"fmt"
	"strings"

	"github.com/pdiddy/guardrag/pkg/types"
)

// Decision is the policy verdict for one classified request.
type Decision struct {
	// Allow is false only for hard refusals.
	Allow bool `json:"allow"`

	// Mode is the response mode synthesis must honor.
	Mode types.ResponseMode `json:"response_mode"`

	// Reason is a short operator-readable routing rationale.
	Reason string `json:"reason"`

	// SafeAlternatives lists redirections offered alongside a refusal
	// or a high-level answer.
	SafeAlternatives []string `json:"safe_alternatives"`
}

// defaultAlternatives are offered when a category has no tailored set.
var defaultAlternatives = []string{
	"Provide a high-level explanation without procedural steps.",
	"Discuss risks, ethics, and relevant laws and policies.",
	"Share defensive or preventative best practices.",
}

var privacyAlternatives = []string{
	"Explain privacy best practices and how to protect personal data.",
	"Describe general compliance and safe data handling procedures.",
}

// dangerousCategories are refused outright at high severity and held to
// high-level answers at medium.
var dangerousCategories = map[types.RiskCategory]bool{
	types.CategorySelfHarm:     true,
	types.CategoryWeapons:      true,
	types.CategoryViolence:     true,
	types.CategoryIllicitDrugs: true,
	types.CategoryCyber:        true,
}

// Route maps a risk category and severity to a policy decision.
// Unknown inputs are normalized conservatively before routing.
func Route(category types.RiskCategory, severity types.Severity) Decision {
	if !knownCategory(category) {
		category = types.CategoryOther
	}
	switch severity {
	case types.SeverityLow, types.SeverityMedium, types.SeverityHigh:
	default:
		// Unrecognized severity fails closed.
		severity = types.SeverityHigh
	}

	if severity == types.SeverityHigh && dangerousCategories[category] {
		return Decision{
			Allow:            false,
			Mode:             types.ModeRefuse,
			Reason:           fmt.Sprintf("high-risk category %q at severity %q", category, severity),
			SafeAlternatives: append([]string(nil), defaultAlternatives...),
		}
	}

	if category == types.CategoryPrivacyPII {
		return Decision{
			Allow:            true,
			Mode:             types.ModeSafeHighLevel,
			Reason:           "privacy-sensitive topic: answer without exposing personal data",
			SafeAlternatives: append([]string(nil), privacyAlternatives...),
		}
	}

	if severity == types.SeverityMedium && dangerousCategories[category] {
		return Decision{
			Allow:            true,
			Mode:             types.ModeSafeHighLevel,
			Reason:           fmt.Sprintf("sensitive category %q at severity %q: non-actionable guidance only", category, severity),
			SafeAlternatives: append([]string(nil), defaultAlternatives...),
		}
	}

	return Decision{
		Allow:  true,
		Mode:   types.ModeSafeGrounded,
		Reason: "benign or low-risk topic",
	}
}

// RefusalText renders a refusal answer with numbered safe alternatives.
func RefusalText(reason string, alternatives []string) string {
	if len(alternatives) == 0 {
		alternatives = defaultAlternatives
	}
	var b strings.Builder
	b.WriteString("I can't help with that request.\n\n")
	fmt.Fprintf(&b, "Reason: %s\n\n", reason)
	b.WriteString("Here are safe alternatives I can help with:\n")
	for i, alt := range alternatives {
		fmt.Fprintf(&b, "%d) %s\n", i+1, alt)
	}
	return b.String()
}

func knownCategory(c types.RiskCategory) bool {
	switch c {
	case types.CategoryBenignInfo, types.CategoryMedical, types.CategoryLegal,
		types.CategoryFinancial, types.CategorySelfHarm, types.CategoryViolence,
		types.CategoryHateExtremism, types.CategoryCyber, types.CategoryPrivacyPII,
		types.CategorySexual, types.CategoryWeapons, types.CategoryIllicitDrugs,
		types.CategoryOther:
		return true
	}
	return false
}
