// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package introspect

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/guardrag/pkg/types"
)

// ErrValidation marks a malformed or schema-violating introspection trace.
// Callers must treat it as maximum risk: No-Retrieve, refusal-eligible.
var ErrValidation = errors.New("introspection validation failed")

// leakagePatterns flag procedural/harmful content in the user-visible
// output. A baseline guard; the judge oracle scores the final answer.
var leakagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bstep[- ]?by[- ]?step\b`),
	regexp.MustCompile(`\bexploit\b`),
	regexp.MustCompile(`\bbypass\b`),
	regexp.MustCompile(`\bpayload\b`),
	regexp.MustCompile(`\bmalware\b`),
	regexp.MustCompile(`\bhow to hack\b`),
	regexp.MustCompile(`\bbomb\b`),
	regexp.MustCompile(`\bweapon\b`),
}

var allowedCategories = map[types.RiskCategory]bool{
	types.CategoryBenignInfo:    true,
	types.CategoryMedical:       true,
	types.CategoryLegal:         true,
	types.CategoryFinancial:     true,
	types.CategorySelfHarm:      true,
	types.CategoryViolence:      true,
	types.CategoryHateExtremism: true,
	types.CategoryCyber:         true,
	types.CategoryPrivacyPII:    true,
	types.CategorySexual:        true,
	types.CategoryWeapons:       true,
	types.CategoryIllicitDrugs:  true,
	types.CategoryOther:         true,
}

var allowedSeverity = map[types.Severity]bool{
	types.SeverityLow:    true,
	types.SeverityMedium: true,
	types.SeverityHigh:   true,
}

var allowedNeed = map[types.RetrievalNeed]bool{
	types.NeedNone:     true,
	types.NeedHelpful:  true,
	types.NeedRequired: true,
}

var allowedMode = map[types.ResponseMode]bool{
	types.ModeSafeGrounded:  true,
	types.ModeSafeHighLevel: true,
	types.ModeRefuse:        true,
}

// Validate checks a parsed trace against the IR schema: enum membership,
// required fields, confidence range, and the output leakage guard. A nil
// return means the trace may enter the gate (R2, R4).
func Validate(tr types.Trace) error {
	var errs []string

	ir := tr.IR
	if strings.TrimSpace(ir.IntentHypothesis) == "" {
		errs = append(errs, "missing intent_hypothesis")
	}
	if !allowedCategories[ir.RiskCategory] {
		errs = append(errs, fmt.Sprintf("invalid risk_category %q", ir.RiskCategory))
	}
	if !allowedSeverity[ir.Severity] {
		errs = append(errs, fmt.Sprintf("invalid severity %q", ir.Severity))
	}
	if !allowedSeverity[ir.RetrievalRisk] {
		errs = append(errs, fmt.Sprintf("invalid retrieval_risk %q", ir.RetrievalRisk))
	}
	if !allowedNeed[ir.RetrievalNeed] {
		errs = append(errs, fmt.Sprintf("invalid retrieval_need %q", ir.RetrievalNeed))
	}
	if !allowedMode[ir.ResponseMode] {
		errs = append(errs, fmt.Sprintf("invalid response_mode %q", ir.ResponseMode))
	}
	if ir.Confidence < 0 || ir.Confidence > 1 {
		errs = append(errs, fmt.Sprintf("confidence %v outside [0,1]", ir.Confidence))
	}
	if containsLeakage(tr.Output) {
		errs = append(errs, "procedural leakage detected in <Output>")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(errs, "; "))
	}
	return nil
}

// ParseAndValidate parses raw introspection text and validates the result.
// Any parse failure is reported as ErrValidation so callers have a single
// fail-closed branch.
func ParseAndValidate(raw string) (types.Trace, error) {
	tr, err := ParseTrace(raw)
	if err != nil {
		return types.Trace{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := Validate(tr); err != nil {
		return types.Trace{}, err
	}
	return tr, nil
}

func containsLeakage(text string) bool {
	t := strings.ToLower(text)
	for _, re := range leakagePatterns {
		if re.MatchString(t) {
			return true
		}
	}
	return false
}
