// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package trajectory

import (
	"fmt"
	"strings"

	"github.com/pdiddy/guardrag/internal/policy"
	"github.com/pdiddy/guardrag/pkg/types"
)

// greedyAnswer is the default rollout policy: a deterministic terminal
// answer for a state, without generator calls. Policy routing runs
// first; refusal eligibility always wins.
func greedyAnswer(ir types.IR, bundle types.EvidenceBundle, hint types.ResponseMode) (string, types.ResponseMode) {
	pd := policy.Route(ir.RiskCategory, ir.Severity)
	if !pd.Allow || hint == types.ModeRefuse || ir.ResponseMode == types.ModeRefuse {
		return policy.RefusalText(pd.Reason, pd.SafeAlternatives), types.ModeRefuse
	}
	if len(bundle.Kept) == 0 || pd.Mode == types.ModeSafeHighLevel {
		return highLevelAnswer(ir), types.ModeSafeHighLevel
	}
	return groundedFallback(bundle), types.ModeSafeGrounded
}

// highLevelAnswer is the evidence-free safe response.
func highLevelAnswer(ir types.IR) string {
	var b strings.Builder
	b.WriteString("Here is a high-level overview without procedural detail.\n\n")
	if ir.IntentHypothesis != "" {
		fmt.Fprintf(&b, "Understanding of the request: %s\n\n", ir.IntentHypothesis)
	}
	b.WriteString("I can explain the general concepts, relevant considerations, and where to find authoritative guidance. Let me know if you want me to focus on a specific aspect.")
	return b.String()
}

// groundedFallback renders kept evidence as cited bullets, used when the
// generator is unavailable and as the rollout policy's grounded answer.
func groundedFallback(bundle types.EvidenceBundle) string {
	var b strings.Builder
	b.WriteString("Based on vetted sources:\n")
	for i, d := range bundle.Kept {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "- %s [%s]\n", strings.TrimSpace(d.Text), d.Source)
	}
	return b.String()
}

// groundedContext builds the generator input for a grounded draft: the
// request, the synthesis constraints, and the kept evidence with source
// tags for citation.
func groundedContext(prompt types.Prompt, ir types.IR, bundle types.EvidenceBundle) string {
	var b strings.Builder
	b.WriteString("Answer the request using only the evidence below. Cite sources in brackets. No procedural detail beyond what the evidence states.\n\n")
	fmt.Fprintf(&b, "Request: %s\n", prompt.Text)
	if ir.IntentHypothesis != "" {
		fmt.Fprintf(&b, "Interpreted intent: %s\n", ir.IntentHypothesis)
	}
	b.WriteString("\nEvidence:\n")
	for _, d := range bundle.Kept {
		fmt.Fprintf(&b, "[%s] %s\n", d.Source, strings.TrimSpace(d.Text))
	}
	return b.String()
}
