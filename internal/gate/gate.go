// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gate decides whether, and under what constraints, retrieval may
// run for a validated introspection record.
// Implements: prd002-gate (R1-R3);
//
//	docs/ARCHITECTURE § Retrieval Gate.
package gate

import (
	"github.com/pdiddy/guardrag/pkg/types"
)

// Decide maps a prompt and validated IR to a retrieval plan. Pure: no I/O,
// no clock, no randomness. Callers must have validated the trace; an
// invalid trace never reaches the gate and is treated upstream as an
// automatic No-Retrieve with refusal (R1.4).
//
// Priority order, first match wins:
//  1. high severity or high retrieval risk -> No-Retrieve, refusal-eligible
//  2. no retrieval need -> No-Retrieve (answerable from general knowledge)
//  3. medium severity/risk, or ambiguity -> Restrict with allowlist,
//     reduced top_k, and a denylist-stripping query rewrite
//  4. otherwise -> Retrieve with the default top_k and unmodified query
func Decide(prompt types.Prompt, ir types.IR, cfg types.GateConfig) types.RetrievalPlan {
	if ir.Severity == types.SeverityHigh || ir.RetrievalRisk == types.SeverityHigh {
		return noRetrievePlan(types.ModeRefuse, "high severity or retrieval risk: retrieval denied")
	}

	if ir.RetrievalNeed == types.NeedNone {
		return noRetrievePlan(types.ModeSafeHighLevel, "no retrieval need: answerable from general knowledge")
	}

	if ir.Severity == types.SeverityMedium || ir.RetrievalRisk == types.SeverityMedium || ir.Ambiguity.IsAmbiguous {
		return RestrictPlan(prompt.Text, cfg)
	}

	return types.RetrievalPlan{
		Action:               types.ActionRetrieve,
		Query:                prompt.Text,
		TopK:                 cfg.DefaultTopK,
		ExpectedEvidenceType: "high_level_overview",
		ResponseHint:         types.ModeSafeGrounded,
		Rationale:            "low risk and retrieval need present: full retrieval",
	}
}

// RestrictPlan builds the restricted plan for a query: trusted-source
// allowlist, reduced top_k, and the denylist rewrite. The evidence filter
// reuses it when downgrading a Retrieve plan during fallback (R3.1).
func RestrictPlan(query string, cfg types.GateConfig) types.RetrievalPlan {
	topK := cfg.RestrictTopK
	if topK <= 0 {
		topK = cfg.DefaultTopK / 2
		if topK < 3 {
			topK = 3
		}
	}

	rw := Rewrite(query, cfg.DenylistTerms)

	return types.RetrievalPlan{
		Action: types.ActionRestrict,
		Query:  rw.Query,
		TopK:   topK,
		Constraints: types.Constraints{
			SourceAllowlist: cfg.SourceAllowlist,
			DenylistTerms:   cfg.DenylistTerms,
			TimeWindowDays:  cfg.TimeWindowDays,
			MaxSnippetChars: cfg.MaxSnippetChars,
		},
		ExpectedEvidenceType: "high_level_overview",
		ResponseHint:         types.ModeSafeHighLevel,
		RewriteApplied:       rw.Rewrote,
		RemovedTerms:         rw.RemovedTerms,
		Rationale:            "medium risk or ambiguity: restricted retrieval with rewrite",
	}
}

func noRetrievePlan(hint types.ResponseMode, rationale string) types.RetrievalPlan {
	// Query and constraints stay empty; retrieval never runs for this plan.
	return types.RetrievalPlan{
		Action:               types.ActionNoRetrieve,
		ExpectedEvidenceType: "none",
		ResponseHint:         hint,
		Rationale:            rationale,
	}
}
