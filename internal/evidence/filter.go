// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evidence scores retrieved documents for safety and prunes the
// bundle before any document reaches synthesis. Unsafe evidence is
// dropped, never paraphrased. Implements: prd003-evidence-filter (R1-R4);
// docs/ARCHITECTURE § Evidence Filter.
package evidence

import (
	"context"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/pdiddy/guardrag/internal/corpus"
	"github.com/pdiddy/guardrag/internal/gate"
	"github.com/pdiddy/guardrag/internal/oracle"
	"github.com/pdiddy/guardrag/internal/scorecache"
	"github.com/pdiddy/guardrag/pkg/types"
)

// maxFallbackRetries bounds the fallback chain: one restricted retry,
// one rewritten retry, then the no-evidence terminal state (R3.4).
const maxFallbackRetries = 2

// Filter gathers evidence for a retrieval plan and prunes documents the
// judge scores below the safety threshold.
type Filter struct {
	retriever corpus.Retriever
	judge     oracle.Judge
	cache     *scorecache.Cache
	cfg       types.FilterConfig
	gateCfg   types.GateConfig
}

// NewFilter wires the filter to its retriever, judge, and score cache.
func NewFilter(r corpus.Retriever, j oracle.Judge, c *scorecache.Cache, cfg types.FilterConfig, gateCfg types.GateConfig) *Filter {
	return &Filter{retriever: r, judge: j, cache: c, cfg: cfg, gateCfg: gateCfg}
}

// Gather executes the plan, scores every retrieved document, and returns
// the pruned bundle plus the plan actually executed (the original, or a
// fallback derivative). Provenance is total: every document the judge
// saw appears in Kept or Filtered (R4.1).
//
// When fewer than minKeep documents survive, the filter escalates:
// restricted re-retrieval first (unless the plan was already restricted),
// then a specificity-stripped rewrite, then the empty no-evidence bundle.
// A retriever failure counts as zero documents and enters the same chain;
// Gather returns an error only when the context is done.
func (f *Filter) Gather(ctx context.Context, prompt types.Prompt, ir types.IR, plan types.RetrievalPlan) (types.EvidenceBundle, types.RetrievalPlan, error) {
	if plan.Action == types.ActionNoRetrieve {
		return types.EvidenceBundle{Fallback: types.FallbackNoEvidence}, plan, nil
	}

	minKeep := f.cfg.MinKeep
	if minKeep <= 0 {
		minKeep = int(math.Max(1, math.Ceil(0.3*float64(plan.TopK))))
	}

	bundle := types.EvidenceBundle{Fallback: types.FallbackNone}
	current := plan

	for {
		docs, err := f.retriever.Retrieve(ctx, current.Query, current.TopK, current.Constraints)
		if err != nil {
			if ctx.Err() != nil {
				return types.EvidenceBundle{}, current, fmt.Errorf("retrieving evidence: %w", err)
			}
			// Retrieval failure counts as zero documents returned; the
			// fallback chain below still runs (R3.1).
			docs = nil
		}

		kept, filtered, err := f.scoreAll(ctx, prompt, ir, docs)
		if err != nil {
			return types.EvidenceBundle{}, current, err
		}
		// Pruned documents from every attempt stay in the provenance.
		bundle.Filtered = append(bundle.Filtered, filtered...)

		if len(kept) >= minKeep {
			bundle.Kept = kept
			return bundle, current, nil
		}

		if bundle.Retries >= maxFallbackRetries {
			bundle.Filtered = append(bundle.Filtered, markPruned(kept, "insufficient_evidence")...)
			bundle.Kept = nil
			bundle.Fallback = types.FallbackNoEvidence
			return bundle, current, nil
		}
		bundle.Retries++
		// Kept-but-insufficient documents stay in the provenance too; the
		// next attempt starts a fresh kept set.
		bundle.Filtered = append(bundle.Filtered, markPruned(kept, "insufficient_evidence")...)

		// Escalate: restrict first, unless the plan already was restricted.
		if current.Action != types.ActionRestrict && bundle.Fallback == types.FallbackNone {
			current = gate.RestrictPlan(plan.Query, f.gateCfg)
			bundle.Fallback = types.FallbackRestricted
			continue
		}

		rewritten := gate.StripSpecificity(current.Query)
		if rewritten == current.Query || bundle.Fallback == types.FallbackRewritten {
			bundle.Kept = nil
			bundle.Fallback = types.FallbackNoEvidence
			return bundle, current, nil
		}
		current.Query = rewritten
		current.RewriteApplied = true
		bundle.Fallback = types.FallbackRewritten
	}
}

// scoreAll judges every document through the cache and partitions the
// results. Retrieval order is preserved in both partitions.
func (f *Filter) scoreAll(ctx context.Context, prompt types.Prompt, ir types.IR, docs []types.Document) (kept, filtered []types.ScoredDocument, err error) {
	for _, d := range docs {
		jc := oracle.Context{Prompt: prompt.Text, IR: ir, Candidate: d.ID + "\n" + d.Text}
		key := jc.Fingerprint(types.ScoreDocSafety)

		verdict, scoreErr := f.cache.GetOrCompute(ctx, key, func(ctx context.Context) (types.JudgeScore, error) {
			return f.judge.Score(ctx, types.ScoreDocSafety, jc)
		})

		sd := types.ScoredDocument{Document: d}
		if scoreErr != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			// No verdict is never treated as safe.
			sd.SafetyScore = -1
			sd.Reason = "score_unavailable"
			filtered = append(filtered, sd)
			continue
		}

		sd.SafetyScore = verdict.Score
		if verdict.Score >= f.cfg.DropBelow {
			sd.Kept = true
			sd.Reason = keepReason(verdict)
			sd.Text = truncate(sd.Text, f.cfg.MaxSnippetChars)
			kept = append(kept, sd)
		} else {
			sd.Reason = pruneReason(verdict)
			filtered = append(filtered, sd)
		}
	}
	return kept, filtered, nil
}

func keepReason(v types.JudgeScore) string {
	if v.Label != "" {
		return v.Label
	}
	return "clear"
}

func pruneReason(v types.JudgeScore) string {
	if v.Label != "" {
		return v.Label
	}
	return "below_threshold"
}

// markPruned demotes kept documents that could not form a sufficient
// bundle, so the no-evidence terminal state still carries full provenance.
func markPruned(kept []types.ScoredDocument, reason string) []types.ScoredDocument {
	out := make([]types.ScoredDocument, 0, len(kept))
	for _, sd := range kept {
		sd.Kept = false
		sd.Reason = reason
		out = append(out, sd)
	}
	return out
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
