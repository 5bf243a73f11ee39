// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reward combines helpfulness, safety, and introspection quality
// into one scalar with a safety-veto nonlinearity.
// Implements: prd005-trajectory-search (R4);
//
//	docs/ARCHITECTURE § Composite Reward.
package reward

import (
	"github.com/pdiddy/guardrag/pkg/types"
)

// Composite computes R = F(S)*H + S + lambda*I.
//
// F(S) is a veto gate, not a smooth discount: zero when S is below the
// safety floor, otherwise S clamped to [0, 1]. Helpfulness is zeroed —
// not merely reduced — below the floor, so no amount of helpfulness
// compensates for an unsafe trajectory. Deterministic for identical
// inputs; required by the cache and the reproducibility property.
//
// Expected ranges: H and I in [0, 1], S in [-1, 1]; inputs are clamped
// so a misbehaving judge cannot push R outside its bounds.
func Composite(h, s, i float64, cfg types.RewardConfig) types.CompositeResult {
	h = clamp(h, 0, 1)
	s = clamp(s, -1, 1)
	i = clamp(i, 0, 1)

	gated := 0.0
	if s >= cfg.TauSafety {
		gated = clamp(s, 0, 1)
	}

	return types.CompositeResult{
		H:      h,
		S:      s,
		I:      i,
		GatedS: gated,
		R:      gated*h + s + cfg.Lambda*i,
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
