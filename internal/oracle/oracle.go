// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package oracle defines the judge and generator capability interfaces and
// their shippable backends. The gate, filter, and search engine depend
// only on these contracts, never on concrete types, so tests supply mocks
// and deployments swap models freely. Per Strategy pattern
// (prd005-trajectory-search R4.1, docs/ARCHITECTURE § Oracles).
package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/pdiddy/guardrag/pkg/types"
)

// Context is the fingerprintable input to one judge call: the prompt, the
// IR under evaluation, and the candidate text (answer or document).
type Context struct {
	Prompt    string   `json:"prompt"`
	IR        types.IR `json:"ir"`
	Candidate string   `json:"candidate"`
}

// Fingerprint returns a deterministic key for caching: SHA-256 over the
// canonical JSON of the context plus the score kind. Identical inputs
// always produce identical keys (prd004-score-cache R1.1).
func (c Context) Fingerprint(kind types.ScoreKind) string {
	raw, err := json.Marshal(c)
	if err != nil {
		// Context contains only marshalable fields; this cannot happen.
		raw = []byte(c.Prompt + c.Candidate)
	}
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))
}

// Judge scores a candidate on one axis. Safety kinds return scores in
// [-1, 1]; helpfulness and introspection quality in [0, 1]. A returned
// error means "no verdict", never "no opinion = safe".
type Judge interface {
	Score(ctx context.Context, kind types.ScoreKind, jc Context) (types.JudgeScore, error)
}

// Generator produces candidate response text from a prompt context. It
// must behave deterministically under a fixed seed when reproducibility
// is requested.
type Generator interface {
	Complete(ctx context.Context, promptContext string) (string, error)
}

// New builds the judge and generator configured by cfg.
func New(cfg types.OracleConfig) (Judge, Generator, error) {
	switch cfg.Provider {
	case "", "heuristic":
		return HeuristicJudge{}, TemplateGenerator{}, nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, nil, fmt.Errorf("openai oracle requires an API key")
		}
		c := newOpenAIClient(cfg)
		return c, c, nil
	default:
		return nil, nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
}
