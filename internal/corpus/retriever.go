// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package corpus stores the evidence corpus and retrieves candidate
// documents under gate constraints. Each backend (SQLite FTS5, in-memory
// BM25, remote) implements the Retriever interface per the Strategy
// pattern.
// Implements: prd006-corpus (R1-R4);
//
//	docs/ARCHITECTURE § Corpus.
package corpus

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/guardrag/pkg/types"
)

// Retriever fetches candidate documents for a query under constraints.
// Implementations must respect top_k, the source allowlist, and the time
// window they are given. A failed or timed-out call surfaces as an error;
// the caller treats it as zero documents (RetrievalUnavailable policy).
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, c types.Constraints) ([]types.Document, error)
}

// New builds the retriever selected by cfg.
func New(cfg types.CorpusConfig) (Retriever, error) {
	switch cfg.Backend {
	case "fts5":
		store, err := OpenStore(cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "remote":
		if cfg.RemoteURL == "" {
			return nil, fmt.Errorf("remote retriever requires remote_url")
		}
		return NewRemoteBackend(cfg), nil
	case "bm25":
		// The BM25 backend indexes documents handed to it in memory;
		// callers load the corpus themselves.
		return NewBM25(nil), nil
	default:
		return nil, fmt.Errorf("unknown corpus backend %q", cfg.Backend)
	}
}

// allowed reports whether a document source passes the allowlist.
func allowed(source string, allowlist []string) bool {
	if len(allowlist) == 0 {
		return true
	}
	for _, a := range allowlist {
		if source == a {
			return true
		}
	}
	return false
}

// withinWindow reports whether a document timestamp passes the time
// window constraint. Documents without timestamps pass.
func withinWindow(created time.Time, windowDays int, now time.Time) bool {
	if windowDays <= 0 || created.IsZero() {
		return true
	}
	return now.Sub(created) <= time.Duration(windowDays)*24*time.Hour
}
