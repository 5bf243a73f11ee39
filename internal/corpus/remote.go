// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/guardrag/internal/httputil"
	"github.com/pdiddy/guardrag/pkg/types"
)

// RemoteBackend retrieves documents from an external search service over
// HTTP. The service contract is a GET endpoint taking q/limit query
// parameters and returning a JSON document list.
type RemoteBackend struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewRemoteBackend constructs a backend for cfg.RemoteURL.
func NewRemoteBackend(cfg types.CorpusConfig) *RemoteBackend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteBackend{
		baseURL:   strings.TrimRight(cfg.RemoteURL, "/"),
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

type remoteDocument struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Source    string  `json:"source"`
	CreatedAt string  `json:"created_at"`
	Score     float64 `json:"score"`
}

type remoteResponse struct {
	Documents []remoteDocument `json:"documents"`
}

// Retrieve queries the remote service and applies the allowlist and
// time window locally, since the service contract carries neither.
func (r *RemoteBackend) Retrieve(ctx context.Context, query string, topK int, c types.Constraints) ([]types.Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = 8
	}

	// Over-fetch when constraints will filter locally.
	limit := topK
	if len(c.SourceAllowlist) > 0 || c.TimeWindowDays > 0 {
		limit = topK * 3
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	reqURL := r.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, r.client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("querying remote corpus: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote corpus returned HTTP %d", resp.StatusCode)
	}

	var body remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	now := time.Now().UTC()
	docs := make([]types.Document, 0, topK)
	for _, rd := range body.Documents {
		d := types.Document{
			ID:             rd.ID,
			Text:           rd.Text,
			Source:         rd.Source,
			RetrievalScore: rd.Score,
		}
		if rd.CreatedAt != "" {
			if ts, err := time.Parse(time.RFC3339, rd.CreatedAt); err == nil {
				d.CreatedAt = ts
			}
		}
		if !allowed(d.Source, c.SourceAllowlist) {
			continue
		}
		if !withinWindow(d.CreatedAt, c.TimeWindowDays, now) {
			continue
		}
		d.Rank = len(docs) + 1
		docs = append(docs, d)
		if len(docs) == topK {
			break
		}
	}
	return docs, nil
}
