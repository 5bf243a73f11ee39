// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gate

import (
	"regexp"
	"strings"
)

// fallbackQuery replaces a query the rewrite emptied out entirely.
const fallbackQuery = "high-level overview and definitions"

var spaceRe = regexp.MustCompile(`\s+`)

// RewriteResult reports what the safe query rewrite did.
type RewriteResult struct {
	Query        string
	Rewrote      bool
	RemovedTerms []string
}

// Rewrite strips denylisted trigger phrases from a query while preserving
// its informational core: remove matched terms case-insensitively,
// collapse whitespace, and substitute a safe generic query if nothing
// remains (R2.4).
func Rewrite(query string, denylist []string) RewriteResult {
	q := strings.TrimSpace(query)
	res := RewriteResult{}

	for _, term := range denylist {
		if term == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(q), strings.ToLower(term)) {
			continue
		}
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(term))
		if err != nil {
			continue
		}
		q = re.ReplaceAllString(q, "")
		res.RemovedTerms = append(res.RemovedTerms, term)
		res.Rewrote = true
	}

	q = strings.TrimSpace(spaceRe.ReplaceAllString(q, " "))
	if q == "" {
		q = fallbackQuery
		res.Rewrote = true
	}

	res.Query = q
	return res
}

// StripSpecificity further generalizes a query for the second fallback
// stage: drop quoted fragments and numbers so retrieval matches broader
// background material (prd003-evidence-filter R3.2).
func StripSpecificity(query string) string {
	q := regexp.MustCompile(`"[^"]*"`).ReplaceAllString(query, "")
	q = regexp.MustCompile(`\b\d+\b`).ReplaceAllString(q, "")
	q = strings.TrimSpace(spaceRe.ReplaceAllString(q, " "))
	if q == "" {
		return fallbackQuery
	}
	return q
}
