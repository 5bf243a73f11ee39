// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package introspect parses and validates structured introspection output
// into a typed risk record before any retrieval decision is made.
// Implements: prd001-introspection (R1-R4);
//
//	docs/ARCHITECTURE § Introspection.
package introspect

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/guardrag/pkg/types"
)

// Introspection output is tag-delimited text:
//
//	<Reasoning_step>...</Reasoning_step>   (one or more)
//	<IR_JSON>{...}</IR_JSON>               (one JSON object)
//	<Output>...</Output>                   (non-empty summary)
var (
	reasoningStepRe = regexp.MustCompile(`(?s)<Reasoning_step>(.*?)</Reasoning_step>`)
	irJSONRe        = regexp.MustCompile(`(?s)<IR_JSON>(.*?)</IR_JSON>`)
	outputRe        = regexp.MustCompile(`(?s)<Output>(.*?)</Output>`)
)

// ParseTrace parses raw introspection text into a Trace. It enforces the
// tag structure only; schema validation is Validate's job (R1.2).
func ParseTrace(raw string) (types.Trace, error) {
	raw = strings.TrimSpace(raw)

	var steps []string
	for _, m := range reasoningStepRe.FindAllStringSubmatch(raw, -1) {
		steps = append(steps, strings.TrimSpace(m[1]))
	}
	if len(steps) == 0 {
		return types.Trace{}, fmt.Errorf("no <Reasoning_step> blocks found")
	}

	irMatch := irJSONRe.FindStringSubmatch(raw)
	if irMatch == nil {
		return types.Trace{}, fmt.Errorf("missing <IR_JSON> block")
	}
	var ir types.IR
	dec := json.NewDecoder(strings.NewReader(irMatch[1]))
	if err := dec.Decode(&ir); err != nil {
		return types.Trace{}, fmt.Errorf("parsing <IR_JSON>: %w", err)
	}

	outMatch := outputRe.FindStringSubmatch(raw)
	if outMatch == nil || strings.TrimSpace(outMatch[1]) == "" {
		return types.Trace{}, fmt.Errorf("missing or empty <Output> block")
	}

	return types.Trace{
		Raw:    raw,
		Steps:  steps,
		IR:     ir,
		Output: strings.TrimSpace(outMatch[1]),
	}, nil
}
