// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package introspect

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/guardrag/pkg/types"
)

// FormatTrace renders reasoning steps, an IR record, and an output summary
// into the strict tag structure ParseTrace accepts. Producers use it so
// planner output round-trips through the same validation path as model
// output (R3.2).
func FormatTrace(steps []string, ir types.IR, output string) string {
	var b strings.Builder
	for _, s := range steps {
		fmt.Fprintf(&b, "<Reasoning_step>\n%s\n</Reasoning_step>\n\n", strings.TrimSpace(s))
	}

	irJSON, err := json.MarshalIndent(ir, "", "  ")
	if err != nil {
		// types.IR contains only marshalable fields; this cannot happen.
		irJSON = []byte("{}")
	}
	fmt.Fprintf(&b, "<IR_JSON>\n%s\n</IR_JSON>\n\n", irJSON)
	fmt.Fprintf(&b, "<Output>\n%s\n</Output>\n", strings.TrimSpace(output))
	return b.String()
}
