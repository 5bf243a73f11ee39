// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/guardrag/internal/pipeline"
)

var gateCmd = &cobra.Command{
	Use:   "gate [prompt]",
	Short: "Show the retrieval gate decision for a prompt",
	Long: `Gate runs introspection and the retrieval gate only, without retrieval
or search. Useful for inspecting how a prompt is classified and what
constraints retrieval would run under.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGate,
}

func runGate(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	p, err := pipeline.New(pipelineConfig(), os.Stderr)
	if err != nil {
		return err
	}
	defer p.Close()

	ir, plan, err := p.Gate(context.Background(), strings.Join(args, " "))
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"ir": ir, "plan": plan})
	}

	fmt.Printf("category:       %s\n", ir.RiskCategory)
	fmt.Printf("severity:       %s\n", ir.Severity)
	fmt.Printf("retrieval-need: %s\n", ir.RetrievalNeed)
	fmt.Printf("retrieval-risk: %s\n", ir.RetrievalRisk)
	fmt.Printf("action:         %s\n", plan.Action)
	if plan.Query != "" {
		fmt.Printf("query:          %s\n", plan.Query)
		fmt.Printf("top-k:          %d\n", plan.TopK)
	}
	if plan.RewriteApplied {
		fmt.Printf("removed-terms:  %s\n", strings.Join(plan.RemovedTerms, ", "))
	}
	fmt.Printf("rationale:      %s\n", plan.Rationale)
	return nil
}

func init() {
	gateCmd.Flags().Bool("json", false, "output the IR and plan as JSON")

	rootCmd.AddCommand(gateCmd)
}
