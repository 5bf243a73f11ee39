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

var answerCmd = &cobra.Command{
	Use:   "answer [prompt]",
	Short: "Run the full safety pipeline for one prompt",
	Long: `Answer runs introspection, the retrieval gate, the evidence safety
filter, and the trajectory search for a prompt, then prints the winning
answer. Every run appends one record to the audit trail.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnswer,
}

func runAnswer(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	showEvidence, _ := cmd.Flags().GetBool("evidence")

	p, err := pipeline.New(pipelineConfig(), os.Stderr)
	if err != nil {
		return err
	}
	defer p.Close()

	resp, err := p.Answer(context.Background(), strings.Join(args, " "))
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Println(resp.Answer)
	fmt.Fprintf(os.Stderr, "\n[%s] mode=%s action=%s", resp.RequestID, resp.Mode, resp.Plan.Action)
	if resp.BudgetLimited {
		fmt.Fprint(os.Stderr, " budget-limited")
	}
	fmt.Fprintln(os.Stderr)

	if showEvidence {
		for _, d := range resp.Evidence.Kept {
			fmt.Fprintf(os.Stderr, "kept   %-12s s=%+.2f [%s]\n", d.ID, d.SafetyScore, d.Source)
		}
		for _, d := range resp.Evidence.Filtered {
			fmt.Fprintf(os.Stderr, "pruned %-12s s=%+.2f reason=%s\n", d.ID, d.SafetyScore, d.Reason)
		}
	}
	return nil
}

func init() {
	answerCmd.Flags().Bool("json", false, "output the full response as JSON")
	answerCmd.Flags().Bool("evidence", false, "print per-document filter verdicts")

	rootCmd.AddCommand(answerCmd)
}
