// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/guardrag/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the per-request audit trail",
	Long: `Audit reads the append-only decision records the pipeline writes for
every request: gate decision, filter provenance, and the winning search
path.`,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show the most recent audit records",
	RunE:  runAuditTail,
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	n, _ := cmd.Flags().GetInt("n")
	asJSON, _ := cmd.Flags().GetBool("json")
	file, _ := cmd.Flags().GetString("file")

	cfg := pipelineConfig()
	if file == "" {
		var err error
		file, err = latestAuditFile(cfg.Audit.Dir)
		if err != nil {
			return err
		}
	}

	records, err := audit.Tail(file, n)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	for _, rec := range records {
		flags := ""
		if rec.BudgetLimited {
			flags += " budget-limited"
		}
		if rec.ValidationFailed {
			flags += " validation-failed"
		}
		fmt.Printf("%s  %s  mode=%-22s action=%-12s kept=%d%s\n",
			rec.Timestamp.Format(time.RFC3339), rec.RequestID,
			rec.Mode, rec.Plan.Action, len(rec.Evidence.Kept), flags)
	}
	return nil
}

// latestAuditFile picks the newest daily JSONL file in dir.
func latestAuditFile(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("no audit files in %s", dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

func init() {
	auditTailCmd.Flags().Int("n", 10, "number of records to show")
	auditTailCmd.Flags().Bool("json", false, "output records as JSON")
	auditTailCmd.Flags().String("file", "", "audit file (default: newest in audit dir)")

	auditCmd.AddCommand(auditTailCmd)
	rootCmd.AddCommand(auditCmd)
}
