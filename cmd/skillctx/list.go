package main

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/opus67/skillctx/pkg/presenter"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List skills in the corpus",
	Long: `List every skill the registry loads from the configured directories,
with tier, token cost, and trigger counts. Use --json for machine-readable
output.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		reg, report, err := newRegistry(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to load registry")
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		snap := reg.Snapshot()

		if jsonOutput {
			type entry struct {
				ID        string `json:"id"`
				Tier      int    `json:"tier"`
				TokenCost int    `json:"token_cost"`
			}
			entries := make([]entry, 0, snap.Len())
			for _, id := range snap.IDs() {
				rec, _ := snap.Get(id)
				entries = append(entries, entry{ID: rec.ID, Tier: rec.Tier, TokenCost: rec.TokenCost})
			}
			output, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return errors.Wrap(err, "failed to marshal JSON output")
			}
			fmt.Println(string(output))
			return nil
		}

		presenter.Section(fmt.Sprintf("Skills (%d)", snap.Len()))
		for _, id := range snap.IDs() {
			rec, _ := snap.Get(id)
			fmt.Printf("%-32s tier %d  %6d tokens  %d keywords\n",
				rec.ID, rec.Tier, rec.TokenCost, len(rec.Triggers.Keywords))
		}
		if len(report.Skipped) > 0 {
			presenter.Warning(fmt.Sprintf("%d files skipped; run 'skillctx validate' for details", len(report.Skipped)))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().Bool("json", false, "Output as JSON")
}
