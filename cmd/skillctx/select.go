package main

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opus67/skillctx/pkg/presenter"
	"github.com/opus67/skillctx/pkg/skills"
)

var selectCmd = &cobra.Command{
	Use:   "select [keywords...]",
	Short: "Run one selection request against the corpus",
	Long: `Select skills for the given query keywords, open file extensions, and
active directories, under the token budget. Prints the selection result; use
--context to print the assembled context instead, or --json for the full
machine-readable output.

MCP connection availability is probed from the configured servers unless
--services is given explicitly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		shutdown, err := initTracing(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to initialize tracing")
		}
		defer shutdownTracing(shutdown)

		reg, _, err := newRegistry(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to load registry")
		}
		eng, err := newEngine(reg)
		if err != nil {
			return errors.Wrap(err, "failed to create engine")
		}

		extensions, _ := cmd.Flags().GetStringSlice("extensions")
		directories, _ := cmd.Flags().GetStringSlice("directories")
		budget, _ := cmd.Flags().GetInt("budget")
		if budget <= 0 {
			budget = viper.GetInt("token_budget")
		}

		services, _ := cmd.Flags().GetStringSlice("services")
		if !cmd.Flags().Changed("services") {
			prober, err := newProber()
			if err != nil {
				return errors.Wrap(err, "invalid mcp server configuration")
			}
			if prober != nil {
				services = prober.Available(ctx)
			}
		}

		out, err := eng.Select(ctx, &skills.RequestContext{
			Keywords:           args,
			OpenFileExtensions: extensions,
			ActiveDirectories:  directories,
			TokenBudget:        budget,
			AvailableServices:  services,
		})
		if err != nil {
			return errors.Wrap(err, "selection failed")
		}

		if contextOnly, _ := cmd.Flags().GetBool("context"); contextOnly {
			fmt.Println(out.Context)
			return nil
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			encoded, err := json.MarshalIndent(out.Result, "", "  ")
			if err != nil {
				return errors.Wrap(err, "failed to marshal JSON output")
			}
			fmt.Println(string(encoded))
			return nil
		}

		presenter.Section(fmt.Sprintf("Selected %d skills (%d / %d tokens)",
			len(out.Result.OrderedSkillIDs), out.Result.TotalCost, budget))
		for _, id := range out.Result.OrderedSkillIDs {
			rec, _ := reg.Snapshot().Get(id)
			fmt.Printf("%-32s tier %d  %6d tokens\n", id, rec.Tier, rec.TokenCost)
		}
		for id, reason := range out.Result.Excluded {
			if reason != skills.ExcludedZeroRelevance {
				presenter.Warning(fmt.Sprintf("%s excluded: %s", id, reason))
			}
		}
		return nil
	},
}

func init() {
	selectCmd.Flags().StringSliceP("extensions", "e", nil, "Open file extensions (e.g. .go,.ts)")
	selectCmd.Flags().StringSliceP("directories", "d", nil, "Active directory paths")
	selectCmd.Flags().IntP("budget", "b", 0, "Token budget (defaults to token_budget config)")
	selectCmd.Flags().StringSlice("services", nil, "Available MCP services (skips probing)")
	selectCmd.Flags().Bool("context", false, "Print the assembled context instead of the result")
	selectCmd.Flags().Bool("json", false, "Output the selection result as JSON")
}
