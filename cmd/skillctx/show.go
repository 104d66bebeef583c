package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/opus67/skillctx/pkg/presenter"
)

var showCmd = &cobra.Command{
	Use:   "show <skill-id>",
	Short: "Show a skill's metadata and content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		reg, _, err := newRegistry(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to load registry")
		}

		rec, ok := reg.Snapshot().Get(args[0])
		if !ok {
			return errors.Errorf("skill %q not found", args[0])
		}

		presenter.Section(rec.ID)
		fmt.Printf("Tier:        %d\n", rec.Tier)
		fmt.Printf("Token cost:  %d\n", rec.TokenCost)
		fmt.Printf("Keywords:    %s\n", strings.Join(rec.Triggers.Keywords, ", "))
		fmt.Printf("File types:  %s\n", strings.Join(rec.Triggers.FileTypes, ", "))
		fmt.Printf("Directories: %s\n", strings.Join(rec.Triggers.Directories, ", "))
		fmt.Printf("Requires:    %s\n", strings.Join(rec.Requires, ", "))
		if len(rec.Related) > 0 {
			fmt.Println("Related:")
			for _, rel := range rec.Related {
				kind := "soft"
				if rel.Hard {
					kind = "hard"
				}
				fmt.Printf("  - %s (%s)\n", rel.ID, kind)
			}
		}
		fmt.Printf("Source:      %s\n", rec.Path)

		if content, _ := cmd.Flags().GetBool("content"); content {
			fmt.Println()
			fmt.Println(rec.Content)
		}
		return nil
	},
}

func init() {
	showCmd.Flags().Bool("content", false, "Print the skill document body")
}
