package main

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/opus67/skillctx/pkg/presenter"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the skill corpus",
	Long: `Load the corpus and report every file that fails validation: missing
required metadata (id, tier, token cost), unparseable frontmatter, or
duplicate ids. Exits non-zero if any file is rejected.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		_, report, err := newRegistry(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to load registry")
		}

		presenter.Info(fmt.Sprintf("Loaded %d skills", report.Loaded))
		if len(report.Skipped) == 0 {
			presenter.Success("corpus is valid")
			return nil
		}

		paths := make([]string, 0, len(report.Skipped))
		for path := range report.Skipped {
			paths = append(paths, path)
		}
		sort.Strings(paths)

		presenter.Section(fmt.Sprintf("Rejected files (%d)", len(paths)))
		for _, path := range paths {
			presenter.Warning(fmt.Sprintf("%s: %v", path, report.Skipped[path]))
		}
		return errors.Errorf("%d files failed validation", len(paths))
	},
}
