package cmd

import (
	"fmt"

	"github.com/Iron-Ham/stagehand/internal/manifest"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <manifest>",
	Short: "Check a manifest without running it",
	Long: `Validate parses a manifest and reports the problems a run would trip over:
empty or duplicate component identifiers, references to unknown components,
unknown phase names and emissions without an event type.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	m, err := manifest.Load(args[0])
	if err != nil {
		return err
	}

	name := m.Name
	if name == "" {
		name = args[0]
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d components, ok\n", name, m.Count())
	return nil
}
