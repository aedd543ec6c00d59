package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/mlptask/pkg/cli"
)

var pruneModelDir string

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete the persisted model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tk, done, err := openTask(cmd)
		if err != nil {
			return err
		}
		defer done()

		if err := tk.Prune(cmd.Context(), pruneModelDir); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "pruned %s", tk.StateKey())
		return nil
	},
}

func init() {
	pruneCmd.Flags().StringVar(&pruneModelDir, "model-dir", "", "storage root override")
	rootCmd.AddCommand(pruneCmd)
}
