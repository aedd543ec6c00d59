package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/mlptask/pkg/cli"
)

var predictCmd = &cobra.Command{
	Use:   "predict KEY...",
	Short: "Look up texts by index in the fitted model",
	Long: `Look up each KEY (a 0-based index given at fit time) and print the text.

The whole batch fails on the first unknown key; nothing is printed then.
With --format raw one text is printed per line.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	tk, done, err := openTask(cmd)
	if err != nil {
		return err
	}
	defer done()

	groups, err := tk.Predict(cmd.Context(), args, nil)
	if err != nil {
		return err
	}
	if cli.OutputFormat(formatOutput) == cli.FormatRaw {
		values := make([]string, 0, len(groups))
		for _, g := range groups {
			for _, it := range g.Items {
				values = append(values, it.Value)
			}
		}
		return output(cmd, values)
	}
	return output(cmd, groups)
}
