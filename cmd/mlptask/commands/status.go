package commands

import (
	"github.com/spf13/cobra"
)

type statusOutput struct {
	Fitted      bool   `json:"fitted" yaml:"fitted"`
	Root        string `json:"root" yaml:"root"`
	StateKey    string `json:"state_key" yaml:"state_key"`
	StateExists bool   `json:"state_exists" yaml:"state_exists"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a fitted model is loaded",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tk, done, err := openTask(cmd)
		if err != nil {
			return err
		}
		defer done()

		exists, err := tk.Store().Exists(cmd.Context(), tk.StateKey())
		if err != nil {
			return err
		}
		return output(cmd, statusOutput{
			Fitted:      tk.IsFitted(),
			Root:        tk.Root(),
			StateKey:    tk.StateKey(),
			StateExists: exists,
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
