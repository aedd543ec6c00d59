package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/mlptask/pkg/cli"
	"github.com/haivivi/mlptask/pkg/task"
)

var (
	fitFile             string
	fitModelDir         string
	fitPreviousModelDir string
)

var fitCmd = &cobra.Command{
	Use:   "fit [text...]",
	Short: "Fit a model from texts and persist it",
	Long: `Fit a model that maps each text's 0-based position to the text, and
persist it under the storage root.

Texts come from --file (YAML list, YAML "texts:" mapping, or one text per
line) followed by any positional arguments.`,
	RunE: runFit,
}

func init() {
	fitCmd.Flags().StringVarP(&fitFile, "file", "f", "", "file with training texts")
	fitCmd.Flags().StringVar(&fitModelDir, "model-dir", "", "storage root override")
	fitCmd.Flags().StringVar(&fitPreviousModelDir, "previous-model-dir", "", "root of the previous model")
	rootCmd.AddCommand(fitCmd)
}

type fitOutput struct {
	Fitted  bool   `json:"fitted" yaml:"fitted"`
	Entries int    `json:"entries" yaml:"entries"`
	Root    string `json:"root" yaml:"root"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runFit(cmd *cobra.Command, args []string) error {
	var texts []string
	if fitFile != "" {
		loaded, err := cli.LoadTexts(fitFile)
		if err != nil {
			return err
		}
		texts = loaded
	}
	texts = append(texts, args...)
	if len(texts) == 0 {
		return errors.New("no training texts: pass them as arguments or with --file")
	}

	tk, done, err := openTask(cmd)
	if err != nil {
		return err
	}
	defer done()

	res := tk.Fit(cmd.Context(), task.FitRequest{
		Texts:            texts,
		ModelDir:         fitModelDir,
		PreviousModelDir: fitPreviousModelDir,
	})
	out := fitOutput{Fitted: tk.IsFitted(), Entries: res.Entries, Root: res.Root}
	if !res.OK() {
		out.Error = res.Err.Error()
	}
	if err := output(cmd, out); err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("fit failed: %w", res.Err)
	}
	return nil
}
