package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/langdetect/internal/dataset"
	"github.com/MeKo-Tech/langdetect/internal/progress"
	"github.com/MeKo-Tech/langdetect/internal/validation"
	"github.com/spf13/cobra"
)

// evaluateCmd represents the evaluate command.
var evaluateCmd = &cobra.Command{
	Use:   "evaluate <corpus>",
	Short: "Measure the accuracy of a model on a labelled corpus",
	Long: `Evaluate a trained model on a JSONL corpus and print its accuracy and
confusion matrix. Rows of the matrix are gold languages, columns are
detected languages, values are percentages of the row.

Examples:
  langdetect evaluate data/test.jsonl
  langdetect evaluate data/test.jsonl --model models/best.model --dictionary models/langdetect.dict`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringP("model", "m", "", "model file (default from model.path)")
	evaluateCmd.Flags().StringP("dictionary", "d", "", "words frequency dictionary (default from model.dictionary_path when model.use_dictionary is set)")
	evaluateCmd.Flags().Int("max-lines", 0, "read at most this many lines of the corpus")
	evaluateCmd.Flags().Bool("include-unknown", false, "count examples of unsupported languages as errors")
	evaluateCmd.Flags().Bool("no-progress", false, "disable the progress bar")
	evaluateCmd.Flags().Bool("no-matrix", false, "do not print the confusion matrix")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	out := cmd.OutOrStdout()

	det, err := loadDetector(out, cfg, detectorOptions{
		modelPath:      stringFlag(cmd, "model", cfg.Model.Path),
		dictionaryPath: dictionaryPath(cmd, cfg),
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Reading dataset from '%s'...\n", args[0])
	reader := dataset.NewCorpusReader(det.Catalog())
	reader.MaxLines = intFlag(cmd, "max-lines", 0)
	testSet, err := reader.ReadFile(args[0])
	if err != nil {
		return err
	}

	helper := validation.NewHelper(det, det.Catalog())
	if !boolFlag(cmd, "no-progress", false) {
		helper.WithProgress(progress.NewBar(cmd.ErrOrStderr(), "Evaluating"))
	}

	_, _ = fmt.Fprintf(out, "\n-- START VALIDATION ON %d TEST SENTENCES\n", len(testSet))
	accuracy, err := helper.Validate(testSet, boolFlag(cmd, "include-unknown", false))
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "\nAccuracy: %s\n", formatAccuracy(accuracy))
	if !boolFlag(cmd, "no-matrix", false) {
		_, _ = fmt.Fprintf(out, "\n%s\n\n", headerColor.Sprint("Confusion matrix:"))
		_, _ = fmt.Fprint(out, helper.ConfusionMatrix().String())
	}
	return nil
}
