package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/langdetect/internal/dataset"
	"github.com/MeKo-Tech/langdetect/internal/freqdict"
	"github.com/MeKo-Tech/langdetect/internal/progress"
	"github.com/spf13/cobra"
)

// dictionaryCmd represents the dictionary command.
var dictionaryCmd = &cobra.Command{
	Use:   "dictionary <corpus>",
	Short: "Build a words frequency dictionary from a corpus",
	Long: `Count the occurrences of every word of a JSONL corpus per language,
normalize them into per-word language distributions and save the dictionary.

Examples:
  langdetect dictionary data/train.jsonl
  langdetect dictionary data/train.jsonl --output models/langdetect.dict`,
	Args: cobra.ExactArgs(1),
	RunE: runDictionary,
}

func init() {
	rootCmd.AddCommand(dictionaryCmd)

	dictionaryCmd.Flags().StringP("output", "o", "", "dictionary file (default from model.dictionary_path)")
	dictionaryCmd.Flags().Int("max-lines", 0, "read at most this many lines of the corpus")
	dictionaryCmd.Flags().Bool("no-progress", false, "disable the progress bar")
}

func runDictionary(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	out := cmd.OutOrStdout()
	output := stringFlag(cmd, "output", cfg.Model.DictionaryPath)

	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}
	tok, err := newTokenizer(cfg)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Reading dataset from '%s'...\n", args[0])
	reader := dataset.NewCorpusReader(catalog)
	reader.MaxLines = intFlag(cmd, "max-lines", 0)
	examples, err := reader.ReadFile(args[0])
	if err != nil {
		return err
	}

	var cb progress.Callback = progress.NoOp{}
	if !boolFlag(cmd, "no-progress", false) {
		cb = progress.NewBar(cmd.ErrOrStderr(), "Counting")
	}

	_, _ = fmt.Fprintln(out, "Counting words occurrences...")
	dict := freqdict.New(catalog)
	if err := freqdict.Build(dict, examples, tok, cfg.Tokenizer.MaxTokenLength, cb); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Saving dictionary with %d words to '%s'...\n", dict.Len(), output)
	return dict.SaveFile(output)
}
