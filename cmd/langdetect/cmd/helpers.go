package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/MeKo-Tech/langdetect/internal/config"
	"github.com/MeKo-Tech/langdetect/internal/dataset"
	"github.com/MeKo-Tech/langdetect/internal/detector"
	"github.com/MeKo-Tech/langdetect/internal/freqdict"
	"github.com/MeKo-Tech/langdetect/internal/model"
	"github.com/MeKo-Tech/langdetect/internal/segmenter"
	"github.com/MeKo-Tech/langdetect/internal/tokenizer"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	headerColor  = color.New(color.Bold)
	languageFmt  = color.New(color.FgGreen, color.Bold)
	unknownFmt   = color.New(color.FgYellow)
	accuracyGood = color.New(color.FgGreen, color.Bold)
	accuracyBad  = color.New(color.FgRed, color.Bold)
)

// newTokenizer builds the tokenizer described by the configuration. The kagome
// segmenter is only loaded when the CJK pass is enabled.
func newTokenizer(cfg *config.Config) (*tokenizer.Tokenizer, error) {
	opts := []tokenizer.Option{tokenizer.WithCJKRatio(cfg.Tokenizer.CJKRatio)}
	if cfg.Tokenizer.CJKSegmenter {
		seg, err := segmenter.NewKagome()
		if err != nil {
			return nil, err
		}
		opts = append(opts, tokenizer.WithSegmenter(seg))
	}
	return tokenizer.New(opts...), nil
}

// stringFlag returns the flag value when it was set on the command line, fallback otherwise.
func stringFlag(cmd *cobra.Command, name, fallback string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return fallback
}

func intFlag(cmd *cobra.Command, name string, fallback int) int {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetInt(name)
		return v
	}
	return fallback
}

func boolFlag(cmd *cobra.Command, name string, fallback bool) bool {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetBool(name)
		return v
	}
	return fallback
}

// dictionaryPath resolves the dictionary to use: the --dictionary flag wins,
// otherwise the configured one when model.use_dictionary is set.
func dictionaryPath(cmd *cobra.Command, cfg *config.Config) string {
	if cmd.Flags().Changed("dictionary") {
		v, _ := cmd.Flags().GetString("dictionary")
		return v
	}
	if cfg.Model.UseDictionary {
		return cfg.Model.DictionaryPath
	}
	return ""
}

// detectorOptions configures loadDetector.
type detectorOptions struct {
	modelPath      string
	dictionaryPath string
	withCache      bool
	extra          []detector.Option
}

// loadDetector loads a trained model, and optionally a dictionary, into a detector.
// Progress lines go to out.
func loadDetector(out io.Writer, cfg *config.Config, opts detectorOptions) (*detector.Detector, error) {
	_, _ = fmt.Fprintf(out, "Loading model from '%s'...\n", opts.modelPath)
	m, err := model.LoadFile(opts.modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}

	tok, err := newTokenizer(cfg)
	if err != nil {
		return nil, err
	}

	detOpts := append([]detector.Option{}, opts.extra...)
	if opts.dictionaryPath != "" {
		_, _ = fmt.Fprintf(out, "Loading words frequency dictionary from '%s'...\n", opts.dictionaryPath)
		dict, err := freqdict.LoadFile(opts.dictionaryPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load dictionary: %w", err)
		}
		detOpts = append(detOpts, detector.WithDictionary(dict))
	}

	detCfg := cfg.ToDetectorConfig(opts.withCache)
	detCfg.MaxTokenLength = m.Hyperparameters().MaxTokenLength

	det, err := detector.New(m, tok, m.Catalog(), detCfg, detOpts...)
	if err != nil {
		return nil, err
	}
	slog.Debug("Model loaded", "path", opts.modelPath, "languages", m.Catalog().Codes())
	return det, nil
}

// readCorpus reads a JSONL corpus, printing its line count the way the training
// summary lists datasets.
func readCorpus(out io.Writer, reader *dataset.CorpusReader, name, path string) ([]dataset.Example, error) {
	lines, err := dataset.CountLines(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s set: %w", name, err)
	}
	_, _ = fmt.Fprintf(out, "- %-27s %s\n", fmt.Sprintf("%s (%d lines):", name, lines), path)

	examples, err := reader.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s set: %w", name, err)
	}
	return examples, nil
}

// formatAccuracy renders an accuracy in [0, 1] as a percentage.
func formatAccuracy(accuracy float64) string {
	s := fmt.Sprintf("%.2f%%", 100*accuracy)
	if accuracy >= 0.5 {
		return accuracyGood.Sprint(s)
	}
	return accuracyBad.Sprint(s)
}
