package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/MeKo-Tech/langdetect/internal/common"
	"github.com/MeKo-Tech/langdetect/internal/config"
	"github.com/MeKo-Tech/langdetect/internal/dataset"
	"github.com/MeKo-Tech/langdetect/internal/detector"
	"github.com/MeKo-Tech/langdetect/internal/history"
	"github.com/MeKo-Tech/langdetect/internal/langerr"
	"github.com/MeKo-Tech/langdetect/internal/model"
	"github.com/MeKo-Tech/langdetect/internal/progress"
	"github.com/MeKo-Tech/langdetect/internal/training"
	"github.com/MeKo-Tech/langdetect/internal/validation"
	"github.com/spf13/cobra"
)

// trainCmd represents the train command.
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a language detector model",
	Long: `Train a new model on a JSONL corpus.

Each corpus line is a JSON object with a "body" and a two-letter "language".
After every epoch the model is validated on the validation set and saved
whenever the accuracy reaches a new best. When a test set is given, the best
model is finally evaluated on it, optionally together with a words frequency
dictionary.

Examples:
  langdetect train --training data/train.jsonl --validation data/dev.jsonl
  langdetect train --training data/train.jsonl --validation data/dev.jsonl \
    --test data/test.jsonl --dictionary models/langdetect.dict --epochs 20`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().String("training", "", "training corpus (default from training.training_path)")
	trainCmd.Flags().String("validation", "", "validation corpus (default from training.validation_path)")
	trainCmd.Flags().String("test", "", "test corpus evaluated with the best model (default from training.test_path)")
	trainCmd.Flags().StringP("model", "m", "", "where to save the best model (default from model.path)")
	trainCmd.Flags().StringP("dictionary", "d", "", "words frequency dictionary used for the test evaluation")
	trainCmd.Flags().IntP("epochs", "e", 0, "number of epochs (default from training.epochs)")
	trainCmd.Flags().Int("batch-size", 0, "examples per optimizer step (default from training.batch_size)")
	trainCmd.Flags().Float64("dropout", 0, "embedding dropout probability (default from training.dropout)")
	trainCmd.Flags().Int("max-lines", 0, "read at most this many lines of every corpus (default from training.max_lines)")
	trainCmd.Flags().String("history", "", "training history database (default from training.history_db)")
	trainCmd.Flags().Bool("no-history", false, "do not record the run in the history database")
	trainCmd.Flags().Bool("no-progress", false, "disable progress bars")
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg := *GetConfig()
	cfg.Training.TrainingPath = stringFlag(cmd, "training", cfg.Training.TrainingPath)
	cfg.Training.ValidationPath = stringFlag(cmd, "validation", cfg.Training.ValidationPath)
	cfg.Training.TestPath = stringFlag(cmd, "test", cfg.Training.TestPath)
	cfg.Training.Epochs = intFlag(cmd, "epochs", cfg.Training.Epochs)
	cfg.Training.BatchSize = intFlag(cmd, "batch-size", cfg.Training.BatchSize)
	cfg.Training.MaxLines = intFlag(cmd, "max-lines", cfg.Training.MaxLines)
	cfg.Training.HistoryDB = stringFlag(cmd, "history", cfg.Training.HistoryDB)
	cfg.Model.Path = stringFlag(cmd, "model", cfg.Model.Path)
	if cmd.Flags().Changed("dropout") {
		cfg.Training.Dropout, _ = cmd.Flags().GetFloat64("dropout")
	}
	if boolFlag(cmd, "no-history", false) {
		cfg.Training.HistoryDB = ""
	}
	if cfg.Training.TrainingPath == "" {
		return fmt.Errorf("%w: a training corpus is required (--training or training.training_path)",
			langerr.ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	showProgress := !boolFlag(cmd, "no-progress", false)

	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(out, "-- READING DATASET:")
	reader := dataset.NewCorpusReader(catalog)
	reader.MaxLines = cfg.Training.MaxLines
	var data dataset.Dataset
	if data.Training, err = readCorpus(out, reader, "training", cfg.Training.TrainingPath); err != nil {
		return err
	}
	if cfg.Training.ValidationPath != "" {
		if data.Validation, err = readCorpus(out, reader, "validation", cfg.Training.ValidationPath); err != nil {
			return err
		}
	}
	if cfg.Training.TestPath != "" {
		if data.Test, err = readCorpus(out, reader, "test", cfg.Training.TestPath); err != nil {
			return err
		}
	}

	m, err := model.New(catalog, cfg.ToHyperparameters(),
		model.WithSeed(cfg.Training.Seed),
		model.WithDropout(cfg.Training.Dropout))
	if err != nil {
		return err
	}
	tok, err := newTokenizer(&cfg)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(out, "\n-- MODEL:")
	_, _ = fmt.Fprintln(out, m.String())

	// the validation detector shares the model being trained, so it must not cache
	validator, err := detector.New(m, tok, catalog, cfg.ToDetectorConfig(false))
	if err != nil {
		return err
	}
	helper := validation.NewHelper(validator, catalog)
	checkpointer := &training.FileCheckpointer{Path: cfg.Model.Path, Model: m}

	opts := []training.Option{
		training.WithValidator(helper),
		training.WithCheckpointer(checkpointer),
		training.WithLogger(slog.Default()),
	}
	if showProgress {
		opts = append(opts, training.WithProgress(func(epoch int) progress.Callback {
			return progress.NewBar(errOut, fmt.Sprintf("Epoch %d", epoch))
		}))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var run *history.Run
	if cfg.Training.HistoryDB != "" {
		store, err := history.Open(ctx, cfg.Training.HistoryDB)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				slog.Warn("Failed to close history database", "error", err)
			}
		}()
		run, err = store.StartRun(ctx, history.RunInfo{
			Languages:          catalog.Codes(),
			Config:             runConfig(&cfg),
			TrainingExamples:   len(data.Training),
			ValidationExamples: len(data.Validation),
			ModelPath:          cfg.Model.Path,
		})
		if err != nil {
			return err
		}
		opts = append(opts, training.WithRecorder(run))
		_, _ = fmt.Fprintf(out, "\nRecording run %s in '%s'\n", run.ID, cfg.Training.HistoryDB)
	}

	trainer, err := training.New(m, tok, cfg.ToTrainingConfig(), opts...)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "\n-- START TRAINING ON %d SENTENCES\n", len(data.Training))
	timer := common.NewTimer()
	result, err := trainer.Train(ctx, data.Training, data.Validation)
	if run != nil {
		// record whatever was reached, also for an interrupted run
		if ferr := run.Finish(context.WithoutCancel(ctx), result); ferr != nil {
			slog.Warn("Failed to finish history run", "run", run.ID, "error", ferr)
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			_, _ = fmt.Fprintln(out, "Training interrupted")
		}
		return err
	}
	_, _ = fmt.Fprintf(out, "Training completed in %s\n", common.FormatElapsed(timer.Stop()))
	slog.Debug("Memory after training", "stats", common.GetMemoryStats().String())

	if result.BestEpoch > 0 {
		_, _ = fmt.Fprintf(out, "Best validation accuracy: %s (epoch %d)\n",
			formatAccuracy(result.BestAccuracy), result.BestEpoch)
	} else {
		// nothing was validated, keep the final parameters
		if err := m.SaveFile(cfg.Model.Path); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintf(out, "Model saved to '%s'\n", cfg.Model.Path)

	if len(data.Test) == 0 {
		return nil
	}
	return evaluateBest(cmd, &cfg, data.Test, showProgress)
}

// evaluateBest reloads the best saved model and measures its accuracy on the test set.
func evaluateBest(cmd *cobra.Command, cfg *config.Config, test []dataset.Example, showProgress bool) error {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "\n-- START VALIDATION ON %d TEST SENTENCES\n", len(test))

	det, err := loadDetector(out, cfg, detectorOptions{
		modelPath:      cfg.Model.Path,
		dictionaryPath: dictionaryPath(cmd, cfg),
	})
	if err != nil {
		return err
	}

	helper := validation.NewHelper(det, det.Catalog())
	if showProgress {
		helper.WithProgress(progress.NewBar(cmd.ErrOrStderr(), "Test"))
	}
	accuracy, err := helper.Validate(test, false)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Accuracy: %s\n", formatAccuracy(accuracy))
	return nil
}

// runConfig is the part of the configuration stored with a history run.
func runConfig(cfg *config.Config) map[string]any {
	return map[string]any{
		"model":     cfg.ToHyperparameters(),
		"training":  cfg.Training,
		"tokenizer": cfg.Tokenizer,
	}
}
