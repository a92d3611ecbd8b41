// Package training fits a trainable classifier on labelled examples, token by token.
package training

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/MeKo-Tech/langdetect/internal/classifier"
	"github.com/MeKo-Tech/langdetect/internal/common"
	"github.com/MeKo-Tech/langdetect/internal/dataset"
	"github.com/MeKo-Tech/langdetect/internal/langerr"
	"github.com/MeKo-Tech/langdetect/internal/optim"
	"github.com/MeKo-Tech/langdetect/internal/progress"
)

// Tokenizer splits example texts into tokens.
type Tokenizer interface {
	Tokenize(text string, maxTokenLength int) ([]string, error)
}

// Validator measures accuracy on a labelled set.
type Validator interface {
	Validate(examples []dataset.Example, includeUnknown bool) (float64, error)
}

// Checkpointer persists the model when validation accuracy reaches a new best.
type Checkpointer interface {
	Checkpoint(epoch int, accuracy float64) error
}

// Recorder receives the summary of every epoch.
type Recorder interface {
	RecordEpoch(ctx context.Context, result EpochResult) error
}

// Config holds training settings.
type Config struct {
	Epochs                 int
	BatchSize              int
	MaxTokenLength         int
	Shuffle                bool
	Seed                   uint64
	MinRelevantError       float64 // a token is skipped unless some |error| exceeds it
	ParamsStepSize         float64 // Adam step size for classifier parameters
	EmbeddingsLearningRate float64 // AdaGrad learning rate for embeddings
}

// DefaultConfig returns the default training configuration.
func DefaultConfig() Config {
	return Config{
		Epochs:                 10,
		BatchSize:              1,
		MaxTokenLength:         100,
		Shuffle:                true,
		Seed:                   743,
		MinRelevantError:       1e-3,
		ParamsStepSize:         0.001,
		EmbeddingsLearningRate: 0.1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("%w: epochs must be positive, got %d", langerr.ErrInvalidConfiguration, c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", langerr.ErrInvalidConfiguration, c.BatchSize)
	}
	if c.MaxTokenLength <= 0 {
		return fmt.Errorf("%w: max token length must be positive, got %d", langerr.ErrInvalidConfiguration, c.MaxTokenLength)
	}
	if c.MinRelevantError < 0 {
		return fmt.Errorf("%w: min relevant error must not be negative", langerr.ErrInvalidConfiguration)
	}
	if c.ParamsStepSize <= 0 || c.EmbeddingsLearningRate <= 0 {
		return fmt.Errorf("%w: learning rates must be positive", langerr.ErrInvalidConfiguration)
	}
	return nil
}

// EpochResult summarizes one epoch.
type EpochResult struct {
	Epoch          int
	Examples       int // examples used for training
	Skipped        int // examples without a supported gold language
	RelevantTokens int
	IgnoredTokens  int
	Updates        int // optimizer steps
	Elapsed        time.Duration

	Validated         bool
	Accuracy          float64
	ValidationElapsed time.Duration
	Improved          bool // strict new best accuracy
	CheckpointSaved   bool
}

// Result summarizes a training run.
type Result struct {
	Epochs       []EpochResult
	BestAccuracy float64
	BestEpoch    int // 0 when never validated
}

// Trainer runs the epoch, example and token loops over a trainable classifier.
// A Trainer is single use per model and not safe for concurrent use.
type Trainer struct {
	config    Config
	model     classifier.Trainable
	tokenizer Tokenizer
	logger    *slog.Logger

	validator    Validator
	checkpointer Checkpointer
	recorder     Recorder
	progress     func(epoch int) progress.Callback

	paramsOptimizer     *optim.Adam
	embeddingsOptimizer *optim.AdaGrad
	paramsAcc           optim.ParamsAccumulator
	embeddingsAcc       *optim.EmbeddingsAccumulator

	rng             *rand.Rand
	vocabularyReady bool
	bestAccuracy    float64
}

// Option customizes a Trainer.
type Option func(*Trainer)

// WithValidator validates the model after each epoch.
func WithValidator(v Validator) Option {
	return func(t *Trainer) { t.validator = v }
}

// WithCheckpointer saves the model on every strict accuracy improvement.
func WithCheckpointer(c Checkpointer) Option {
	return func(t *Trainer) { t.checkpointer = c }
}

// WithRecorder records epoch summaries.
func WithRecorder(r Recorder) Option {
	return func(t *Trainer) { t.recorder = r }
}

// WithLogger sets the logger; slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(t *Trainer) { t.logger = l }
}

// WithProgress builds a progress callback for every epoch.
func WithProgress(fn func(epoch int) progress.Callback) Option {
	return func(t *Trainer) { t.progress = fn }
}

// New creates a trainer.
func New(model classifier.Trainable, tok Tokenizer, config Config, opts ...Option) (*Trainer, error) {
	if model == nil || tok == nil {
		return nil, fmt.Errorf("%w: trainer needs a model and a tokenizer", langerr.ErrInvalidConfiguration)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	t := &Trainer{
		config:              config,
		model:               model,
		tokenizer:           tok,
		logger:              slog.Default(),
		paramsOptimizer:     optim.NewAdam(config.ParamsStepSize),
		embeddingsOptimizer: optim.NewAdaGrad(config.EmbeddingsLearningRate),
		embeddingsAcc:       optim.NewEmbeddingsAccumulator(),
		rng:                 rand.New(rand.NewPCG(config.Seed, config.Seed)),
		bestAccuracy:        math.Inf(-1),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// BestAccuracy returns the best validation accuracy so far, -Inf before any validation.
func (t *Trainer) BestAccuracy() float64 { return t.bestAccuracy }

// Train runs every epoch over training, validating on validation when a validator is set.
func (t *Trainer) Train(ctx context.Context, training, validation []dataset.Example) (Result, error) {
	t.ensureVocabulary(training)

	var result Result
	for epoch := 1; epoch <= t.config.Epochs; epoch++ {
		t.logger.Info("Starting epoch", "epoch", epoch, "epochs", t.config.Epochs)

		er, err := t.trainEpoch(ctx, epoch, training)
		if err != nil {
			return result, err
		}

		if t.validator != nil && len(validation) > 0 {
			if err := t.validateEpoch(epoch, validation, &er); err != nil {
				return result, err
			}
			if er.Improved {
				result.BestEpoch = epoch
			}
			result.BestAccuracy = t.bestAccuracy
		}

		if t.recorder != nil {
			if err := t.recorder.RecordEpoch(ctx, er); err != nil {
				return result, fmt.Errorf("failed to record epoch %d: %w", epoch, err)
			}
		}
		result.Epochs = append(result.Epochs, er)
	}

	return result, nil
}

// ensureVocabulary registers an embedding for every character of the training set, once.
func (t *Trainer) ensureVocabulary(training []dataset.Example) {
	if t.vocabularyReady {
		return
	}
	chars := dataset.Distinct(training)
	t.model.RegisterChars(chars)
	t.vocabularyReady = true
	t.logger.Debug("Registered character embeddings", "characters", len(chars))
}

func (t *Trainer) trainEpoch(ctx context.Context, epoch int, examples []dataset.Example) (EpochResult, error) {
	timer := common.NewNamedTimer(fmt.Sprintf("epoch %d", epoch))
	er := EpochResult{Epoch: epoch}

	order := make([]int, len(examples))
	for i := range order {
		order[i] = i
	}
	if t.config.Shuffle {
		t.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	cb := progress.Callback(progress.NoOp{})
	if t.progress != nil {
		cb = t.progress(epoch)
	}

	t.model.SetTraining(true)
	defer t.model.SetTraining(false)
	t.resetAccumulators()

	cb.OnStart(len(order))
	processed := 0
	for pos, idx := range order {
		if err := ctx.Err(); err != nil {
			cb.OnError(pos, err)
			return er, err
		}

		// batch boundaries count trained examples only
		boundary := false
		ex := examples[idx]
		if ex.Language.IsUnknown() {
			er.Skipped++
		} else {
			relevant, ignored, err := t.learnFromExample(ex)
			if err != nil {
				cb.OnError(pos, err)
				return er, fmt.Errorf("epoch %d, example %d: %w", epoch, idx, err)
			}
			er.RelevantTokens += relevant
			er.IgnoredTokens += ignored
			er.Examples++
			processed++
			boundary = processed%t.config.BatchSize == 0
		}

		if boundary || pos == len(order)-1 {
			if t.update() {
				er.Updates++
			}
		}
		cb.OnProgress(pos+1, len(order))
	}
	cb.OnComplete()

	er.Elapsed = timer.Stop()
	t.logger.Info("Epoch trained",
		"epoch", epoch,
		"examples", er.Examples,
		"skipped", er.Skipped,
		"relevant_tokens", er.RelevantTokens,
		"ignored_tokens", er.IgnoredTokens,
		"updates", er.Updates,
		"elapsed", common.FormatElapsed(er.Elapsed))
	return er, nil
}

// learnFromExample accumulates the gradients of every relevant token of ex.
func (t *Trainer) learnFromExample(ex dataset.Example) (relevant, ignored int, err error) {
	tokens, err := t.tokenizer.Tokenize(ex.Text, t.config.MaxTokenLength)
	if err != nil {
		return 0, 0, err
	}
	gold := ex.Language.Index()

	for _, token := range tokens {
		output, err := t.model.Forward(token)
		if err != nil {
			return relevant, ignored, fmt.Errorf("forward %q: %w", token, err)
		}
		if gold >= len(output) {
			return relevant, ignored, fmt.Errorf("%w: gold index %d outside %d model outputs",
				langerr.ErrInvalidConfiguration, gold, len(output))
		}

		errs := output.Clone()
		errs[gold]--
		if !t.relevant(errs) {
			ignored++
			continue
		}

		grads, err := t.model.Backward(errs)
		if err != nil {
			return relevant, ignored, fmt.Errorf("backward %q: %w", token, err)
		}
		t.paramsAcc.Accumulate(grads.Params)
		for i, r := range []rune(token) {
			if i < len(grads.Chars) {
				t.embeddingsAcc.Accumulate(r, grads.Chars[i])
			}
		}
		relevant++
	}
	return relevant, ignored, nil
}

func (t *Trainer) relevant(errs []float64) bool {
	for _, e := range errs {
		if math.Abs(e) > t.config.MinRelevantError {
			return true
		}
	}
	return false
}

// update applies the averaged accumulated gradients. It reports false when there was nothing to apply.
func (t *Trainer) update() bool {
	if t.paramsAcc.IsEmpty() && t.embeddingsAcc.Len() == 0 {
		return false
	}
	if !t.paramsAcc.IsEmpty() {
		t.paramsOptimizer.Update(t.model.Params(), t.paramsAcc.Average())
	}
	t.embeddingsAcc.Each(func(r rune, grad []float64) {
		if vec := t.model.Embedding(r); vec != nil {
			t.embeddingsOptimizer.Update(r, vec, grad)
		}
	})
	t.resetAccumulators()
	return true
}

func (t *Trainer) resetAccumulators() {
	t.paramsAcc.Reset()
	t.embeddingsAcc.Reset()
}

func (t *Trainer) validateEpoch(epoch int, validation []dataset.Example, er *EpochResult) error {
	t.logger.Info("Epoch validation", "epoch", epoch, "examples", len(validation))
	timer := common.NewNamedTimer("validation")

	accuracy, err := t.validator.Validate(validation, false)
	if err != nil {
		return fmt.Errorf("validation after epoch %d: %w", epoch, err)
	}
	er.Validated = true
	er.Accuracy = accuracy
	er.ValidationElapsed = timer.Stop()

	t.logger.Info("Validation done",
		"epoch", epoch,
		"accuracy", fmt.Sprintf("%.2f%%", 100*accuracy),
		"elapsed", common.FormatElapsed(er.ValidationElapsed))

	if accuracy <= t.bestAccuracy {
		return nil
	}
	t.bestAccuracy = accuracy
	er.Improved = true
	if t.checkpointer == nil {
		return nil
	}
	if err := t.checkpointer.Checkpoint(epoch, accuracy); err != nil {
		return fmt.Errorf("failed to save checkpoint after epoch %d: %w", epoch, err)
	}
	er.CheckpointSaved = true
	return nil
}
