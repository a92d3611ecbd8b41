// Package detector identifies the language of a text by fusing the classification of its tokens.
package detector

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/MeKo-Tech/langdetect/internal/classifier"
	"github.com/MeKo-Tech/langdetect/internal/freqdict"
	"github.com/MeKo-Tech/langdetect/internal/language"
	"github.com/MeKo-Tech/langdetect/internal/langerr"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Tokenizer splits a text into classification units.
type Tokenizer interface {
	Tokenize(text string, maxTokenLength int) ([]string, error)
}

// Config holds detector settings.
type Config struct {
	MaxTokenLength int    // Longest token handed to the classifier
	CacheSize      int    // Token cache entries; 0 disables the cache
	Fusion         Fusion // Combination strategy; CombineLog when nil
}

// DefaultConfig returns the default detector configuration.
func DefaultConfig() Config {
	return Config{
		MaxTokenLength: 100,
		Fusion:         CombineLog,
	}
}

// CacheObserver is notified of every token cache lookup.
type CacheObserver func(hit bool)

// Detector orchestrates tokenizer, classifier and optional frequency dictionary.
// It is not safe for concurrent use: the classifier keeps per-call state.
type Detector struct {
	config     Config
	classifier classifier.Classifier
	tokenizer  Tokenizer
	catalog    *language.Catalog
	dict       *freqdict.Dictionary

	cache    *lru.Cache[string, language.Distribution]
	observer CacheObserver
	hits     atomic.Int64
	misses   atomic.Int64
}

// Option customizes a Detector.
type Option func(*Detector)

// WithDictionary attaches a frozen frequency dictionary as an extra vote per known word.
func WithDictionary(d *freqdict.Dictionary) Option {
	return func(det *Detector) { det.dict = d }
}

// WithCacheObserver registers a callback for cache hits and misses.
func WithCacheObserver(fn CacheObserver) Option {
	return func(det *Detector) { det.observer = fn }
}

// New creates a detector for the languages of catalog, which must be the classifier's output order.
func New(cls classifier.Classifier, tok Tokenizer, catalog *language.Catalog, config Config, opts ...Option) (*Detector, error) {
	if cls == nil || tok == nil || catalog == nil {
		return nil, fmt.Errorf("%w: detector needs a classifier, a tokenizer and a catalog", langerr.ErrInvalidConfiguration)
	}
	if config.MaxTokenLength <= 0 {
		return nil, fmt.Errorf("%w: max token length must be positive, got %d",
			langerr.ErrInvalidConfiguration, config.MaxTokenLength)
	}
	if config.Fusion == nil {
		config.Fusion = CombineLog
	}

	d := &Detector{
		config:     config,
		classifier: cls,
		tokenizer:  tok,
		catalog:    catalog,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.dict != nil {
		if !d.dict.Normalized() {
			return nil, fmt.Errorf("%w: frequency dictionary must be normalized", langerr.ErrStatePrecondition)
		}
		if !d.dict.Catalog().Equal(catalog) {
			return nil, fmt.Errorf("%w: dictionary languages %v differ from model languages %v",
				langerr.ErrInvalidConfiguration, d.dict.Catalog().Codes(), catalog.Codes())
		}
	}

	if config.CacheSize > 0 {
		cache, err := lru.New[string, language.Distribution](config.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create token cache: %w", err)
		}
		d.cache = cache
	}

	slog.Debug("Detector initialized",
		"languages", catalog.Size(),
		"max_token_length", config.MaxTokenLength,
		"dictionary", d.dict != nil,
		"cache_size", config.CacheSize)
	return d, nil
}

// Catalog returns the supported languages.
func (d *Detector) Catalog() *language.Catalog { return d.catalog }

// HasDictionary reports whether a frequency dictionary is attached.
func (d *Detector) HasDictionary() bool { return d.dict != nil }

// Tokens returns the tokens the detector classifies for text.
func (d *Detector) Tokens(text string) ([]string, error) {
	return d.tokenizer.Tokenize(text, d.config.MaxTokenLength)
}

// Predict returns the fused distribution of text. Text without tokens yields the zero vector.
func (d *Detector) Predict(text string) (language.Distribution, error) {
	tokens, err := d.Tokens(text)
	if err != nil {
		return nil, err
	}

	votes := make([]language.Distribution, 0, 2*len(tokens))
	for _, token := range tokens {
		dist, err := d.classify(token)
		if err != nil {
			return nil, fmt.Errorf("failed to classify %q: %w", token, err)
		}
		votes = append(votes, dist)
		if freq, ok := d.freqOf(token); ok {
			votes = append(votes, freq)
		}
	}

	return d.config.Fusion(votes, d.catalog.Size()), nil
}

// Language decodes a distribution: Unknown for the zero vector, else the arg-max language.
func (d *Detector) Language(dist language.Distribution) language.Language {
	if dist.IsZero() {
		return language.Unknown
	}
	return d.catalog.At(dist.ArgMax())
}

// Detect returns the most likely language of text.
func (d *Detector) Detect(text string) (language.Language, error) {
	dist, err := d.Predict(text)
	if err != nil {
		return language.Unknown, err
	}
	return d.Language(dist), nil
}

// Score is the probability of one language.
type Score struct {
	Language language.Language
	Score    float64
}

// FullDistribution lists every supported language with its score, best first.
// Equal scores keep catalog order.
func (d *Detector) FullDistribution(dist language.Distribution) []Score {
	out := make([]Score, 0, len(dist))
	for i, s := range dist {
		out = append(out, Score{Language: d.catalog.At(i), Score: s})
	}
	slices.SortStableFunc(out, func(a, b Score) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

// TokenClassification describes how a single token was classified.
type TokenClassification struct {
	Token        string
	Distribution language.Distribution // classifier output fused with the frequency vote
	Importance   []float64             // per character, nil when the classifier has no notion of it
}

// ClassifyTokens classifies every token of text independently. It bypasses the cache so the
// character importance matches the reported token.
func (d *Detector) ClassifyTokens(text string) ([]TokenClassification, error) {
	tokens, err := d.Tokens(text)
	if err != nil {
		return nil, err
	}
	reporter, _ := d.classifier.(classifier.ImportanceReporter)

	out := make([]TokenClassification, 0, len(tokens))
	for _, token := range tokens {
		dist, err := d.classifier.Forward(token)
		if err != nil {
			return nil, fmt.Errorf("failed to classify %q: %w", token, err)
		}
		tc := TokenClassification{Token: token, Distribution: dist}
		if reporter != nil {
			tc.Importance = reporter.Importance()
		}
		if freq, ok := d.freqOf(token); ok {
			tc.Distribution = d.config.Fusion([]language.Distribution{dist, freq}, d.catalog.Size())
		}
		out = append(out, tc)
	}
	return out, nil
}

// CacheStats returns the number of cache hits and misses since creation.
// It is safe to call while a detection runs.
func (d *Detector) CacheStats() (hits, misses int64) {
	return d.hits.Load(), d.misses.Load()
}

func (d *Detector) classify(token string) (language.Distribution, error) {
	if d.cache == nil {
		return d.classifier.Forward(token)
	}
	if dist, ok := d.cache.Get(token); ok {
		d.hits.Add(1)
		d.notify(true)
		return dist, nil
	}
	d.misses.Add(1)
	d.notify(false)

	dist, err := d.classifier.Forward(token)
	if err != nil {
		return nil, err
	}
	d.cache.Add(token, dist)
	return dist, nil
}

func (d *Detector) notify(hit bool) {
	if d.observer != nil {
		d.observer(hit)
	}
}

func (d *Detector) freqOf(token string) (language.Distribution, bool) {
	if d.dict == nil {
		return nil, false
	}
	return d.dict.FreqOf(token)
}
