package model

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/MeKo-Tech/langdetect/internal/language"
	"github.com/MeKo-Tech/langdetect/internal/langerr"
	"github.com/vmihailenco/msgpack/v5"
)

const formatVersion = 1

type artifact struct {
	Version   int             `msgpack:"version"`
	Hyper     Hyperparameters `msgpack:"hyperparameters"`
	Languages []string        `msgpack:"languages"`
	Chars     []int32         `msgpack:"chars"`
	Vectors   [][]float64     `msgpack:"vectors"`
	Unknown   []float64       `msgpack:"unknown"`
	Params    [][]float64     `msgpack:"params"`
}

// Dump serializes the model to w. Characters are written in code point order.
func (m *Model) Dump(w io.Writer) error {
	chars := make([]rune, 0, len(m.embeddings))
	for r := range m.embeddings {
		chars = append(chars, r)
	}
	slices.Sort(chars)

	a := artifact{
		Version:   formatVersion,
		Hyper:     m.hyper,
		Languages: m.catalog.Codes(),
		Chars:     make([]int32, len(chars)),
		Vectors:   make([][]float64, len(chars)),
		Unknown:   m.unknown,
		Params:    m.params,
	}
	for i, r := range chars {
		a.Chars[i] = r
		a.Vectors[i] = m.embeddings[r]
	}

	if err := msgpack.NewEncoder(w).Encode(&a); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// Load reads a model written by Dump.
func Load(r io.Reader, opts ...Option) (*Model, error) {
	var a artifact
	if err := msgpack.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: failed to decode model: %v", langerr.ErrDataCorruption, err)
	}
	if a.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported model format version %d", langerr.ErrDataCorruption, a.Version)
	}
	if err := a.Hyper.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", langerr.ErrDataCorruption, err)
	}
	catalog, err := language.NewCatalog(a.Languages...)
	if err != nil {
		return nil, fmt.Errorf("%w: model catalog: %v", langerr.ErrDataCorruption, err)
	}

	m, err := New(catalog, a.Hyper, opts...)
	if err != nil {
		return nil, err
	}
	if err := m.restore(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", langerr.ErrDataCorruption, err)
	}
	return m, nil
}

func (m *Model) restore(a *artifact) error {
	if len(a.Params) != numParams {
		return fmt.Errorf("expected %d parameter blocks, got %d", numParams, len(a.Params))
	}
	for i, p := range a.Params {
		if len(p) != len(m.params[i]) {
			return fmt.Errorf("parameter block %d has %d values, want %d", i, len(p), len(m.params[i]))
		}
	}
	e := m.hyper.EmbeddingSize
	if len(a.Unknown) != e {
		return fmt.Errorf("unknown vector has %d values, want %d", len(a.Unknown), e)
	}
	if len(a.Chars) != len(a.Vectors) {
		return fmt.Errorf("%d characters for %d vectors", len(a.Chars), len(a.Vectors))
	}

	embeddings := make(map[rune][]float64, len(a.Chars))
	for i, r := range a.Chars {
		if len(a.Vectors[i]) != e {
			return fmt.Errorf("embedding of %q has %d values, want %d", rune(r), len(a.Vectors[i]), e)
		}
		embeddings[r] = a.Vectors[i]
	}

	m.params = a.Params
	m.unknown = a.Unknown
	m.embeddings = embeddings
	return nil
}

// LoadFile reads a model from path.
func LoadFile(path string, opts ...Option) (*Model, error) {
	f, err := os.Open(path) //nolint:gosec // G304: model path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer func() { _ = f.Close() }()

	m, err := Load(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// SaveFile writes the model to path atomically: a temporary file in the same directory is
// renamed over path once fully written.
func (m *Model) SaveFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary model file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := m.Dump(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close model file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move model into place: %w", err)
	}
	return nil
}
