package freqdict

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/langdetect/internal/language"
	"github.com/MeKo-Tech/langdetect/internal/langerr"
	"github.com/vmihailenco/msgpack/v5"
)

const formatVersion = 1

// artifact is the serialized form of a Dictionary.
type artifact struct {
	Version    int                  `msgpack:"version"`
	Languages  []string             `msgpack:"languages"`
	Words      map[string][]float64 `msgpack:"words"`
	Totals     []float64            `msgpack:"totals"`
	Normalized bool                 `msgpack:"normalized"`
}

// Dump writes the dictionary to w.
func (d *Dictionary) Dump(w io.Writer) error {
	a := artifact{
		Version:    formatVersion,
		Languages:  d.catalog.Codes(),
		Words:      d.words,
		Totals:     d.totals,
		Normalized: d.normalized,
	}
	if err := msgpack.NewEncoder(w).Encode(&a); err != nil {
		return fmt.Errorf("failed to encode frequency dictionary: %w", err)
	}
	return nil
}

// Load reads a dictionary written by Dump.
func Load(r io.Reader) (*Dictionary, error) {
	var a artifact
	if err := msgpack.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: failed to decode frequency dictionary: %v", langerr.ErrDataCorruption, err)
	}
	if a.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported dictionary format version %d", langerr.ErrDataCorruption, a.Version)
	}

	catalog, err := language.NewCatalog(a.Languages...)
	if err != nil {
		return nil, fmt.Errorf("%w: dictionary catalog: %v", langerr.ErrDataCorruption, err)
	}
	n := catalog.Size()
	if len(a.Totals) != n {
		return nil, fmt.Errorf("%w: dictionary totals have %d entries, want %d",
			langerr.ErrDataCorruption, len(a.Totals), n)
	}
	if a.Words == nil {
		a.Words = make(map[string][]float64)
	}
	for word, freq := range a.Words {
		if len(freq) != n {
			return nil, fmt.Errorf("%w: vector of %q has %d entries, want %d",
				langerr.ErrDataCorruption, word, len(freq), n)
		}
	}

	return &Dictionary{
		catalog:    catalog,
		words:      a.Words,
		totals:     a.Totals,
		normalized: a.Normalized,
	}, nil
}

// LoadFile reads a dictionary from path.
func LoadFile(path string) (*Dictionary, error) {
	f, err := os.Open(path) //nolint:gosec // G304: dictionary path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open frequency dictionary: %w", err)
	}
	defer func() { _ = f.Close() }()

	d, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// SaveFile writes the dictionary to path through a temporary file that replaces
// path only once it is complete, creating parent directories as needed.
func (d *Dictionary) SaveFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create dictionary directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary dictionary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := d.Dump(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync frequency dictionary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close frequency dictionary: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move frequency dictionary into place: %w", err)
	}
	return nil
}
