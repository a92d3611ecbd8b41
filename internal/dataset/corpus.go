package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MeKo-Tech/langdetect/internal/language"
	"github.com/MeKo-Tech/langdetect/internal/langerr"
)

// maxLineSize bounds a single corpus line.
const maxLineSize = 4 * 1024 * 1024

// corpusLine is one JSON object of a JSONL corpus.
type corpusLine struct {
	Body     *string `json:"body"`
	Language *string `json:"language"`
}

// CorpusReader reads JSONL corpora where each line holds a "body" and a two-letter "language".
type CorpusReader struct {
	catalog *language.Catalog
	// MaxLines limits the number of lines read; 0 reads everything.
	MaxLines int
}

// NewCorpusReader creates a reader mapping language codes through catalog.
func NewCorpusReader(catalog *language.Catalog) *CorpusReader {
	return &CorpusReader{catalog: catalog}
}

// ReadFile reads the corpus stored at path.
func (c *CorpusReader) ReadFile(path string) ([]Example, error) {
	f, err := os.Open(path) //nolint:gosec // G304: reading a user-provided corpus is expected
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing corpus file: %v\n", err)
		}
	}()

	examples, err := c.Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return examples, nil
}

// Read parses a corpus. Codes not in the catalog map to language.Unknown.
// Any malformed line aborts the whole read.
func (c *CorpusReader) Read(r io.Reader) ([]Example, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	examples := make([]Example, 0, 1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if c.MaxLines > 0 && lineNum > c.MaxLines {
			break
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		ex, err := c.parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		examples = append(examples, ex)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("%w: line %d exceeds %d bytes", langerr.ErrDataCorruption, lineNum+1, maxLineSize)
		}
		return nil, fmt.Errorf("failed reading corpus: %w", err)
	}

	return examples, nil
}

func (c *CorpusReader) parseLine(line []byte) (Example, error) {
	var parsed corpusLine
	if err := json.Unmarshal(line, &parsed); err != nil {
		return Example{}, fmt.Errorf("%w: %v", langerr.ErrDataCorruption, err)
	}
	if parsed.Body == nil {
		return Example{}, fmt.Errorf("%w: missing \"body\" field", langerr.ErrDataCorruption)
	}
	if parsed.Language == nil {
		return Example{}, fmt.Errorf("%w: missing \"language\" field", langerr.ErrDataCorruption)
	}

	lang, err := c.catalog.Lookup(*parsed.Language)
	if err != nil {
		return Example{}, err
	}

	return Example{Text: *parsed.Body, Language: lang}, nil
}

// CountLines returns the number of lines of the file at path.
func CountLines(path string) (int, error) {
	f, err := os.Open(path) //nolint:gosec // G304: reading a user-provided corpus is expected
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 32*1024)
	count := 0
	for {
		n, err := f.Read(buf)
		count += bytes.Count(buf[:n], []byte{'\n'})
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, err
		}
	}
}

// WriteJSONL writes examples in the corpus format. Unknown examples are written with code "xx".
func WriteJSONL(w io.Writer, examples []Example) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, ex := range examples {
		code := ex.Language.Code
		if ex.Language.IsUnknown() {
			code = "xx"
		}
		line := struct {
			Body     string `json:"body"`
			Language string `json:"language"`
		}{Body: ex.Text, Language: code}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}
