package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/langdetect/internal/language"
	"github.com/MeKo-Tech/langdetect/internal/langerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorpusReader_Read(t *testing.T) {
	catalog := language.MustCatalog("en", "it")
	input := `{"body": "Hello world", "language": "en"}
{"body": "Ciao mondo", "language": "IT"}

{"body": "Hallo Welt", "language": "de"}
`

	examples, err := NewCorpusReader(catalog).Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, examples, 3)

	assert.Equal(t, "Hello world", examples[0].Text)
	assert.Equal(t, "en", examples[0].Language.Code)
	assert.Equal(t, "it", examples[1].Language.Code)
	assert.True(t, examples[2].Language.IsUnknown(), "unsupported codes map to Unknown")
}

func TestCorpusReader_MaxLines(t *testing.T) {
	catalog := language.MustCatalog("en")
	input := strings.Repeat(`{"body": "a", "language": "en"}`+"\n", 5)

	reader := NewCorpusReader(catalog)
	reader.MaxLines = 2

	examples, err := reader.Read(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, examples, 2)
}

func TestCorpusReader_Errors(t *testing.T) {
	catalog := language.MustCatalog("en")

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "malformed json",
			input:   `{"body": "ok", "language": "en"}` + "\n" + `{"body": broken`,
			wantErr: langerr.ErrDataCorruption,
		},
		{
			name:    "missing body",
			input:   `{"language": "en"}`,
			wantErr: langerr.ErrDataCorruption,
		},
		{
			name:    "missing language",
			input:   `{"body": "text"}`,
			wantErr: langerr.ErrDataCorruption,
		},
		{
			name:    "iso code too long",
			input:   `{"body": "text", "language": "eng"}`,
			wantErr: langerr.ErrInvalidConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			examples, err := NewCorpusReader(catalog).Read(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, examples, "a malformed line fails the whole read")
		})
	}
}

func TestCorpusReader_ReadFile(t *testing.T) {
	catalog := language.MustCatalog("en", "fr")
	examples := []Example{
		{Text: "good morning", Language: catalog.At(0)},
		{Text: "bonjour", Language: catalog.At(1)},
		{Text: "???", Language: language.Unknown},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJSONL(&buf, examples))

	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	got, err := NewCorpusReader(catalog).ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, examples, got)

	lines, err := CountLines(path)
	require.NoError(t, err)
	assert.Equal(t, 3, lines)

	_, err = NewCorpusReader(catalog).ReadFile(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestDistinct(t *testing.T) {
	examples := []Example{{Text: "abca"}, {Text: "bd é"}}
	assert.Equal(t, []rune{'a', 'b', 'c', 'd', ' ', 'é'}, Distinct(examples))
	assert.Empty(t, Distinct(nil))
}
