package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/langdetect/internal/dataset"
	"github.com/MeKo-Tech/langdetect/internal/language"
	"github.com/stretchr/testify/require"
)

// SampleCodes are the languages of the sample corpus.
var SampleCodes = []string{"en", "fr", "de"}

var sampleTexts = map[string][]string{
	"en": {
		"the cat sat on the mat",
		"where is the train station",
		"this is a simple sentence",
		"good morning and thank you",
	},
	"fr": {
		"le chat est sur le tapis",
		"où est la gare s'il vous plaît",
		"c'est une phrase très simple",
		"bonjour et merci beaucoup",
	},
	"de": {
		"die katze sitzt auf der matte",
		"wo ist der bahnhof bitte",
		"das ist ein einfacher satz",
		"guten morgen und vielen dank",
	},
}

// SampleCatalog returns the catalog of the sample corpus.
func SampleCatalog() *language.Catalog {
	return language.MustCatalog(SampleCodes...)
}

// SampleExamples returns a small labelled corpus, languages interleaved.
func SampleExamples(catalog *language.Catalog) []dataset.Example {
	out := make([]dataset.Example, 0, 12)
	for i := range 4 {
		for _, code := range SampleCodes {
			lang, err := catalog.Lookup(code)
			if err != nil {
				panic(err)
			}
			out = append(out, dataset.Example{Text: sampleTexts[code][i], Language: lang})
		}
	}
	return out
}

// WriteCorpus writes examples as a JSONL corpus in a temporary directory and returns its path.
func WriteCorpus(t *testing.T, name string, examples []dataset.Example) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, dataset.WriteJSONL(&buf, examples))

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}
