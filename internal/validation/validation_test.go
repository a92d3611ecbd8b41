package validation

import (
	"strings"
	"testing"

	"github.com/MeKo-Tech/langdetect/internal/dataset"
	"github.com/MeKo-Tech/langdetect/internal/language"
	"github.com/MeKo-Tech/langdetect/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted predicts the language whose code is the text itself; "??" predicts nothing.
type scripted struct {
	catalog *language.Catalog
	fail    bool
}

func (s scripted) Predict(text string) (language.Distribution, error) {
	if s.fail {
		return nil, assert.AnError
	}
	d := language.Zeros(s.catalog.Size())
	if l, err := s.catalog.Lookup(text); err == nil && !l.IsUnknown() {
		d[l.Index()] = 1
	}
	return d, nil
}

func (s scripted) Language(d language.Distribution) language.Language {
	if d.IsZero() {
		return language.Unknown
	}
	return s.catalog.At(d.ArgMax())
}

func examples(t *testing.T, c *language.Catalog, pairs ...string) []dataset.Example {
	t.Helper()
	out := make([]dataset.Example, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		gold, err := c.Lookup(pairs[i+1])
		require.NoError(t, err)
		out = append(out, dataset.Example{Text: pairs[i], Language: gold})
	}
	return out
}

func TestValidate_Perfect(t *testing.T) {
	c := language.MustCatalog("en", "fr")
	h := NewHelper(scripted{catalog: c}, c)

	acc, err := h.Validate(examples(t, c, "en", "en", "fr", "fr", "fr", "fr"), false)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)

	en, _ := c.Lookup("en")
	fr, _ := c.Lookup("fr")
	assert.Equal(t, 1, h.ConfusionMatrix().Count(en, en))
	assert.Equal(t, 2, h.ConfusionMatrix().Count(fr, fr))
	assert.Equal(t, 3, h.ConfusionMatrix().Total())
}

func TestValidate_UnknownGold(t *testing.T) {
	c := language.MustCatalog("en", "fr")
	h := NewHelper(scripted{catalog: c}, c)
	// "xx" is a well-formed code outside the catalog: gold Unknown
	set := examples(t, c, "en", "en", "fr", "xx")

	acc, err := h.Validate(set, false)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc, "excluded from the denominator")

	acc, err = h.Validate(set, true)
	require.NoError(t, err)
	assert.Equal(t, 0.5, acc, "included in the denominator, never correct")
}

func TestValidate_Mistakes(t *testing.T) {
	c := language.MustCatalog("en", "fr")
	h := NewHelper(scripted{catalog: c}, c)

	// predicted fr for gold en, and nothing for the second gold en
	acc, err := h.Validate(examples(t, c, "fr", "en", "??", "en", "fr", "fr", "en", "en"), false)
	require.NoError(t, err)
	assert.Equal(t, 0.5, acc)

	en, _ := c.Lookup("en")
	fr, _ := c.Lookup("fr")
	m := h.ConfusionMatrix()
	assert.Equal(t, 1, m.Count(en, fr))
	assert.Equal(t, 1, m.Count(en, en))
	assert.Equal(t, 3, m.Total(), "Unknown predictions are not recorded")
	assert.Equal(t, []float64{50, 50}, m.RowPercentages(en))
}

func TestValidate_ResetsMatrix(t *testing.T) {
	c := language.MustCatalog("en", "fr")
	h := NewHelper(scripted{catalog: c}, c)
	set := examples(t, c, "en", "en")

	_, err := h.Validate(set, false)
	require.NoError(t, err)
	_, err = h.Validate(set, false)
	require.NoError(t, err)
	assert.Equal(t, 1, h.ConfusionMatrix().Total())
}

func TestValidate_Empty(t *testing.T) {
	c := language.MustCatalog("en")
	acc, err := NewHelper(scripted{catalog: c}, c).Validate(nil, false)
	require.NoError(t, err)
	assert.Equal(t, 0.0, acc)
}

func TestValidate_PredictorError(t *testing.T) {
	c := language.MustCatalog("en")
	counter := &progress.Counter{}
	h := NewHelper(scripted{catalog: c, fail: true}, c).WithProgress(counter)

	_, err := h.Validate(examples(t, c, "en", "en"), false)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, counter.Errors)
}

func TestConfusionMatrix_String(t *testing.T) {
	c := language.MustCatalog("en", "fr")
	h := NewHelper(scripted{catalog: c}, c)
	_, err := h.Validate(examples(t, c, "en", "en", "fr", "en", "fr", "fr"), false)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(h.ConfusionMatrix().String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "         en     fr", lines[0])
	assert.Equal(t, "en    50.0%  50.0%", lines[1])
	assert.Equal(t, "fr     0.0% 100.0%", lines[2])
}
