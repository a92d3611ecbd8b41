package testutil

import (
	"testing"

	"github.com/MeKo-Tech/langdetect/internal/dataset"
	"github.com/MeKo-Tech/langdetect/internal/langerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCorpus(t *testing.T) {
	catalog := SampleCatalog()
	examples := SampleExamples(catalog)
	require.Len(t, examples, 12)

	path := WriteCorpus(t, "sample.jsonl", examples)
	got, err := dataset.NewCorpusReader(catalog).ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, examples, got)
}

func TestStubClassifier(t *testing.T) {
	s := NewStubClassifier(2)
	s.Scores["hi"] = []float64{0.9, 0.1}
	s.FailOn["boom"] = true

	_, err := s.Backward([]float64{0, 0})
	assert.ErrorIs(t, err, langerr.ErrStatePrecondition)

	d, err := s.Forward("hi")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.1}, []float64(d))

	d, err = s.Forward("abc")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, []float64(d))
	assert.Len(t, s.Importance(), 3)

	grads, err := s.Backward([]float64{0.5, -0.5})
	require.NoError(t, err)
	assert.Len(t, grads.Chars, 3)

	_, err = s.Forward("boom")
	assert.ErrorIs(t, err, ErrStub)
	_, err = s.Forward("")
	assert.ErrorIs(t, err, langerr.ErrInvalidInput)
}
