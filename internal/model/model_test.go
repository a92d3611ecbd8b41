package model

import (
	"bytes"
	"math"
	"testing"

	"github.com/MeKo-Tech/langdetect/internal/language"
	"github.com/MeKo-Tech/langdetect/internal/langerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallHyper(activation string) Hyperparameters {
	return Hyperparameters{
		EmbeddingSize:    4,
		AttentionSize:    3,
		HiddenSize:       5,
		MaxTokenLength:   10,
		HiddenActivation: activation,
	}
}

func newSmall(t *testing.T, activation string) *Model {
	t.Helper()
	m, err := New(language.MustCatalog("en", "fr", "de"), smallHyper(activation))
	require.NoError(t, err)
	m.RegisterChars([]rune("abcdé"))
	return m
}

func TestNew_InvalidConfiguration(t *testing.T) {
	catalog := language.MustCatalog("en")

	tests := []struct {
		name  string
		hyper Hyperparameters
		opts  []Option
	}{
		{"zero embedding", Hyperparameters{AttentionSize: 1, HiddenSize: 1, MaxTokenLength: 1, HiddenActivation: "tanh"}, nil},
		{"zero max token length", Hyperparameters{EmbeddingSize: 1, AttentionSize: 1, HiddenSize: 1, HiddenActivation: "tanh"}, nil},
		{"unknown activation", Hyperparameters{EmbeddingSize: 1, AttentionSize: 1, HiddenSize: 1, MaxTokenLength: 1, HiddenActivation: "sigmoid"}, nil},
		{"dropout out of range", DefaultHyperparameters(), []Option{WithDropout(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(catalog, tt.hyper, tt.opts...)
			assert.ErrorIs(t, err, langerr.ErrInvalidConfiguration)
		})
	}

	_, err := New(nil, DefaultHyperparameters())
	assert.ErrorIs(t, err, langerr.ErrInvalidConfiguration)
}

func TestForward(t *testing.T) {
	m := newSmall(t, ActivationTanh)

	dist, err := m.Forward("abc")
	require.NoError(t, err)
	require.Len(t, dist, 3)
	assert.InDelta(t, 1.0, dist.Sum(), 1e-12)
	for _, p := range dist {
		assert.Greater(t, p, 0.0)
	}

	importance := m.Importance()
	require.Len(t, importance, 3)
	assert.InDelta(t, 1.0, language.Distribution(importance).Sum(), 1e-12)

	again, err := m.Forward("abc")
	require.NoError(t, err)
	assert.Equal(t, dist, again, "inference is deterministic")
}

func TestForward_EmptyToken(t *testing.T) {
	m := newSmall(t, ActivationTanh)
	_, err := m.Forward("")
	assert.ErrorIs(t, err, langerr.ErrInvalidInput)
}

func TestForward_UnseenCharacters(t *testing.T) {
	m := newSmall(t, ActivationTanh)
	assert.Nil(t, m.Embedding('ж'))

	a, err := m.Forward("ж")
	require.NoError(t, err)
	b, err := m.Forward("ы")
	require.NoError(t, err)
	assert.Equal(t, a, b, "unseen characters share the reserved vector")
	assert.Nil(t, m.Embedding('ж'), "inference never registers characters")
}

func TestBackward_Preconditions(t *testing.T) {
	m := newSmall(t, ActivationTanh)

	_, err := m.Backward([]float64{0, 0, 0})
	assert.ErrorIs(t, err, langerr.ErrStatePrecondition)

	_, err = m.Forward("ab")
	require.NoError(t, err)
	_, err = m.Backward([]float64{0, 0})
	assert.ErrorIs(t, err, langerr.ErrInvalidInput)
}

// loss is the cross-entropy of token against gold.
func loss(t *testing.T, m *Model, token string, gold int) float64 {
	t.Helper()
	p, err := m.Forward(token)
	require.NoError(t, err)
	return -math.Log(p[gold])
}

func TestBackward_MatchesFiniteDifferences(t *testing.T) {
	for _, activation := range []string{ActivationTanh, ActivationReLU} {
		t.Run(activation, func(t *testing.T) {
			m := newSmall(t, activation)
			const token, gold, h = "abca", 1, 1e-6

			p, err := m.Forward(token)
			require.NoError(t, err)
			errs := p.Clone()
			errs[gold]--

			grads, err := m.Backward(errs)
			require.NoError(t, err)
			require.Len(t, grads.Params, len(m.Params()))
			require.Len(t, grads.Chars, 4)

			for b, block := range m.Params() {
				for i := range block {
					orig := block[i]
					block[i] = orig + h
					plus := loss(t, m, token, gold)
					block[i] = orig - h
					minus := loss(t, m, token, gold)
					block[i] = orig

					numeric := (plus - minus) / (2 * h)
					assert.InDelta(t, numeric, grads.Params[b][i], 1e-5, "param block %d index %d", b, i)
				}
			}

			// 'a' appears twice, its gradient is the sum over both positions.
			emb := m.Embedding('a')
			for k := range emb {
				orig := emb[k]
				emb[k] = orig + h
				plus := loss(t, m, token, gold)
				emb[k] = orig - h
				minus := loss(t, m, token, gold)
				emb[k] = orig

				numeric := (plus - minus) / (2 * h)
				assert.InDelta(t, numeric, grads.Chars[0][k]+grads.Chars[3][k], 1e-5, "embedding component %d", k)
			}
		})
	}
}

func TestDropout_OnlyInTraining(t *testing.T) {
	m, err := New(language.MustCatalog("en", "fr"), smallHyper(ActivationTanh), WithDropout(0.5))
	require.NoError(t, err)
	m.RegisterChars([]rune("abc"))

	first, err := m.Forward("abc")
	require.NoError(t, err)
	second, err := m.Forward("abc")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	m.SetTraining(true)
	_, err = m.Forward("abc")
	require.NoError(t, err)
	grads, err := m.Backward([]float64{0.5, -0.5})
	require.NoError(t, err)
	assert.Len(t, grads.Chars, 3)
}

func TestDumpLoad(t *testing.T) {
	m := newSmall(t, ActivationReLU)

	var buf bytes.Buffer
	require.NoError(t, m.Dump(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)

	assert.Equal(t, m.Hyperparameters(), loaded.Hyperparameters())
	assert.True(t, m.Catalog().Equal(loaded.Catalog()))
	assert.Equal(t, m.VocabularySize(), loaded.VocabularySize())
	assert.Equal(t, m.Embedding('é'), loaded.Embedding('é'))

	for _, token := range []string{"abc", "é", "xyz"} {
		want, err := m.Forward(token)
		require.NoError(t, err)
		got, err := loaded.Forward(token)
		require.NoError(t, err)
		assert.Equal(t, want, got, token)
	}
}

func TestSaveLoadFile(t *testing.T) {
	m := newSmall(t, ActivationTanh)
	path := t.TempDir() + "/nested/model.bin"

	require.NoError(t, m.SaveFile(path))
	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, m.String(), loaded.String())

	_, err = LoadFile(t.TempDir() + "/missing.bin")
	assert.Error(t, err)
}

func TestLoad_Corrupted(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte{0xc1, 0x00}))
	assert.ErrorIs(t, err, langerr.ErrDataCorruption)

	m := newSmall(t, ActivationTanh)
	m.params = m.params[:3]
	var buf bytes.Buffer
	require.NoError(t, m.Dump(&buf))
	_, err = Load(&buf)
	assert.ErrorIs(t, err, langerr.ErrDataCorruption)
}

func TestString(t *testing.T) {
	m := newSmall(t, ActivationTanh)
	s := m.String()
	assert.Contains(t, s, "Embedding size:    4")
	assert.Contains(t, s, "en, fr, de")
	assert.Contains(t, s, "Vocabulary:        5 characters")
}
