package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/MeKo-Tech/langdetect/internal/config"
	"github.com/MeKo-Tech/langdetect/internal/langerr"
	"github.com/MeKo-Tech/langdetect/internal/server"
	"github.com/MeKo-Tech/langdetect/internal/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// workspace is a temporary directory with a small corpus and a config producing a tiny model.
type workspace struct {
	dir        string
	configPath string
	corpus     string
	model      string
	dictionary string
	history    string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := isolate(t)

	w := &workspace{
		dir:        dir,
		configPath: filepath.Join(dir, "langdetect.yaml"),
		corpus:     testutil.WriteCorpus(t, "corpus.jsonl", testutil.SampleExamples(testutil.SampleCatalog())),
		model:      filepath.Join(dir, "models", "tiny.model"),
		dictionary: filepath.Join(dir, "models", "tiny.dict"),
		history:    filepath.Join(dir, "history.db"),
	}

	cfg := fmt.Sprintf(`log_level: error
languages: [en, fr, de]
model:
  path: %s
  dictionary_path: %s
  embedding_size: 8
  attention_size: 6
  hidden_size: 10
  hidden_activation: tanh
tokenizer:
  max_token_length: 20
training:
  epochs: 2
  history_db: %s
`, w.model, w.dictionary, w.history)
	require.NoError(t, os.WriteFile(w.configPath, []byte(cfg), 0o600))
	return w
}

func (w *workspace) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	return execute(t, stdin, append(args, "--config", w.configPath)...)
}

// train trains the tiny model on the sample corpus and returns the recorded run id.
func (w *workspace) train(t *testing.T, extra ...string) string {
	t.Helper()
	args := append([]string{"train",
		"--training", w.corpus,
		"--validation", w.corpus,
		"--no-progress"}, extra...)
	out, stderr, err := w.run(t, "", args...)
	require.NoError(t, err, stderr)
	require.FileExists(t, w.model)

	m := regexp.MustCompile(`Recording run (\S+) in`).FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	return m[1]
}

func TestTrain(t *testing.T) {
	w := newWorkspace(t)
	out, stderr, err := w.run(t, "", "train",
		"--training", w.corpus,
		"--validation", w.corpus,
		"--test", w.corpus,
		"--no-progress")
	require.NoError(t, err, stderr)

	assert.Contains(t, out, "-- READING DATASET:")
	assert.Contains(t, out, "training (12 lines):")
	assert.Contains(t, out, "validation (12 lines):")
	assert.Contains(t, out, "-- MODEL:")
	assert.Contains(t, out, "Embedding size:    8")
	assert.Contains(t, out, "-- START TRAINING ON 12 SENTENCES")
	assert.Contains(t, out, "Best validation accuracy:")
	assert.Contains(t, out, "-- START VALIDATION ON 12 TEST SENTENCES")
	assert.Regexp(t, `Accuracy: \d+\.\d\d%`, out)

	assert.FileExists(t, w.model)
	assert.FileExists(t, w.history)
}

func TestTrain_WithoutValidationSavesFinalModel(t *testing.T) {
	w := newWorkspace(t)
	out, stderr, err := w.run(t, "", "train", "--training", w.corpus, "--no-progress", "--no-history", "--epochs", "1")
	require.NoError(t, err, stderr)

	assert.NotContains(t, out, "Best validation accuracy:")
	assert.Contains(t, out, "Model saved to")
	assert.FileExists(t, w.model)
	assert.NoFileExists(t, w.history)
}

func TestTrain_RequiresTrainingCorpus(t *testing.T) {
	w := newWorkspace(t)
	_, _, err := w.run(t, "", "train", "--no-progress")
	require.Error(t, err)
	assert.True(t, errors.Is(err, langerr.ErrInvalidConfiguration))
}

func TestTrain_InvalidCorpus(t *testing.T) {
	w := newWorkspace(t)
	bad := filepath.Join(w.dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(bad, []byte("{not json}\n"), 0o600))

	_, _, err := w.run(t, "", "train", "--training", bad, "--no-progress", "--no-history")
	require.Error(t, err)
	assert.True(t, errors.Is(err, langerr.ErrDataCorruption))
}

func TestDictionary(t *testing.T) {
	w := newWorkspace(t)
	out, stderr, err := w.run(t, "", "dictionary", w.corpus, "--no-progress")
	require.NoError(t, err, stderr)

	assert.Contains(t, out, "Counting words occurrences...")
	assert.Contains(t, out, "Saving dictionary with")
	assert.FileExists(t, w.dictionary)
}

func TestDetect(t *testing.T) {
	w := newWorkspace(t)
	w.train(t)

	out, stderr, err := w.run(t, "", "detect", "--full", "--tokens", "the", "cat", "sat")
	require.NoError(t, err, stderr)

	assert.Contains(t, out, "Detected language:")
	assert.Contains(t, out, "Scores:")
	assert.Contains(t, out, "Tokens:")
	assert.Contains(t, stderr, "Loading model from")
}

func TestDetect_JSON(t *testing.T) {
	w := newWorkspace(t)
	w.train(t)

	out, stderr, err := w.run(t, "", "detect", "--format", "json", "--tokens", "--full", "le chat est sur le tapis")
	require.NoError(t, err, stderr)

	var res server.DetectResponse
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Contains(t, []string{"en", "fr", "de"}, res.Language)
	assert.False(t, res.Unknown)
	assert.Len(t, res.Scores, 3)
	require.Len(t, res.Tokens, 6)
	assert.Equal(t, "chat", res.Tokens[1].Token)
	assert.Len(t, res.Tokens[1].Importance, 4)
}

func TestDetect_NoLetters(t *testing.T) {
	w := newWorkspace(t)
	w.train(t)

	out, _, err := w.run(t, "", "detect", "--format", "json", "--full", "1234 !!!")
	require.NoError(t, err)

	var res server.DetectResponse
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.True(t, res.Unknown)
	assert.Empty(t, res.Language)
	assert.Empty(t, res.Scores)
}

func TestDetect_Interactive(t *testing.T) {
	w := newWorkspace(t)
	w.train(t)

	out, stderr, err := w.run(t, "the cat sat on the mat\nbonjour et merci\n\nignored after empty line\n", "detect")
	require.NoError(t, err, stderr)

	assert.Equal(t, 2, strings.Count(out, "Detected language:"))
	assert.Equal(t, 3, strings.Count(out, "Insert a text (empty to exit):"))
	assert.Contains(t, out, "Thank you, bye!")
}

func TestDetect_WithDictionary(t *testing.T) {
	w := newWorkspace(t)
	w.train(t)
	_, stderr, err := w.run(t, "", "dictionary", w.corpus, "--no-progress")
	require.NoError(t, err, stderr)

	out, stderr, err := w.run(t, "", "detect", "--dictionary", w.dictionary, "guten morgen")
	require.NoError(t, err, stderr)
	assert.Contains(t, stderr, "Loading words frequency dictionary")
	assert.Contains(t, out, "Detected language:")
}

func TestDetect_MissingModel(t *testing.T) {
	w := newWorkspace(t)
	_, _, err := w.run(t, "", "detect", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load model")
}

func TestDetect_InvalidFormat(t *testing.T) {
	w := newWorkspace(t)
	_, _, err := w.run(t, "", "detect", "--format", "xml", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestEvaluate(t *testing.T) {
	w := newWorkspace(t)
	w.train(t)

	out, stderr, err := w.run(t, "", "evaluate", w.corpus, "--no-progress")
	require.NoError(t, err, stderr)

	assert.Contains(t, out, "-- START VALIDATION ON 12 TEST SENTENCES")
	assert.Regexp(t, `Accuracy: \d+\.\d\d%`, out)
	assert.Contains(t, out, "Confusion matrix:")
	assert.Regexp(t, `(?m)^en\s`, out)
}

func TestEvaluate_RequiresCorpus(t *testing.T) {
	w := newWorkspace(t)
	_, _, err := w.run(t, "", "evaluate")
	require.Error(t, err)
}

func TestHistory(t *testing.T) {
	w := newWorkspace(t)
	id := w.train(t)

	out, stderr, err := w.run(t, "", "history")
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "LANGUAGES")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "en,fr,de")

	out, stderr, err = w.run(t, "", "history", id)
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "Run "+id)
	assert.Contains(t, out, "ACCURACY")
	assert.Regexp(t, `(?m)^1\s+12\s`, out)
	assert.Regexp(t, `(?m)^2\s+12\s`, out)
}

func TestHistory_MissingDatabase(t *testing.T) {
	w := newWorkspace(t)
	_, _, err := w.run(t, "", "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history database not found")
}

func TestConfigCommand(t *testing.T) {
	w := newWorkspace(t)
	out, stderr, err := w.run(t, "", "config")
	require.NoError(t, err, stderr)

	assert.Contains(t, out, "# config file: "+w.configPath)
	assert.Contains(t, out, "embedding_size: 8")
	assert.Contains(t, out, "max_token_length: 20")
}

func TestConfigInit(t *testing.T) {
	dir := isolate(t)
	target := filepath.Join(dir, "conf", "langdetect.yaml")

	out, _, err := execute(t, "", "config", "init", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration written to")

	loaded, err := config.NewLoaderWithViper(viper.New()).LoadWithFile(target)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), *loaded)

	_, _, err = execute(t, "", "config", "init", target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = execute(t, "", "config", "init", target, "--force")
	require.NoError(t, err)
}

func TestNewHTTPServer(t *testing.T) {
	w := newWorkspace(t)
	w.train(t)

	ResetFlags()
	t.Cleanup(ResetFlags)
	cfgFile = w.configPath
	require.NoError(t, initConfig())

	httpServer, err := newHTTPServer(serveCmd, GetConfig())
	require.NoError(t, err)

	ts := httptest.NewServer(httpServer.Handler)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/detect", "application/json", strings.NewReader(`{"text": "das ist ein einfacher satz", "full": true}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res server.DetectResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Contains(t, []string{"en", "fr", "de"}, res.Language)
	assert.Len(t, res.Scores, 3)

	langs, err := http.Get(ts.URL + "/languages")
	require.NoError(t, err)
	defer func() { _ = langs.Body.Close() }()
	var lr server.LanguagesResponse
	require.NoError(t, json.NewDecoder(langs.Body).Decode(&lr))
	assert.Equal(t, 3, lr.Count)
}
