package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/langdetect/internal/detector"
	"github.com/MeKo-Tech/langdetect/internal/language"
	"github.com/MeKo-Tech/langdetect/internal/langerr"
	"github.com/MeKo-Tech/langdetect/internal/testutil"
	"github.com/MeKo-Tech/langdetect/internal/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer returns a server whose classifier knows "bonjour" as French and
// scores everything else uniformly, which decodes to English.
func newTestServer(t *testing.T, config Config) (*Server, *testutil.StubClassifier) {
	t.Helper()
	catalog := testutil.SampleCatalog()
	stub := testutil.NewStubClassifier(catalog.Size())
	stub.Scores["bonjour"] = language.Distribution{0.1, 0.8, 0.1}
	stub.FailOn["boom"] = true

	det, err := detector.New(stub, tokenizer.New(), catalog, detector.DefaultConfig())
	require.NoError(t, err)

	s, err := NewServer(det, config)
	require.NoError(t, err)
	return s, stub
}

func postDetect(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/detect", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.detectHandler(w, req)
	return w
}

func TestNewServer_RequiresDetector(t *testing.T) {
	_, err := NewServer(nil, Config{})
	assert.ErrorIs(t, err, langerr.ErrInvalidConfiguration)
}

func TestServer_HealthHandler(t *testing.T) {
	server, _ := newTestServer(t, Config{Version: "1.2.3"})

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{"GET request success", http.MethodGet, http.StatusOK},
		{"POST request not allowed", http.MethodPost, http.StatusMethodNotAllowed},
		{"PUT request not allowed", http.MethodPut, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()
			server.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}
			var response HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "healthy", response.Status)
			assert.Equal(t, "1.2.3", response.Version)
			assert.Equal(t, 3, response.Languages)
			assert.NotEmpty(t, response.Time)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestServer_HealthHandler_CacheStats(t *testing.T) {
	catalog := testutil.SampleCatalog()
	stub := testutil.NewStubClassifier(catalog.Size())
	cfg := detector.DefaultConfig()
	cfg.CacheSize = 8
	det, err := detector.New(stub, tokenizer.New(), catalog, cfg)
	require.NoError(t, err)
	server, err := NewServer(det, Config{})
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, postDetect(server, `{"text": "hello"}`).Code)
	require.Equal(t, http.StatusOK, postDetect(server, `{"text": "hello world"}`).Code)

	w := httptest.NewRecorder()
	server.healthHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, int64(1), response.CacheHits)
	assert.Equal(t, int64(2), response.CacheMisses)
	assert.Contains(t, w.Body.String(), `"cache_hits":1`)
}

func TestDetect(t *testing.T) {
	server, _ := newTestServer(t, Config{})

	t.Run("full and tokens", func(t *testing.T) {
		res, err := Detect(server.detector, DetectRequest{Text: "bonjour hello", Full: true, Tokens: true})
		require.NoError(t, err)

		var viaHTTP DetectResponse
		w := postDetect(server, `{"text": "bonjour hello", "full": true, "tokens": true}`)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &viaHTTP))

		res.ProcessingMs, viaHTTP.ProcessingMs = 0, 0
		assert.Equal(t, viaHTTP, res)
		assert.Equal(t, "fr", res.Language)
		assert.Len(t, res.Scores, 3)
		assert.Len(t, res.Tokens, 2)
	})

	t.Run("unknown lists no scores", func(t *testing.T) {
		res, err := Detect(server.detector, DetectRequest{Text: "123 !!", Full: true})
		require.NoError(t, err)
		assert.True(t, res.Unknown)
		assert.Equal(t, "Unknown", res.Name)
		assert.Empty(t, res.Scores)
	})

	t.Run("classifier failure", func(t *testing.T) {
		_, err := Detect(server.detector, DetectRequest{Text: "boom"})
		assert.Error(t, err)
	})
}

func TestServer_LanguagesHandler(t *testing.T) {
	server, _ := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/languages", nil)
	w := httptest.NewRecorder()
	server.languagesHandler(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var response LanguagesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 3, response.Count)
	assert.Equal(t, LanguageInfo{Code: "en", Name: "English"}, response.Languages[0])
	assert.Equal(t, LanguageInfo{Code: "fr", Name: "French"}, response.Languages[1])

	w = httptest.NewRecorder()
	server.languagesHandler(w, httptest.NewRequest(http.MethodPost, "/languages", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_DetectHandler(t *testing.T) {
	server, _ := newTestServer(t, Config{})

	w := postDetect(server, `{"text": "bonjour"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var response DetectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "fr", response.Language)
	assert.Equal(t, "French", response.Name)
	assert.False(t, response.Unknown)
	assert.Empty(t, response.Scores)
	assert.Empty(t, response.Tokens)
}

func TestServer_DetectHandler_FullAndTokens(t *testing.T) {
	server, _ := newTestServer(t, Config{})

	w := postDetect(server, `{"text": "bonjour hello", "full": true, "tokens": true}`)
	require.Equal(t, http.StatusOK, w.Code)

	var response DetectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "fr", response.Language)

	require.Len(t, response.Scores, 3)
	assert.Equal(t, "fr", response.Scores[0].Code)
	assert.GreaterOrEqual(t, response.Scores[0].Score, response.Scores[1].Score)
	assert.GreaterOrEqual(t, response.Scores[1].Score, response.Scores[2].Score)

	require.Len(t, response.Tokens, 2)
	assert.Equal(t, TokenInfo{Token: "bonjour", Language: "fr", Importance: uniform(7)}, response.Tokens[0])
	assert.Equal(t, "hello", response.Tokens[1].Token)
	assert.Equal(t, "en", response.Tokens[1].Language)
}

func TestServer_DetectHandler_NoTokensIsUnknown(t *testing.T) {
	server, stub := newTestServer(t, Config{})

	w := postDetect(server, `{"text": "123 !!", "full": true}`)
	require.Equal(t, http.StatusOK, w.Code)

	var response DetectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Unknown)
	assert.Empty(t, response.Language)
	assert.Equal(t, "Unknown", response.Name)
	assert.Empty(t, response.Scores)
	assert.Empty(t, stub.ForwardCalls)
}

func TestServer_DetectHandler_Errors(t *testing.T) {
	server, _ := newTestServer(t, Config{MaxBodyKB: 1})

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"invalid json", http.MethodPost, `{"text":`, http.StatusBadRequest},
		{"empty text", http.MethodPost, `{"text": "   "}`, http.StatusBadRequest},
		{"too large", http.MethodPost, `{"text": "` + strings.Repeat("a", 2048) + `"}`, http.StatusRequestEntityTooLarge},
		{"classifier failure", http.MethodPost, `{"text": "boom"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/detect", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			server.detectHandler(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestServer_SetupRoutes(t *testing.T) {
	server, _ := newTestServer(t, Config{CORSOrigin: "*"})
	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/detect", "application/json", strings.NewReader(`{"text":"bonjour"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func uniform(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}
