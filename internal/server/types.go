package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/MeKo-Tech/langdetect/internal/detector"
	"github.com/MeKo-Tech/langdetect/internal/language"
	"github.com/MeKo-Tech/langdetect/internal/langerr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Detector is what the server needs from a language detector.
type Detector interface {
	Catalog() *language.Catalog
	Predict(text string) (language.Distribution, error)
	Language(dist language.Distribution) language.Language
	FullDistribution(dist language.Distribution) []detector.Score
	ClassifyTokens(text string) ([]detector.TokenClassification, error)
	CacheStats() (hits, misses int64)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	// the detector is not safe for concurrent use
	mu       sync.Mutex
	detector Detector

	corsOrigin   string
	maxBodyBytes int64
	rateLimiter  *RateLimiter
	version      string
}

// Config holds server configuration.
type Config struct {
	Host       string
	Port       int
	CORSOrigin string
	MaxBodyKB  int
	TimeoutSec int
	RateLimit  RateLimitConfig
	Version    string
}

// RateLimitConfig configures per-client limits. Zero values disable a limit.
type RateLimitConfig struct {
	RequestsPerMinute int
	MaxTextPerDay     int64 // bytes
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	Languages   int    `json:"languages"`
	CacheHits   int64  `json:"cache_hits"`
	CacheMisses int64  `json:"cache_misses"`
	Time        string `json:"time"`
}

// LanguageInfo describes one supported language.
type LanguageInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// LanguagesResponse is returned by /languages.
type LanguagesResponse struct {
	Languages []LanguageInfo `json:"languages"`
	Count     int            `json:"count"`
}

// DetectRequest is the body of POST /detect and of websocket JSON messages.
type DetectRequest struct {
	Text   string `json:"text"`
	Full   bool   `json:"full,omitempty"`
	Tokens bool   `json:"tokens,omitempty"`
}

// ScoreInfo is the score of one language.
type ScoreInfo struct {
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// TokenInfo is the classification of one token.
type TokenInfo struct {
	Token      string    `json:"token"`
	Language   string    `json:"language"`
	Importance []float64 `json:"importance,omitempty"`
}

// DetectResponse is the detection of one text. Language is empty when no
// supported language is detected.
type DetectResponse struct {
	Language     string      `json:"language"`
	Name         string      `json:"name"`
	Unknown      bool        `json:"unknown"`
	Scores       []ScoreInfo `json:"scores,omitempty"`
	Tokens       []TokenInfo `json:"tokens,omitempty"`
	ProcessingMs float64     `json:"processing_ms"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a server around det.
func NewServer(det Detector, config Config) (*Server, error) {
	if det == nil {
		return nil, fmt.Errorf("%w: detector is required", langerr.ErrInvalidConfiguration)
	}
	maxBody := int64(config.MaxBodyKB) * 1024
	if maxBody <= 0 {
		maxBody = 256 * 1024
	}

	s := &Server{
		detector:     det,
		corsOrigin:   config.CORSOrigin,
		maxBodyBytes: maxBody,
		version:      config.Version,
	}
	if config.RateLimit.RequestsPerMinute > 0 || config.RateLimit.MaxTextPerDay > 0 {
		s.rateLimiter = NewRateLimiter(config.RateLimit.RequestsPerMinute, config.RateLimit.MaxTextPerDay)
	}
	return s, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/languages", s.corsMiddleware(s.languagesHandler))
	mux.HandleFunc("/detect", s.corsMiddleware(s.detectHandler))
	mux.HandleFunc("/ws", s.websocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}
