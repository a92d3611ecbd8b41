package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/langdetect/internal/langerr"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hits, misses := s.detector.CacheStats()
	response := HealthResponse{
		Status:      "healthy",
		Version:     s.version,
		Languages:   s.detector.Catalog().Size(),
		CacheHits:   hits,
		CacheMisses: misses,
		Time:        time.Now().UTC().Format(time.RFC3339),
	}
	s.writeJSON(w, http.StatusOK, response)
}

// languagesHandler lists the supported languages in catalog order.
func (s *Server) languagesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	langs := s.detector.Catalog().Languages()
	infos := make([]LanguageInfo, len(langs))
	for i, l := range langs {
		infos[i] = LanguageInfo{Code: l.Code, Name: l.Name()}
	}
	s.writeJSON(w, http.StatusOK, LanguagesResponse{Languages: infos, Count: len(infos)})
}

// detectHandler detects the language of a JSON request body.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	var req DetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeErrorResponse(w, "No text provided", http.StatusBadRequest)
		return
	}
	if err := s.allow(getClientIP(r), int64(len(req.Text))); err != nil {
		s.handleRateLimitError(w, err)
		return
	}

	res, err := s.detect(req, "http")
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, langerr.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		s.writeErrorResponse(w, fmt.Sprintf("Detection failed: %v", err), status)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// Detect runs det on req.Text and shapes the result. Scores are only listed for
// a known language. Detect does no locking; det must not be used concurrently.
func Detect(det Detector, req DetectRequest) (DetectResponse, error) {
	start := time.Now()
	dist, err := det.Predict(req.Text)
	if err != nil {
		return DetectResponse{}, err
	}
	lang := det.Language(dist)

	res := DetectResponse{
		Language: lang.Code,
		Name:     lang.Name(),
		Unknown:  lang.IsUnknown(),
	}
	if req.Full && !lang.IsUnknown() {
		for _, sc := range det.FullDistribution(dist) {
			res.Scores = append(res.Scores, ScoreInfo{Code: sc.Language.Code, Name: sc.Language.Name(), Score: sc.Score})
		}
	}
	if req.Tokens {
		tokens, err := det.ClassifyTokens(req.Text)
		if err != nil {
			return DetectResponse{}, err
		}
		for _, tc := range tokens {
			res.Tokens = append(res.Tokens, TokenInfo{
				Token:      tc.Token,
				Language:   det.Language(tc.Distribution).String(),
				Importance: tc.Importance,
			})
		}
	}
	res.ProcessingMs = float64(time.Since(start).Microseconds()) / 1000
	return res, nil
}

// detect runs one detection under the server lock and records metrics.
func (s *Server) detect(req DetectRequest, source string) (DetectResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	res, err := Detect(s.detector, req)
	if err != nil {
		detectionsTotal.WithLabelValues(source, "error").Inc()
		return DetectResponse{}, err
	}

	lang := res.Language
	if res.Unknown {
		lang = "unknown"
	}
	detectionsTotal.WithLabelValues(source, "success").Inc()
	detectedLanguages.WithLabelValues(lang).Inc()
	detectionDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	textLength.Observe(float64(len(req.Text)))
	return res, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
