package server

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var (
	requestEntropyMu sync.Mutex
	requestEntropy   = ulid.Monotonic(rand.Reader, 0)
)

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketResponse is sent for every text message received.
type WebSocketResponse struct {
	Type      string          `json:"type"`   // "detection" or "error"
	Status    string          `json:"status"` // "completed" or "error"
	Result    *DetectResponse `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorType string          `json:"error_type,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// websocketHandler handles WebSocket connections for interactive detection.
func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(conn, getClientIP(r))
}

// handleWebSocketConnection processes messages from a WebSocket connection opened by client.
func (s *Server) handleWebSocketConnection(conn *websocket.Conn, client string) {
	conn.SetReadLimit(s.maxBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	var writeMu sync.Mutex
	writer := &lockedWriter{conn: conn, mu: &writeMu}

	// keep the connection alive
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second))
				writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(writer, client, data)
		}
	}
}

type lockedWriter struct {
	conn *websocket.Conn
	mu   *sync.Mutex
}

func (l *lockedWriter) WriteMessage(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(messageType, data)
}

// handleWebSocketMessage detects the language of one message. A message is either a
// JSON DetectRequest or the raw text itself. Every message counts against the
// limits of client, like a POST /detect.
func (s *Server) handleWebSocketMessage(conn WebSocketConnWriter, client string, data []byte) {
	req, err := parseWebSocketRequest(data)
	if err != nil {
		s.sendWebSocketError(conn, "invalid_request", "Failed to parse request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.sendWebSocketError(conn, "invalid_request", "No text provided")
		return
	}
	if err := s.allow(client, int64(len(req.Text))); err != nil {
		s.sendWebSocketError(conn, "rate_limited", err.Error())
		return
	}

	requestEntropyMu.Lock()
	requestID := ulid.MustNew(ulid.Now(), requestEntropy).String()
	requestEntropyMu.Unlock()

	res, err := s.detect(req, "websocket")
	if err != nil {
		s.sendWebSocketError(conn, "processing_error", "Detection failed: "+err.Error())
		return
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "detection",
		Status:    "completed",
		Result:    &res,
		RequestID: requestID,
	})
}

func parseWebSocketRequest(data []byte) (DetectRequest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return DetectRequest{Text: string(data)}, nil
	}
	var req DetectRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return DetectRequest{}, err
	}
	return req, nil
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
	})
}
