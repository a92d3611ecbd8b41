package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/MeKo-Tech/langdetect/internal/config"
	"github.com/MeKo-Tech/langdetect/internal/detector"
	"github.com/MeKo-Tech/langdetect/internal/model"
	"github.com/MeKo-Tech/langdetect/internal/server"
	"github.com/MeKo-Tech/langdetect/internal/tokenizer"
	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
)

// theDetectionServerIsRunning serves the tiny model trained by "a trained tiny model".
func (testCtx *TestContext) theDetectionServerIsRunning() error {
	return testCtx.startServer("*", 0)
}

func (testCtx *TestContext) theDetectionServerIsRunningWithCORSOrigin(origin string) error {
	return testCtx.startServer(origin, 0)
}

func (testCtx *TestContext) theDetectionServerIsRunningWithRequestsPerMinute(limit int) error {
	return testCtx.startServer("*", limit)
}

func (testCtx *TestContext) startServer(corsOrigin string, requestsPerMinute int) error {
	if testCtx.HTTPServer != nil {
		return errors.New("server is already running")
	}

	m, err := model.LoadFile(testCtx.Path("models/tiny.model"))
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	cfg := config.DefaultConfig()
	detCfg := cfg.ToDetectorConfig(true)
	detCfg.MaxTokenLength = m.Hyperparameters().MaxTokenLength

	det, err := detector.New(m, tokenizer.New(), m.Catalog(), detCfg,
		detector.WithCacheObserver(server.ObserveCache))
	if err != nil {
		return err
	}

	srv, err := server.NewServer(det, server.Config{
		Host:       "localhost",
		Port:       cfg.Server.Port,
		CORSOrigin: corsOrigin,
		MaxBodyKB:  cfg.Server.MaxBodyKB,
		TimeoutSec: cfg.Server.TimeoutSec,
		RateLimit:  server.RateLimitConfig{RequestsPerMinute: requestsPerMinute},
		Version:    "test",
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	testCtx.HTTPServer = httptest.NewServer(mux)
	return nil
}

func (testCtx *TestContext) serverURL(path string) (string, error) {
	if testCtx.HTTPServer == nil {
		return "", errors.New("server is not running")
	}
	return testCtx.HTTPServer.URL + path, nil
}

// recordResponse stores status, body and headers of resp.
func (testCtx *TestContext) recordResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		testCtx.LastHTTPHeaders[name] = resp.Header.Get(name)
	}
	return nil
}

func (testCtx *TestContext) do(method, path, contentType, body string) error {
	url, err := testCtx.serverURL(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return testCtx.recordResponse(resp)
}

// iGET performs a GET request against the running server.
func (testCtx *TestContext) iGET(path string) error {
	return testCtx.do(http.MethodGet, path, "", "")
}

func (testCtx *TestContext) iMakeAnOPTIONSRequestTo(path string) error {
	return testCtx.do(http.MethodOptions, path, "", "")
}

// iPOSTTextTo sends a detection request for text.
func (testCtx *TestContext) iPOSTTextTo(text, path string) error {
	body, err := json.Marshal(server.DetectRequest{Text: text, Full: true})
	if err != nil {
		return err
	}
	return testCtx.do(http.MethodPost, path, "application/json", string(body))
}

func (testCtx *TestContext) iPOSTTheBodyTo(path string, body *godog.DocString) error {
	return testCtx.do(http.MethodPost, path, "application/json", body.Content)
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("expected status %d, got %d\nBody: %s", status, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseShouldBeValidJSON verifies the last HTTP body is a JSON document.
func (testCtx *TestContext) theResponseShouldBeValidJSON() error {
	var js json.RawMessage
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &js); err != nil {
		return fmt.Errorf("response is not valid JSON: %w\nBody: %s", err, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theDetectedLanguageShouldBeOneOf(values string) error {
	var res server.DetectResponse
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &res); err != nil {
		return fmt.Errorf("failed to decode detection: %w", err)
	}
	for _, want := range strings.Split(values, ",") {
		if strings.TrimSpace(want) == res.Language {
			return nil
		}
	}
	return fmt.Errorf("detected %q, expected one of %s", res.Language, values)
}

func (testCtx *TestContext) theResponseShouldListLanguages(count int) error {
	var res server.LanguagesResponse
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &res); err != nil {
		return fmt.Errorf("failed to decode languages: %w", err)
	}
	if res.Count != count || len(res.Languages) != count {
		return fmt.Errorf("expected %d languages, got %d (%d listed)", count, res.Count, len(res.Languages))
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != value {
		return fmt.Errorf("header %s is %q, expected %q", name, got, value)
	}
	return nil
}

// iSendOverTheWebSocket opens /ws, sends one text message and keeps the reply.
func (testCtx *TestContext) iSendOverTheWebSocket(message string) error {
	url, err := testCtx.serverURL("/ws")
	if err != nil {
		return err
	}
	url = "ws" + strings.TrimPrefix(url, "http")

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read reply: %w", err)
	}
	testCtx.LastWSReply = string(data)
	return nil
}

func (testCtx *TestContext) theWebSocketReplyShouldHaveType(kind string) error {
	var reply server.WebSocketResponse
	if err := json.Unmarshal([]byte(testCtx.LastWSReply), &reply); err != nil {
		return fmt.Errorf("reply is not valid JSON: %w\nReply: %s", err, testCtx.LastWSReply)
	}
	if reply.Type != kind {
		return fmt.Errorf("reply type is %q, expected %q\nReply: %s", reply.Type, kind, testCtx.LastWSReply)
	}
	return nil
}

func (testCtx *TestContext) theWebSocketReplyShouldContain(text string) error {
	if !strings.Contains(testCtx.LastWSReply, text) {
		return fmt.Errorf("reply does not contain '%s'\nReply: %s", text, testCtx.LastWSReply)
	}
	return nil
}

// RegisterServerSteps registers the detection server step definitions.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the detection server is running$`, testCtx.theDetectionServerIsRunning)
	sc.Step(`^the detection server is running with CORS origin "([^"]*)"$`, testCtx.theDetectionServerIsRunningWithCORSOrigin)
	sc.Step(`^the detection server is running with a limit of (\d+) requests? per minute$`,
		testCtx.theDetectionServerIsRunningWithRequestsPerMinute)

	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I make an OPTIONS request to "([^"]*)"$`, testCtx.iMakeAnOPTIONSRequestTo)
	sc.Step(`^I POST the text "([^"]*)" to "([^"]*)"$`, testCtx.iPOSTTextTo)
	sc.Step(`^I POST to "([^"]*)" the body:$`, testCtx.iPOSTTheBodyTo)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response should be valid JSON$`, testCtx.theResponseShouldBeValidJSON)
	sc.Step(`^the detected language should be one of "([^"]*)"$`, testCtx.theDetectedLanguageShouldBeOneOf)
	sc.Step(`^the response should list (\d+) languages$`, testCtx.theResponseShouldListLanguages)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)

	sc.Step(`^I send "([^"]*)" over the WebSocket$`, testCtx.iSendOverTheWebSocket)
	sc.Step(`^the WebSocket reply should have type "([^"]*)"$`, testCtx.theWebSocketReplyShouldHaveType)
	sc.Step(`^the WebSocket reply should contain "([^"]*)"$`, testCtx.theWebSocketReplyShouldContain)
}
