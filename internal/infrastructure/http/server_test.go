package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
	"github.com/ubuitrago/ContainerShip/internal/domain/ports"
)

// mockAnalyzer implements Analyzer for testing.
type mockAnalyzer struct {
	lastDoc string
}

func (m *mockAnalyzer) Run(ctx context.Context, doc string) (*entities.AnalysisResult, error) {
	m.lastDoc = doc
	if strings.HasPrefix(doc, " ") {
		return nil, fmt.Errorf("%w: continuation before instruction", entities.ErrMalformedScript)
	}
	return &entities.AnalysisResult{OriginalText: doc, OptimizedText: doc, Technology: "Go"}, nil
}

func (m *mockAnalyzer) Stream(ctx context.Context, doc string) <-chan entities.ProgressEvent {
	ch := make(chan entities.ProgressEvent, 3)
	ch <- entities.ProgressEvent{Kind: entities.EventStarted, Technology: "Go"}
	ch <- entities.ProgressEvent{Kind: entities.EventRewritten, OptimizedText: doc}
	ch <- entities.ProgressEvent{Kind: entities.EventCompleted}
	close(ch)
	return ch
}

func (m *mockAnalyzer) EnrichClause(ctx context.Context, doc string, index int) (*entities.Clause, error) {
	if index > 0 {
		return nil, fmt.Errorf("%w: index %d", entities.ErrClauseNotFound, index)
	}
	clause := entities.NewClause([]entities.Line{{Number: 1, Text: doc}})
	clause.Recommendations = "pin the tag"
	return &clause, nil
}

type mockDocs struct{}

func (mockDocs) AnswerStream(ctx context.Context, q string) (<-chan ports.StreamToken, error) {
	ch := make(chan ports.StreamToken, 2)
	ch <- ports.StreamToken{Content: "Use "}
	ch <- ports.StreamToken{Content: "USER", Done: true}
	close(ch)
	return ch, nil
}

type mockStats struct{}

func (mockStats) Stats(ctx context.Context) (int, int, error) { return 12, 3, nil }

func newTestServer() (*Server, *mockAnalyzer) {
	analyzer := &mockAnalyzer{}
	return NewServer(analyzer, ":0").WithDocs(mockDocs{}).WithStats(mockStats{}), analyzer
}

// readSSE collects the data payloads of an SSE body.
func readSSE(t *testing.T, body *bytes.Buffer) []string {
	t.Helper()
	var out []string
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		if line, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
			out = append(out, line)
		}
	}
	return out
}

func TestHandleAnalyze_JSON(t *testing.T) {
	srv, analyzer := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"content":"FROM golang:1.23"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var result entities.AnalysisResult
	json.NewDecoder(rec.Body).Decode(&result)
	if result.Technology != "Go" || analyzer.lastDoc != "FROM golang:1.23" {
		t.Errorf("unexpected result: %+v", result)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}
}

func TestHandleAnalyze_Multipart(t *testing.T) {
	srv, analyzer := newTestServer()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "Dockerfile")
	part.Write([]byte("FROM alpine:3.19\nRUN apk add curl"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if analyzer.lastDoc != "FROM alpine:3.19\nRUN apk add curl" {
		t.Errorf("upload not forwarded: %q", analyzer.lastDoc)
	}
}

func TestHandleAnalyze_Errors(t *testing.T) {
	srv, _ := newTestServer()
	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty", "", http.StatusBadRequest},
		{"malformed", "  && echo hi", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "text/plain")
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
			var resp map[string]string
			json.NewDecoder(rec.Body).Decode(&resp)
			if resp["error"] == "" {
				t.Error("error body missing")
			}
		})
	}
}

func TestHandleAnalyze_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyze", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHandleAnalyzeStream(t *testing.T) {
	srv, _ := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/stream", strings.NewReader("FROM scratch"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}

	events := readSSE(t, rec.Body)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	var last entities.ProgressEvent
	json.Unmarshal([]byte(events[2]), &last)
	if last.Kind != entities.EventCompleted {
		t.Errorf("last event should be completed, got %q", last.Kind)
	}
}

func TestHandleClause(t *testing.T) {
	srv, _ := newTestServer()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze/clause",
		strings.NewReader(`{"content":"FROM node:20","index":0}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var clause entities.Clause
	json.NewDecoder(rec.Body).Decode(&clause)
	if clause.Recommendations != "pin the tag" || clause.Instruction != "FROM" {
		t.Errorf("unexpected clause: %+v", clause)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze/clause",
		strings.NewReader(`{"content":"FROM node:20","index":4}`)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for out of range index, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze/clause",
		strings.NewReader(`{"content":"FROM node:20"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without index, got %d", rec.Code)
	}
}

func TestHandleSegment(t *testing.T) {
	srv, _ := newTestServer()
	doc := "  --no-cache \\\nFROM python:3.12\nRUN pip install flask"

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/segment", strings.NewReader(doc)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("strict segmentation should reject a leading continuation, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/segment?lenient=true", strings.NewReader(doc)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Technology string            `json:"technology"`
		BaseImage  string            `json:"base_image"`
		Clauses    []entities.Clause `json:"clauses"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Clauses) != 3 || resp.BaseImage != "python:3.12" || resp.Technology != "Python Flask" {
		t.Errorf("unexpected segmentation: %+v", resp)
	}
}

func TestHandleDocsStream(t *testing.T) {
	srv, _ := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs/stream?q=user", nil))

	var answer strings.Builder
	for _, data := range readSSE(t, rec.Body) {
		var tok struct {
			Content string `json:"content"`
		}
		json.Unmarshal([]byte(data), &tok)
		answer.WriteString(tok.Content)
	}
	if answer.String() != "Use USER" {
		t.Errorf("unexpected streamed answer %q", answer.String())
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	var resp struct {
		Status    string         `json:"status"`
		Knowledge map[string]int `json:"knowledge"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Status != "ok" || resp.Knowledge["chunks"] != 12 || resp.Knowledge["documents"] != 3 {
		t.Errorf("unexpected health: %+v", resp)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/analyze", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("preflight should succeed, got %d", rec.Code)
	}
}

// slowAnalyzer streams events with pauses longer than the test server's WriteTimeout.
type slowAnalyzer struct {
	mockAnalyzer
	pause time.Duration
}

func (m *slowAnalyzer) Stream(ctx context.Context, doc string) <-chan entities.ProgressEvent {
	ch := make(chan entities.ProgressEvent)
	go func() {
		defer close(ch)
		for _, kind := range []entities.EventKind{entities.EventStarted, entities.EventRewritten, entities.EventCompleted} {
			time.Sleep(m.pause)
			select {
			case ch <- entities.ProgressEvent{Kind: kind}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func TestHandleAnalyzeStream_OutlivesWriteTimeout(t *testing.T) {
	srv := NewServer(&slowAnalyzer{pause: 100 * time.Millisecond}, "")
	ts := httptest.NewUnstartedServer(srv.Handler())
	ts.Config.WriteTimeout = 50 * time.Millisecond
	ts.Start()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/analyze/stream", "text/plain", strings.NewReader("FROM alpine\n"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var kinds []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		kinds = append(kinds, ev.Type)
	}
	if len(kinds) != 3 || kinds[2] != string(entities.EventCompleted) {
		t.Errorf("stream cut short: %v (err %v)", kinds, scanner.Err())
	}
}
