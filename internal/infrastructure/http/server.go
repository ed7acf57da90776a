// Package http provides the HTTP server infrastructure.
// Clean Architecture: Framework/driver layer - outermost circle.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
	"github.com/ubuitrago/ContainerShip/internal/domain/ports"
	"github.com/ubuitrago/ContainerShip/internal/domain/usecases"
)

// maxDockerfileBytes bounds uploaded Dockerfiles.
const maxDockerfileBytes = 1 << 20

// Analyzer is the analysis pipeline as seen by the HTTP layer.
type Analyzer interface {
	Run(ctx context.Context, doc string) (*entities.AnalysisResult, error)
	Stream(ctx context.Context, doc string) <-chan entities.ProgressEvent
	EnrichClause(ctx context.Context, doc string, index int) (*entities.Clause, error)
}

// DocsStreamer answers documentation questions token by token.
type DocsStreamer interface {
	AnswerStream(ctx context.Context, question string) (<-chan ports.StreamToken, error)
}

// KnowledgeStats reports the size of the knowledge base.
type KnowledgeStats interface {
	Stats(ctx context.Context) (chunks, documents int, err error)
}

// Server is the HTTP server for the analysis API.
type Server struct {
	analyzer Analyzer
	docs     DocsStreamer
	stats    KnowledgeStats
	mcp      http.Handler
	addr     string
}

// NewServer creates a new HTTP server.
func NewServer(analyzer Analyzer, addr string) *Server {
	return &Server{analyzer: analyzer, addr: addr}
}

// WithDocs enables GET /api/docs/stream.
func (s *Server) WithDocs(docs DocsStreamer) *Server {
	s.docs = docs
	return s
}

// WithStats adds knowledge base counts to /api/health.
func (s *Server) WithStats(stats KnowledgeStats) *Server {
	s.stats = stats
	return s
}

// WithMCP mounts an MCP streamable HTTP endpoint at /mcp.
func (s *Server) WithMCP(h http.Handler) *Server {
	s.mcp = h
	return s
}

// Handler returns the routed handler with middlewares applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/analyze/stream", s.handleAnalyzeStream) // SSE streaming
	mux.HandleFunc("POST /api/analyze/clause", s.handleClause)
	mux.HandleFunc("POST /api/segment", s.handleSegment)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	if s.docs != nil {
		mux.HandleFunc("GET /api/docs/stream", s.handleDocsStream)
	}
	if s.mcp != nil {
		mux.Handle("/mcp", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clearWriteDeadline(w) // analyze_dockerfile runs a full pipeline
			s.mcp.ServeHTTP(w, r)
		}))
	}

	return corsMiddleware(loggingMiddleware(mux))
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // analysis handlers clear it
	}

	log.Printf("[INFO] ContainerShip server starting on %s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleAnalyze runs a full analysis and returns the result as JSON.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	doc, err := readDockerfile(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	clearWriteDeadline(w)
	result, err := s.analyzer.Run(r.Context(), doc)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAnalyzeStream streams one ProgressEvent per SSE message.
func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	doc, err := readDockerfile(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	flusher, ok := startSSE(w)
	if !ok {
		return
	}

	for ev := range s.analyzer.Stream(r.Context(), doc) {
		sendSSE(w, flusher, ev)
	}
}

// handleClause re-enriches a single clause of a Dockerfile.
func (s *Server) handleClause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
		Index   *int   `json:"index"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDockerfileBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	if strings.TrimSpace(req.Content) == "" || req.Index == nil {
		writeError(w, http.StatusBadRequest, errors.New("content and index are required"))
		return
	}

	clause, err := s.analyzer.EnrichClause(r.Context(), req.Content, *req.Index)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, clause)
}

// handleSegment returns the clause split without enrichment. With
// ?lenient=true leading continuation lines become a preamble clause
// instead of an error.
func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	doc, err := readDockerfile(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var clauses []entities.Clause
	if r.URL.Query().Get("lenient") == "true" {
		clauses = usecases.SegmentLenient(doc)
	} else if clauses, err = usecases.Segment(doc); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"technology": usecases.DetectTechnology(doc),
		"base_image": usecases.BaseImage(doc),
		"clauses":    clauses,
	})
}

// handleDocsStream handles SSE streaming documentation questions.
func (s *Server) handleDocsStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "Query required", http.StatusBadRequest)
		return
	}

	flusher, ok := startSSE(w)
	if !ok {
		return
	}

	tokenCh, err := s.docs.AnswerStream(r.Context(), query)
	if err != nil {
		sendSSE(w, flusher, map[string]interface{}{"error": err.Error(), "done": true})
		return
	}

	for token := range tokenCh {
		if token.Error != nil {
			sendSSE(w, flusher, map[string]interface{}{"error": token.Error.Error(), "done": true})
			return
		}
		sendSSE(w, flusher, map[string]interface{}{"content": token.Content, "done": token.Done})
	}
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if s.stats != nil {
		chunks, docs, err := s.stats.Stats(r.Context())
		if err != nil {
			log.Printf("[WARN] Knowledge stats unavailable: %v", err)
		} else {
			resp["knowledge"] = map[string]int{"chunks": chunks, "documents": docs}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// readDockerfile accepts JSON {"content": ...}, a multipart "file" upload,
// or the raw Dockerfile as the request body.
func readDockerfile(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDockerfileBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var content string
	switch mediaType {
	case "application/json":
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", fmt.Errorf("decoding request: %w", err)
		}
		content = req.Content
	case "multipart/form-data":
		file, _, err := r.FormFile("file")
		if err != nil {
			return "", fmt.Errorf("reading upload: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return "", fmt.Errorf("reading upload: %w", err)
		}
		content = string(data)
	default:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return "", fmt.Errorf("reading body: %w", err)
		}
		content = string(data)
	}

	if strings.TrimSpace(content) == "" {
		return "", errors.New("dockerfile content is required")
	}
	return content, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrMalformedScript):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entities.ErrClauseNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// clearWriteDeadline lifts the server WriteTimeout for a response whose
// length is bounded by the pipeline timeouts instead.
func clearWriteDeadline(w http.ResponseWriter) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Printf("[WARN] Cannot clear write deadline: %v", err)
	}
}

func startSSE(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return nil, false
	}
	clearWriteDeadline(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher, true
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Printf("[ERROR] %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[INFO] %s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Mcp-Session-Id")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
