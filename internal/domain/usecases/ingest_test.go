package usecases

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
	"github.com/ubuitrago/ContainerShip/internal/domain/ports"
)

// mockEmbedder implements ports.EmbeddingService for testing
type mockEmbedder struct {
	embedFn func(text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedFn != nil {
		return m.embedFn(text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		emb, err := m.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		result[i] = emb
	}
	return result, nil
}

// mockVectorStore implements ports.VectorStore for testing
type mockVectorStore struct {
	mu      sync.Mutex
	chunks  []entities.Chunk
	deleted []string
	storeFn func(chunks []entities.Chunk) error
}

func (m *mockVectorStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeFn != nil {
		return m.storeFn(chunks)
	}
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *mockVectorStore) Search(ctx context.Context, emb []float32, topK int) ([]entities.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var results []entities.QueryResult
	for i, c := range m.chunks {
		if i >= topK {
			break
		}
		results = append(results, entities.QueryResult{Chunk: c, Score: 0.9})
	}
	return results, nil
}

func (m *mockVectorStore) Delete(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, docID)
	kept := m.chunks[:0]
	for _, c := range m.chunks {
		if c.DocumentID != docID {
			kept = append(kept, c)
		}
	}
	m.chunks = kept
	return nil
}

func (m *mockVectorStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = nil
	return nil
}

func (m *mockVectorStore) deletedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// mockLoader implements ports.DocumentLoader over files on disk.
type mockLoader struct{}

func (mockLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &entities.Document{ID: entities.DocumentID(path), Name: filepath.Base(path), Path: path, Content: string(data)}, nil
}

func (mockLoader) SupportedExtensions() []string { return []string{".md"} }

// mockWatcher replays a fixed list of events.
type mockWatcher struct {
	events []ports.FileEvent
}

func (w *mockWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	ch := make(chan ports.FileEvent, len(w.events))
	for _, ev := range w.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (w *mockWatcher) Stop() error { return nil }

func TestIngestUseCase_ChunksDocument(t *testing.T) {
	store := &mockVectorStore{}
	uc := NewIngestUseCase(mockLoader{}, &mockEmbedder{}, store, 100, 20)

	doc := &entities.Document{
		ID:      "doc-1",
		Name:    "dockerfile_best-practices.md",
		Content: "Use a .dockerignore file to keep the build context small.",
	}
	if err := uc.Ingest(context.Background(), doc); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if len(store.chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(store.chunks))
	}
	if store.chunks[0].Source != doc.Name || len(store.chunks[0].Embedding) == 0 {
		t.Errorf("chunk missing source or embedding: %+v", store.chunks[0])
	}
}

func TestIngestUseCase_EmptyDocument(t *testing.T) {
	store := &mockVectorStore{}
	uc := NewIngestUseCase(mockLoader{}, &mockEmbedder{}, store, 100, 20)

	if err := uc.Ingest(context.Background(), &entities.Document{ID: "empty"}); err != nil {
		t.Error("empty doc should not error")
	}
	if len(store.chunks) != 0 {
		t.Error("empty doc should produce no chunks")
	}
}

func TestIngestUseCase_SplitsAtHeadings(t *testing.T) {
	store := &mockVectorStore{}
	uc := NewIngestUseCase(mockLoader{}, &mockEmbedder{}, store, 500, 50)

	doc := &entities.Document{
		ID:      "md",
		Name:    "run.md",
		Content: "# RUN\nCombine apt-get update with install.\n\n```sh\n# not a heading\napt-get update\n```\n## Cache\nClean the apt cache.",
	}
	if err := uc.Ingest(context.Background(), doc); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if len(store.chunks) != 2 {
		t.Fatalf("expected one chunk per heading, got %d", len(store.chunks))
	}
	if !strings.Contains(store.chunks[0].Content, "# not a heading") {
		t.Error("fenced comment should stay inside its section")
	}
	if !strings.HasPrefix(store.chunks[1].Content, "## Cache") {
		t.Errorf("second chunk should start at its heading: %q", store.chunks[1].Content)
	}
}

func TestIngestUseCase_LargeDocument(t *testing.T) {
	store := &mockVectorStore{}
	uc := NewIngestUseCase(mockLoader{}, &mockEmbedder{}, store, 50, 10)

	doc := &entities.Document{
		ID:      "big",
		Content: strings.Repeat("word ", 40),
	}
	if err := uc.Ingest(context.Background(), doc); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if len(store.chunks) < 3 {
		t.Errorf("expected multiple chunks, got %d", len(store.chunks))
	}
	seen := make(map[string]bool)
	for _, c := range store.chunks {
		if seen[c.ID] {
			t.Errorf("duplicate chunk id %s", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestIngestUseCase_ReplacesPreviousVersion(t *testing.T) {
	store := &mockVectorStore{}
	uc := NewIngestUseCase(mockLoader{}, &mockEmbedder{}, store, 100, 20)
	doc := &entities.Document{ID: "doc-1", Content: "first version"}

	_ = uc.Ingest(context.Background(), doc)
	doc.Content = "second version"
	_ = uc.Ingest(context.Background(), doc)

	if len(store.chunks) != 1 || store.chunks[0].Content != "second version" {
		t.Errorf("expected only the second version, got %+v", store.chunks)
	}
}

func TestIngestUseCase_EmbedError(t *testing.T) {
	embedder := &mockEmbedder{embedFn: func(string) ([]float32, error) { return nil, errors.New("down") }}
	uc := NewIngestUseCase(mockLoader{}, embedder, &mockVectorStore{}, 100, 20)

	if err := uc.Ingest(context.Background(), &entities.Document{ID: "d", Content: "text"}); err == nil {
		t.Error("expected embedding error")
	}
}

func TestIngestUseCase_IngestDir(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.md"), []byte("# A\nalpha"), 0644)
	os.WriteFile(filepath.Join(dir, "skip.bin"), []byte("binary"), 0644)
	os.MkdirAll(filepath.Join(dir, "sub"), 0755)
	os.WriteFile(filepath.Join(dir, "sub", "b.md"), []byte("# B\nbeta"), 0644)

	store := &mockVectorStore{}
	uc := NewIngestUseCase(mockLoader{}, &mockEmbedder{}, store, 100, 20)

	count, err := uc.IngestDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("ingest dir failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 documents, got %d", count)
	}
}

func TestIngestUseCase_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.md")
	os.WriteFile(path, []byte("# New\ncontent"), 0644)

	store := &mockVectorStore{}
	uc := NewIngestUseCase(mockLoader{}, &mockEmbedder{}, store, 100, 20)
	watcher := &mockWatcher{events: []ports.FileEvent{
		{Path: path, Operation: ports.FileCreated},
		{Path: path, Operation: ports.FileDeleted},
	}}

	if err := uc.Watch(context.Background(), watcher, dir); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	var deleted []string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if deleted = store.deletedIDs(); len(deleted) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	// One delete replaces the old version on create, one handles the removal.
	if len(deleted) != 2 || deleted[1] != entities.DocumentID(path) {
		t.Errorf("unexpected deletes: %v", deleted)
	}
}

func TestIngest_WindowKeepsRunesWhole(t *testing.T) {
	uc := NewIngestUseCase(mockLoader{}, &mockEmbedder{}, &mockVectorStore{}, 15, 4)

	content := "x" + strings.Repeat("é", 60) + " " + strings.Repeat("日本", 20)
	chunks := uc.window(content)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, c)
		}
	}
	if last := chunks[len(chunks)-1]; !strings.HasSuffix(last, "日本") {
		t.Errorf("last chunk should reach the end: %q", last)
	}
}
