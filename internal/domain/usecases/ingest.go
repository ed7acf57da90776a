// Package usecases contains the analysis pipeline and the knowledge base it consults.
// Usecases depend only on entities and port interfaces, never on adapters.
package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
	"github.com/ubuitrago/ContainerShip/internal/domain/ports"
)

// IngestUseCase loads Docker documentation into the vector store.
type IngestUseCase struct {
	loader       ports.DocumentLoader
	embedder     ports.EmbeddingService
	vectorStore  ports.VectorStore
	chunkSize    int
	chunkOverlap int
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(
	loader ports.DocumentLoader,
	embedder ports.EmbeddingService,
	vectorStore ports.VectorStore,
	chunkSize, chunkOverlap int,
) *IngestUseCase {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 10
	}
	return &IngestUseCase{
		loader:       loader,
		embedder:     embedder,
		vectorStore:  vectorStore,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Ingest chunks, embeds and stores one document, replacing any earlier version.
func (uc *IngestUseCase) Ingest(ctx context.Context, doc *entities.Document) error {
	chunks := uc.chunkDocument(doc)
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := uc.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %s: %w", doc.Name, err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding %s: got %d vectors for %d chunks", doc.Name, len(embeddings), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := uc.vectorStore.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("replacing %s: %w", doc.Name, err)
	}
	return uc.vectorStore.Store(ctx, chunks)
}

// IngestFile loads and ingests the document at path.
func (uc *IngestUseCase) IngestFile(ctx context.Context, path string) error {
	doc, err := uc.loader.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return uc.Ingest(ctx, doc)
}

// IngestDir ingests every supported file under dir and returns how many
// documents were stored. A failing file is logged and skipped.
func (uc *IngestUseCase) IngestDir(ctx context.Context, dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !uc.supported(path) {
			return nil
		}
		if err := uc.IngestFile(ctx, path); err != nil {
			log.Printf("[WARN] Skipping %s: %v", path, err)
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("walking %s: %w", dir, err)
	}
	log.Printf("[INFO] Ingested %d documents from %s", count, dir)
	return count, nil
}

// Watch re-ingests documents under dir as they change until ctx ends.
func (uc *IngestUseCase) Watch(ctx context.Context, watcher ports.FileWatcher, dir string) error {
	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go func() {
		for ev := range events {
			switch ev.Operation {
			case ports.FileCreated, ports.FileModified:
				if err := uc.IngestFile(ctx, ev.Path); err != nil {
					log.Printf("[WARN] Re-ingest %s failed: %v", ev.Path, err)
					continue
				}
				log.Printf("[INFO] Re-ingested %s", ev.Path)
			case ports.FileDeleted:
				if err := uc.Delete(ctx, entities.DocumentID(ev.Path)); err != nil {
					log.Printf("[WARN] Removing %s failed: %v", ev.Path, err)
				}
			}
		}
	}()
	return nil
}

// Delete removes a document from the store.
func (uc *IngestUseCase) Delete(ctx context.Context, documentID string) error {
	return uc.vectorStore.Delete(ctx, documentID)
}

func (uc *IngestUseCase) supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range uc.loader.SupportedExtensions() {
		if ext == e {
			return true
		}
	}
	return false
}

// chunkDocument splits a document into overlapping chunks that never cross
// a markdown heading, so each chunk stays on one topic.
func (uc *IngestUseCase) chunkDocument(doc *entities.Document) []entities.Chunk {
	var chunks []entities.Chunk
	index := 0
	for _, section := range splitSections(doc.Content) {
		for _, text := range uc.window(section) {
			chunks = append(chunks, entities.Chunk{
				ID:         generateChunkID(doc.ID, index),
				DocumentID: doc.ID,
				Source:     doc.Name,
				Content:    text,
				Index:      index,
			})
			index++
		}
	}
	return chunks
}

// splitSections cuts markdown at headings; each section keeps its heading.
func splitSections(content string) []string {
	var sections []string
	var current []string
	inFence := false
	flush := func() {
		if s := strings.TrimSpace(strings.Join(current, "\n")); s != "" {
			sections = append(sections, s)
		}
		current = nil
	}
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		if !inFence && strings.HasPrefix(line, "#") {
			flush()
		}
		current = append(current, line)
	}
	flush()
	return sections
}

// window slices text into chunkSize pieces with chunkOverlap, breaking at spaces.
func (uc *IngestUseCase) window(content string) []string {
	var out []string
	start := 0
	for start < len(content) {
		end := start + uc.chunkSize
		if end >= len(content) {
			end = len(content)
		} else if lastSpace := strings.LastIndex(content[start:end], " "); lastSpace > uc.chunkOverlap {
			end = start + lastSpace
		} else if end = runeFloor(content, end); end <= start {
			end = runeCeil(content, start+1)
		}

		if text := strings.TrimSpace(content[start:end]); text != "" {
			out = append(out, text)
		}
		if end == len(content) {
			break
		}
		next := runeFloor(content, end-uc.chunkOverlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// runeFloor moves i back to the start of the rune containing it.
func runeFloor(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeCeil moves i forward to the next rune start.
func runeCeil(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// generateChunkID creates a deterministic ID for a chunk.
func generateChunkID(docID string, index int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", docID, index)))
	return hex.EncodeToString(hash[:8])
}
