// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions, not on concrete adapters.
package ports

import (
	"context"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
)

// Source is one knowledge source consulted for every clause.
// Implementations return plain text; all payload unwrapping happens inside them.
type Source interface {
	// Name is the stable source id ("local", "web", "security").
	Name() string

	// Invoke queries the source for a single clause.
	Invoke(ctx context.Context, q entities.SourceQuery) (string, error)
}

// Answerer answers a free-form question from the local Docker documentation.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// WebSearcher searches the web and returns formatted results.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) (string, error)
}

// VulnerabilityLookup reports known vulnerabilities for a base image and its packages.
type VulnerabilityLookup interface {
	Lookup(ctx context.Context, baseImage string, packages []string) (string, error)
}

// Rewriter synthesizes an optimized Dockerfile from the original and the clause recommendations.
type Rewriter interface {
	Rewrite(ctx context.Context, original, technology string, clauses []entities.Clause) (string, error)
}

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMService generates text responses from a language model.
type LLMService interface {
	// Generate produces a response given a prompt and context.
	Generate(ctx context.Context, prompt string, context []string) (string, error)

	// GenerateStream produces a streaming response.
	GenerateStream(ctx context.Context, prompt string, context []string) (<-chan StreamToken, error)
}

// VectorStore persists and queries knowledge embeddings.
type VectorStore interface {
	// Store saves chunks with their embeddings.
	Store(ctx context.Context, chunks []entities.Chunk) error

	// Search finds the most similar chunks to a query embedding.
	Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error)

	// Delete removes all chunks for a document.
	Delete(ctx context.Context, documentID string) error

	// Clear removes all data from the store.
	Clear(ctx context.Context) error
}

// DocumentLoader reads knowledge documents from disk.
type DocumentLoader interface {
	// Load reads a document from the given path.
	Load(ctx context.Context, path string) (*entities.Document, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// StreamToken represents a single token in a streaming LLM response.
type StreamToken struct {
	Content string
	Done    bool
	Error   error
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
