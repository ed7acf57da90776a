// Package entities contains core business entities.
// These are pure domain objects with no external dependencies.
package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Document represents a knowledge-base document (Docker docs, markdown).
type Document struct {
	ID        string
	Name      string
	Path      string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk represents a piece of a knowledge document for embedding.
type Chunk struct {
	ID         string
	DocumentID string
	Source     string // Document name for citation
	Content    string
	Index      int       // Position in document
	Embedding  []float32 // Vector representation (populated by adapter)
}

// QueryResult represents a knowledge search hit with relevance.
type QueryResult struct {
	Chunk     Chunk
	Score     float64 // Similarity score
	SourceDoc string
}

// DocumentID is the stable store id of the document at path.
func DocumentID(path string) string {
	hash := sha256.Sum256([]byte(path))
	return hex.EncodeToString(hash[:8])
}
