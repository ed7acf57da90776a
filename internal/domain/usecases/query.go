// Package usecases - query.go answers questions from the Docker documentation.
package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
	"github.com/ubuitrago/ContainerShip/internal/domain/ports"
)

// noContextAnswer is returned when the knowledge base has nothing relevant.
const noContextAnswer = "No relevant Docker documentation was found for this clause."

// QueryUseCase answers questions by retrieval over the ingested docs.
// It implements ports.Answerer for the local documentation source.
type QueryUseCase struct {
	embedder    ports.EmbeddingService
	vectorStore ports.VectorStore
	llm         ports.LLMService
	topK        int
	minScore    float64
}

// NewQueryUseCase creates a QueryUseCase with injected dependencies.
func NewQueryUseCase(
	embedder ports.EmbeddingService,
	vectorStore ports.VectorStore,
	llm ports.LLMService,
	topK int,
) *QueryUseCase {
	if topK <= 0 {
		topK = 4
	}
	return &QueryUseCase{
		embedder:    embedder,
		vectorStore: vectorStore,
		llm:         llm,
		topK:        topK,
	}
}

// WithMinScore drops search hits scoring below min.
func (uc *QueryUseCase) WithMinScore(min float64) *QueryUseCase {
	uc.minScore = min
	return uc
}

// Answer retrieves relevant documentation and asks the LLM to answer from it.
func (uc *QueryUseCase) Answer(ctx context.Context, question string) (string, error) {
	results, err := uc.Search(ctx, question)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return noContextAnswer, nil
	}

	contextParts := citeResults(results)
	answer, err := uc.llm.Generate(ctx, uc.buildPrompt(question, contextParts), contextParts)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// AnswerStream is Answer with the LLM output streamed token by token.
func (uc *QueryUseCase) AnswerStream(ctx context.Context, question string) (<-chan ports.StreamToken, error) {
	results, err := uc.Search(ctx, question)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		ch := make(chan ports.StreamToken, 1)
		ch <- ports.StreamToken{Content: noContextAnswer, Done: true}
		close(ch)
		return ch, nil
	}

	contextParts := citeResults(results)
	tokens, err := uc.llm.GenerateStream(ctx, uc.buildPrompt(question, contextParts), contextParts)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	return tokens, nil
}

func citeResults(results []entities.QueryResult) []string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[Source: %s]\n%s", r.SourceDoc, r.Chunk.Content)
	}
	return parts
}

// Search only retrieves relevant chunks without LLM generation.
func (uc *QueryUseCase) Search(ctx context.Context, query string) ([]entities.QueryResult, error) {
	embedding, err := uc.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	results, err := uc.vectorStore.Search(ctx, embedding, uc.topK)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}

	kept := results[:0]
	for _, r := range results {
		if r.Score >= uc.minScore {
			if r.SourceDoc == "" {
				r.SourceDoc = r.Chunk.Source
			}
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// buildPrompt creates the LLM prompt with context.
func (uc *QueryUseCase) buildPrompt(question string, context []string) string {
	var sb strings.Builder
	sb.WriteString("You are a Docker expert. Answer the question using only the Docker documentation excerpts below. ")
	sb.WriteString("If they do not cover the question, say so briefly.\n\n")
	sb.WriteString("Documentation:\n")
	sb.WriteString(strings.Join(context, "\n\n"))
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}
