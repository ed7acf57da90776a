package usecases

import (
	"context"
	"fmt"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
	"github.com/ubuitrago/ContainerShip/internal/domain/ports"
)

// Source ids, in composition priority order.
const (
	SourceLocal    = "local"
	SourceWeb      = "web"
	SourceSecurity = "security"
)

// DefaultWebResults is the number of web results requested per clause.
const DefaultWebResults = 3

// LocalDocsSource asks the local Docker documentation about a clause.
type LocalDocsSource struct {
	answerer ports.Answerer
}

// NewLocalDocsSource wraps an Answerer as the "local" source.
func NewLocalDocsSource(answerer ports.Answerer) *LocalDocsSource {
	return &LocalDocsSource{answerer: answerer}
}

func (s *LocalDocsSource) Name() string { return SourceLocal }

func (s *LocalDocsSource) Invoke(ctx context.Context, q entities.SourceQuery) (string, error) {
	question := fmt.Sprintf(
		"Provide recommendations based on best practices for this %s Dockerfile clause:\n%s\nBe concise and actionable. Answer in Markdown.",
		q.Technology, q.Clause.Content,
	)
	return s.answerer.Answer(ctx, question)
}

// WebSearchSource searches the web for instruction-level best practices.
type WebSearchSource struct {
	searcher   ports.WebSearcher
	maxResults int
}

// NewWebSearchSource wraps a WebSearcher as the "web" source.
func NewWebSearchSource(searcher ports.WebSearcher, maxResults int) *WebSearchSource {
	if maxResults <= 0 {
		maxResults = DefaultWebResults
	}
	return &WebSearchSource{searcher: searcher, maxResults: maxResults}
}

func (s *WebSearchSource) Name() string { return SourceWeb }

func (s *WebSearchSource) Invoke(ctx context.Context, q entities.SourceQuery) (string, error) {
	query := fmt.Sprintf("%s Docker %s best practices optimization", q.Technology, q.Clause.Instruction)
	return s.searcher.Search(ctx, query, s.maxResults)
}

// SecuritySource looks up vulnerabilities for the base image and packages a clause touches.
type SecuritySource struct {
	lookup ports.VulnerabilityLookup
}

// NewSecuritySource wraps a VulnerabilityLookup as the "security" source.
func NewSecuritySource(lookup ports.VulnerabilityLookup) *SecuritySource {
	return &SecuritySource{lookup: lookup}
}

func (s *SecuritySource) Name() string { return SourceSecurity }

func (s *SecuritySource) Invoke(ctx context.Context, q entities.SourceQuery) (string, error) {
	return s.lookup.Lookup(ctx, q.BaseImage, q.Packages)
}

// sourceLabels are the section headings used when composing recommendations.
var sourceLabels = map[string]string{
	SourceLocal:    "Local documentation",
	SourceWeb:      "Web search",
	SourceSecurity: "Security",
}

// sourcePriority orders source ids for composition; unknown ids sort last.
func sourcePriority(name string) int {
	switch name {
	case SourceLocal:
		return 0
	case SourceWeb:
		return 1
	case SourceSecurity:
		return 2
	default:
		return 3
	}
}

func sourceLabel(name string) string {
	if label, ok := sourceLabels[name]; ok {
		return label
	}
	return name
}

// queryFor scopes a source query to one clause of a document.
func queryFor(clause entities.Clause, technology, docBaseImage string) entities.SourceQuery {
	base := BaseImage(clause.Content)
	if base == "" {
		base = docBaseImage
	}
	return entities.SourceQuery{
		Clause:     clause,
		Technology: technology,
		BaseImage:  base,
		Packages:   ExtractPackages(clause.Content),
	}
}
