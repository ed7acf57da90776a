package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
	"github.com/ubuitrago/ContainerShip/internal/domain/ports"
)

// Tool names.
const (
	ToolDocs     = "docker_docs"
	ToolWeb      = "web_search_docker"
	ToolExamples = "search_dockerfile_examples"
	ToolVulns    = "search_security_vulnerabilities"
	ToolAnalyze  = "analyze_dockerfile"
)

// DocsTool handles docker_docs.
type DocsTool struct {
	docs ports.Answerer
}

// NewDocsTool creates a DocsTool.
func NewDocsTool(docs ports.Answerer) *DocsTool {
	return &DocsTool{docs: docs}
}

// Definition returns the MCP tool definition for docker_docs.
func (t *DocsTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolDocs,
		mcp.WithDescription("Answer a question about Dockerfiles from the local Docker documentation."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question about Docker or a Dockerfile instruction"),
		),
	)
}

// Handle processes the docker_docs tool call.
func (t *DocsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question := req.GetString("question", "")
	if question == "" {
		return mcp.NewToolResultError("'question' is required"), nil
	}

	answer, err := t.docs.Answer(ctx, question)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("docs lookup failed: %v", err)), nil
	}
	return mcp.NewToolResultText(answer), nil
}

// WebSearchTool handles web_search_docker.
type WebSearchTool struct {
	web ports.WebSearcher
}

// NewWebSearchTool creates a WebSearchTool.
func NewWebSearchTool(web ports.WebSearcher) *WebSearchTool {
	return &WebSearchTool{web: web}
}

// Definition returns the MCP tool definition for web_search_docker.
func (t *WebSearchTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolWeb,
		mcp.WithDescription("Search the web for current Docker best practices and solutions."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query about Docker, containers or DevOps"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of results (default: 5, max: 10)"),
		),
	)
}

// Handle processes the web_search_docker tool call.
func (t *WebSearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	maxResults := min(intArg(req, "max_results", 5), 10)

	results, err := t.web.Search(ctx, query, maxResults)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("web search failed: %v", err)), nil
	}
	return mcp.NewToolResultText(results), nil
}

// ExamplesTool handles search_dockerfile_examples.
type ExamplesTool struct {
	web ports.WebSearcher
}

// NewExamplesTool creates an ExamplesTool.
func NewExamplesTool(web ports.WebSearcher) *ExamplesTool {
	return &ExamplesTool{web: web}
}

// Definition returns the MCP tool definition for search_dockerfile_examples.
func (t *ExamplesTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolExamples,
		mcp.WithDescription("Find example Dockerfiles for a technology and optional use case."),
		mcp.WithString("technology",
			mcp.Required(),
			mcp.Description("Technology or framework, e.g. Python Flask, Java Spring"),
		),
		mcp.WithString("use_case",
			mcp.Description("Optional use case, e.g. production, microservice"),
		),
	)
}

// Handle processes the search_dockerfile_examples tool call.
func (t *ExamplesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	technology := req.GetString("technology", "")
	if technology == "" {
		return mcp.NewToolResultError("'technology' is required"), nil
	}
	useCase := req.GetString("use_case", "")

	query := strings.Join(strings.Fields(fmt.Sprintf("Dockerfile example %s %s best practices template", technology, useCase)), " ")
	results, err := t.web.Search(ctx, query, 4)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("example search failed: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Dockerfile Examples for %s\n\n", technology)
	if useCase != "" {
		fmt.Fprintf(&b, "**Use Case**: %s\n\n", useCase)
	}
	b.WriteString(results)
	return mcp.NewToolResultText(b.String()), nil
}

// VulnerabilityTool handles search_security_vulnerabilities.
type VulnerabilityTool struct {
	vulns ports.VulnerabilityLookup
}

// NewVulnerabilityTool creates a VulnerabilityTool.
func NewVulnerabilityTool(vulns ports.VulnerabilityLookup) *VulnerabilityTool {
	return &VulnerabilityTool{vulns: vulns}
}

// Definition returns the MCP tool definition for search_security_vulnerabilities.
func (t *VulnerabilityTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolVulns,
		mcp.WithDescription("Report known vulnerabilities for a base image and the packages installed on it."),
		mcp.WithString("base_image",
			mcp.Description("Base image reference, e.g. python:3.12-slim"),
		),
		mcp.WithString("packages",
			mcp.Description("Comma-separated package names"),
		),
	)
}

// Handle processes the search_security_vulnerabilities tool call.
func (t *VulnerabilityTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	baseImage := req.GetString("base_image", "")
	packages := splitList(req.GetString("packages", ""))

	report, err := t.vulns.Lookup(ctx, baseImage, packages)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("vulnerability lookup failed: %v", err)), nil
	}
	return mcp.NewToolResultText(report), nil
}

// AnalyzeTool handles analyze_dockerfile.
type AnalyzeTool struct {
	analyzer Analyzer
}

// NewAnalyzeTool creates an AnalyzeTool.
func NewAnalyzeTool(analyzer Analyzer) *AnalyzeTool {
	return &AnalyzeTool{analyzer: analyzer}
}

// Definition returns the MCP tool definition for analyze_dockerfile.
func (t *AnalyzeTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolAnalyze,
		mcp.WithDescription("Analyze a Dockerfile clause by clause and return recommendations plus an optimized Dockerfile as JSON."),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Full Dockerfile text"),
		),
	)
}

// Handle processes the analyze_dockerfile tool call.
func (t *AnalyzeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	if strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	result, err := t.analyzer.Run(ctx, content)
	if errors.Is(err, entities.ErrMalformedScript) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// intArg extracts an integer argument, returning defaultVal when it is
// missing or not a number. JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	switch v := req.GetArguments()[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
