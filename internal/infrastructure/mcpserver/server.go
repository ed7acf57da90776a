// Package mcpserver exposes the analysis service and its knowledge sources as MCP tools.
//
// This is a composition point only: every tool delegates to a domain port
// or to the analysis pipeline.
package mcpserver

import (
	"context"
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
	"github.com/ubuitrago/ContainerShip/internal/domain/ports"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Analyzer runs a full Dockerfile analysis.
type Analyzer interface {
	Run(ctx context.Context, doc string) (*entities.AnalysisResult, error)
}

// Deps are the backends behind the tools. A nil field leaves its tools unregistered.
type Deps struct {
	Docs     ports.Answerer
	Web      ports.WebSearcher
	Vulns    ports.VulnerabilityLookup
	Analyzer Analyzer
}

// New creates the MCP server with one tool per configured backend.
func New(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"containership",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	registered := 0
	if deps.Docs != nil {
		docs := NewDocsTool(deps.Docs)
		s.AddTool(docs.Definition(), docs.Handle)
		registered++
	}
	if deps.Web != nil {
		web := NewWebSearchTool(deps.Web)
		s.AddTool(web.Definition(), web.Handle)
		examples := NewExamplesTool(deps.Web)
		s.AddTool(examples.Definition(), examples.Handle)
		registered += 2
	}
	if deps.Vulns != nil {
		vulns := NewVulnerabilityTool(deps.Vulns)
		s.AddTool(vulns.Definition(), vulns.Handle)
		registered++
	}
	if deps.Analyzer != nil {
		analyze := NewAnalyzeTool(deps.Analyzer)
		s.AddTool(analyze.Definition(), analyze.Handle)
		registered++
	}

	log.Printf("[INFO] MCP server ready with %d tools", registered)
	return s
}

// ServeStdio runs s over stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// NewHTTPHandler serves s over streamable HTTP, for mounting under /mcp.
func NewHTTPHandler(s *server.MCPServer) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s)
}

const instructions = `ContainerShip analyzes Dockerfiles.
Use analyze_dockerfile for a full clause-by-clause report with an optimized Dockerfile.
Use docker_docs, web_search_docker and search_security_vulnerabilities to consult a single knowledge source.`
