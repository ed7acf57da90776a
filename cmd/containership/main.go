// ContainerShip: Dockerfile analysis service.
//
// Segments a Dockerfile into clauses, consults documentation, web search
// and vulnerability sources for every clause, and writes an optimized
// Dockerfile.
//
// Usage:
//
//	containership serve                 # HTTP API (plus MCP at /mcp)
//	containership analyze Dockerfile    # one-shot analysis in the terminal
//	containership mcp                   # MCP server over stdio
//	containership ingest ./docs         # load Docker docs into the knowledge store
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ubuitrago/ContainerShip/internal/app"
	"github.com/ubuitrago/ContainerShip/internal/domain/entities"
	"github.com/ubuitrago/ContainerShip/internal/infrastructure/config"
	httpserver "github.com/ubuitrago/ContainerShip/internal/infrastructure/http"
	"github.com/ubuitrago/ContainerShip/internal/infrastructure/mcpserver"
	"github.com/ubuitrago/ContainerShip/internal/infrastructure/tui"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "analyze":
		err = runAnalyze(ctx, os.Args[2:])
	case "mcp":
		err = runMCP(ctx, os.Args[2:])
	case "ingest":
		err = runIngest(ctx, os.Args[2:])
	case "--help", "-h", "help":
		printUsage()
		return
	case "--version", "-v", "version":
		fmt.Printf("containership v%s\n", mcpserver.Version)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup parses the shared --config flag plus any command flags and builds the app.
func setup(ctx context.Context, fs *flag.FlagSet, args []string) (*app.App, error) {
	configPath := fs.String("config", config.DefaultPath, "path to containership.yaml")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "listen address (overrides server.addr)")
	a, err := setup(ctx, fs, args)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.LoadKnowledge(ctx); err != nil {
		log.Printf("[WARN] Knowledge base not loaded: %v", err)
	}

	listen := a.Config.Server.Addr
	if *addr != "" {
		listen = *addr
	}

	srv := httpserver.NewServer(a.Pipeline, listen).
		WithMCP(mcpserver.NewHTTPHandler(a.MCPServer()))
	if a.Docs != nil {
		srv.WithDocs(a.Docs)
	}
	if a.Store != nil {
		srv.WithStats(a.Store)
	}
	return srv.Start(ctx)
}

func runAnalyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	stream := fs.Bool("stream", false, "print progress events as JSON lines")
	useTUI := fs.Bool("tui", false, "show live progress in an interactive view")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: containership analyze [--stream|--tui|--json] [--config file] <Dockerfile>")
		fs.PrintDefaults()
	}

	a, err := setup(ctx, fs, args)
	if err != nil {
		return err
	}
	defer a.Close()

	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("exactly one Dockerfile path is required")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("reading Dockerfile: %w", err)
	}
	doc := string(data)

	if err := a.LoadKnowledge(ctx); err != nil {
		log.Printf("[WARN] Knowledge base not loaded: %v", err)
	}

	switch {
	case *stream:
		enc := json.NewEncoder(os.Stdout)
		for ev := range a.Pipeline.Stream(ctx, doc) {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
		return ctx.Err()

	case *useTUI:
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		// Keep logs from tearing the view.
		log.SetOutput(io.Discard)
		final, err := tea.NewProgram(tui.NewModel(doc, a.Pipeline.Stream(runCtx, doc), cancel)).Run()
		if err != nil {
			return fmt.Errorf("running TUI: %w", err)
		}
		_, err = final.(tui.Model).Result()
		return err

	default:
		result, err := a.Pipeline.Run(ctx, doc)
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(result)
		}
		fmt.Print(tui.RenderReport(result))
		return nil
	}
}

func runMCP(ctx context.Context, args []string) error {
	a, err := setup(ctx, flag.NewFlagSet("mcp", flag.ExitOnError), args)
	if err != nil {
		return err
	}
	defer a.Close()

	// stdout carries the protocol; the standard logger already writes to stderr.
	if err := a.LoadKnowledge(ctx); err != nil {
		log.Printf("[WARN] Knowledge base not loaded: %v", err)
	}
	return mcpserver.ServeStdio(a.MCPServer())
}

func runIngest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	a, err := setup(ctx, fs, args)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Ingest == nil {
		return errors.New("ingest needs knowledge.backend: local")
	}
	if fs.NArg() > 0 {
		a.Config.Knowledge.DocsDir = fs.Arg(0)
	}
	a.Config.Knowledge.Watch = false

	if err := a.LoadKnowledge(ctx); err != nil {
		return err
	}
	chunks, docs, err := a.Store.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Knowledge store: %d documents, %d chunks\n", docs, chunks)
	return nil
}

func writeJSON(result *entities.AnalysisResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ContainerShip v%s - Dockerfile analysis

Usage:
  containership serve   [--addr :8080]                    Start the HTTP API (MCP at /mcp)
  containership analyze [--stream|--tui|--json] <file>    Analyze a Dockerfile
  containership mcp                                       Start the MCP server (stdio transport)
  containership ingest  [dir]                             Load Docker docs into the knowledge store

All commands accept --config <file> (default %s).

Environment:
  LLM_PROVIDER, LLM_MODEL, OPENAI_API_KEY, OPENAI_BASE_URL, OLLAMA_URL,
  TAVILY_API_KEY, KNOWLEDGE_BACKEND, MCP_SERVER_URL, CONTAINERSHIP_ADDR
`, mcpserver.Version, config.DefaultPath)
}
