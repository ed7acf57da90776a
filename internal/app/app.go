// Package app wires configuration into concrete adapters and use cases.
//
// This is the composition root: no analysis logic lives here, only wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ubuitrago/ContainerShip/internal/adapters/embedding"
	"github.com/ubuitrago/ContainerShip/internal/adapters/filewatcher"
	"github.com/ubuitrago/ContainerShip/internal/adapters/llm"
	"github.com/ubuitrago/ContainerShip/internal/adapters/loader"
	"github.com/ubuitrago/ContainerShip/internal/adapters/mcpclient"
	"github.com/ubuitrago/ContainerShip/internal/adapters/vectordb"
	"github.com/ubuitrago/ContainerShip/internal/adapters/vulndb"
	"github.com/ubuitrago/ContainerShip/internal/adapters/websearch"
	"github.com/ubuitrago/ContainerShip/internal/domain/ports"
	"github.com/ubuitrago/ContainerShip/internal/domain/usecases"
	"github.com/ubuitrago/ContainerShip/internal/infrastructure/config"
	"github.com/ubuitrago/ContainerShip/internal/infrastructure/mcpserver"
)

// KnowledgeStore is a vector store that can report its size.
type KnowledgeStore interface {
	ports.VectorStore
	Stats(ctx context.Context) (chunks, documents int, err error)
}

// App holds the wired components for one process.
type App struct {
	Config   *config.Config
	Pipeline *usecases.Pipeline

	// Local backend only; nil when knowledge comes from an MCP server.
	Docs   *usecases.QueryUseCase
	Ingest *usecases.IngestUseCase
	Store  KnowledgeStore

	answerer ports.Answerer
	web      ports.WebSearcher
	vulns    ports.VulnerabilityLookup
	closers  []func() error
}

// New builds every component cfg asks for.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	chat, err := newLLM(cfg.LLM)
	if err != nil {
		return nil, err
	}

	switch cfg.Knowledge.Backend {
	case config.BackendMCP:
		remote, err := mcpclient.Dial(ctx, cfg.Knowledge.MCPURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to knowledge server: %w", err)
		}
		a.closers = append(a.closers, remote.Close)
		a.answerer, a.web, a.vulns = remote, remote, remote

	default:
		if err := a.buildLocal(cfg, chat); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Pipeline = usecases.NewPipeline(
		usecases.NewEnricher(a.sources(), cfg.Pipeline.SourceTimeout),
		usecases.NewLLMRewriter(chat),
		usecases.PipelineConfig{
			Concurrency:    cfg.Pipeline.Concurrency,
			RewriteTimeout: cfg.Pipeline.RewriteTimeout,
		},
	)
	return a, nil
}

func (a *App) buildLocal(cfg *config.Config, chat ports.LLMService) error {
	switch cfg.Knowledge.Store {
	case config.StoreMemory:
		a.Store = vectordb.NewInMemoryStore()
	default:
		store, err := vectordb.NewSQLiteStore(cfg.Knowledge.DataDir)
		if err != nil {
			return fmt.Errorf("opening knowledge store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.Store = store
	}

	embedder := embedding.NewOllamaAdapter(cfg.Embedding.BaseURL, cfg.Embedding.Model)
	a.Docs = usecases.NewQueryUseCase(embedder, a.Store, chat, cfg.Knowledge.TopK).
		WithMinScore(cfg.Knowledge.MinScore)
	a.Ingest = usecases.NewIngestUseCase(loader.NewMultiLoader(), embedder, a.Store, cfg.Knowledge.ChunkSize, 0)
	a.answerer = a.Docs

	if cfg.Web.TavilyAPIKey != "" {
		a.web = websearch.NewTavilySearcher(cfg.Web.BaseURL, cfg.Web.TavilyAPIKey)
	} else {
		log.Printf("[WARN] TAVILY_API_KEY not set, web search source disabled")
	}
	a.vulns = vulndb.NewOSVClient(cfg.Security.OSVURL)
	return nil
}

func (a *App) sources() []ports.Source {
	var sources []ports.Source
	if a.answerer != nil {
		sources = append(sources, usecases.NewLocalDocsSource(a.answerer))
	}
	if a.web != nil {
		sources = append(sources, usecases.NewWebSearchSource(a.web, a.Config.Web.MaxResults))
	}
	if a.vulns != nil {
		sources = append(sources, usecases.NewSecuritySource(a.vulns))
	}
	return sources
}

// MCPServer exposes the pipeline and knowledge sources as MCP tools.
func (a *App) MCPServer() *server.MCPServer {
	return mcpserver.New(mcpserver.Deps{
		Docs:     a.answerer,
		Web:      a.web,
		Vulns:    a.vulns,
		Analyzer: a.Pipeline,
	})
}

// LoadKnowledge ingests the docs directory and, when configured, keeps
// watching it until ctx is cancelled. It is a no-op for the MCP backend.
func (a *App) LoadKnowledge(ctx context.Context) error {
	if a.Ingest == nil {
		return nil
	}
	dir := a.Config.Knowledge.DocsDir

	if _, err := a.Ingest.IngestDir(ctx, dir); err != nil {
		return fmt.Errorf("ingesting %s: %w", dir, err)
	}

	if !a.Config.Knowledge.Watch {
		return nil
	}
	watcher, err := filewatcher.NewFSNotifyWatcher(nil)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	a.closers = append(a.closers, watcher.Stop)
	return a.Ingest.Watch(ctx, watcher, dir)
}

// Close releases stores and connections in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newLLM(cfg config.LLMConfig) (ports.LLMService, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		adapter, err := llm.NewOpenAIAdapter(cfg.BaseURL, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("creating OpenAI client: %w", err)
		}
		return adapter, nil
	default:
		return llm.NewOllamaLLMAdapter(cfg.BaseURL, cfg.Model), nil
	}
}
