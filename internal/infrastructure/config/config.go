// Package config loads containership.yaml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. It may be absent.
const DefaultPath = "containership.yaml"

// Knowledge backends.
const (
	BackendLocal = "local"
	BackendMCP   = "mcp"
)

// LLM providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Vector store kinds.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config models containership.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Web       WebConfig       `yaml:"web"`
	Security  SecurityConfig  `yaml:"security"`
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// PipelineConfig tunes the analysis pipeline.
type PipelineConfig struct {
	Concurrency    int           `yaml:"concurrency"`
	SourceTimeout  time.Duration `yaml:"source_timeout"`
	RewriteTimeout time.Duration `yaml:"rewrite_timeout"`
}

// LLMConfig selects the chat model used for docs answers and rewrites.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// EmbeddingConfig selects the Ollama embedding model.
type EmbeddingConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// KnowledgeConfig describes where the knowledge sources live.
type KnowledgeConfig struct {
	// Backend is "local" (in-process RAG, Tavily, OSV) or "mcp" (remote knowledge server).
	Backend   string  `yaml:"backend"`
	MCPURL    string  `yaml:"mcp_url"`
	DocsDir   string  `yaml:"docs_dir"`
	DataDir   string  `yaml:"data_dir"`
	Store     string  `yaml:"store"`
	Watch     bool    `yaml:"watch"`
	ChunkSize int     `yaml:"chunk_size"`
	TopK      int     `yaml:"top_k"`
	MinScore  float64 `yaml:"min_score"`
}

// WebConfig configures the Tavily search source.
type WebConfig struct {
	TavilyAPIKey string `yaml:"tavily_api_key,omitempty"`
	BaseURL      string `yaml:"base_url"`
	MaxResults   int    `yaml:"max_results"`
}

// SecurityConfig configures the OSV vulnerability source.
type SecurityConfig struct {
	OSVURL string `yaml:"osv_url"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Pipeline: PipelineConfig{
			Concurrency:    4,
			SourceTimeout:  30 * time.Second,
			RewriteTimeout: 2 * time.Minute,
		},
		LLM: LLMConfig{
			Provider: ProviderOllama,
			Model:    "llama3.2",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: EmbeddingConfig{
			Model:   "nomic-embed-text",
			BaseURL: "http://localhost:11434",
		},
		Knowledge: KnowledgeConfig{
			Backend:   BackendLocal,
			MCPURL:    "http://127.0.0.1:3001/mcp",
			DocsDir:   "./docs",
			DataDir:   "./data",
			Store:     StoreSQLite,
			Watch:     true,
			ChunkSize: 800,
			TopK:      4,
			MinScore:  0.3,
		},
		Web: WebConfig{
			BaseURL:    "https://api.tavily.com",
			MaxResults: 3,
		},
		Security: SecurityConfig{
			OSVURL: "https://api.osv.dev",
		},
	}
}

// Load reads path over the defaults, then applies environment overrides
// and validates. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv(os.Getenv)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.Server.Addr, "CONTAINERSHIP_ADDR")
	set(&c.LLM.Provider, "LLM_PROVIDER")
	set(&c.LLM.Model, "LLM_MODEL")
	set(&c.Embedding.BaseURL, "OLLAMA_URL")
	set(&c.Knowledge.Backend, "KNOWLEDGE_BACKEND")
	set(&c.Knowledge.MCPURL, "MCP_SERVER_URL")
	set(&c.Web.TavilyAPIKey, "TAVILY_API_KEY")

	switch strings.ToLower(c.LLM.Provider) {
	case ProviderOpenAI:
		set(&c.LLM.APIKey, "OPENAI_API_KEY")
		set(&c.LLM.BaseURL, "OPENAI_BASE_URL")
	default:
		set(&c.LLM.BaseURL, "OLLAMA_URL")
	}
}

func (c *Config) normalize() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Knowledge.Backend = strings.ToLower(strings.TrimSpace(c.Knowledge.Backend))
	c.Knowledge.Store = strings.ToLower(strings.TrimSpace(c.Knowledge.Store))

	// An OpenAI provider left on the Ollama default URL means the public API.
	if c.LLM.Provider == ProviderOpenAI && (c.LLM.BaseURL == "" || c.LLM.BaseURL == "http://localhost:11434") {
		c.LLM.BaseURL = "https://api.openai.com/v1"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOllama:
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return errors.New("llm.api_key (or OPENAI_API_KEY) is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown llm.provider %q", c.LLM.Provider)
	}

	switch c.Knowledge.Backend {
	case BackendLocal:
		if c.Knowledge.Store != StoreSQLite && c.Knowledge.Store != StoreMemory {
			return fmt.Errorf("unknown knowledge.store %q", c.Knowledge.Store)
		}
	case BackendMCP:
		if c.Knowledge.MCPURL == "" {
			return errors.New("knowledge.mcp_url is required for the mcp backend")
		}
	default:
		return fmt.Errorf("unknown knowledge.backend %q", c.Knowledge.Backend)
	}

	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be at least 1, got %d", c.Pipeline.Concurrency)
	}
	if c.Pipeline.SourceTimeout <= 0 || c.Pipeline.RewriteTimeout <= 0 {
		return errors.New("pipeline timeouts must be positive")
	}
	if c.Web.MaxResults < 1 {
		return fmt.Errorf("web.max_results must be at least 1, got %d", c.Web.MaxResults)
	}
	return nil
}
