// Package mcpclient consults a remote knowledge server over MCP.
package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// ErrToolFailed is returned when the server reports a tool-level error.
var ErrToolFailed = errors.New("mcp tool failed")

// Tool names on the knowledge server.
const (
	toolDocs  = "docker_docs"
	toolWeb   = "web_search_docker"
	toolVulns = "search_security_vulnerabilities"
)

// Client implements ports.Answerer, ports.WebSearcher and
// ports.VulnerabilityLookup by calling knowledge server tools.
type Client struct {
	mcp *client.Client
}

// Dial connects to a streamable HTTP MCP endpoint and performs the handshake.
func Dial(ctx context.Context, url string) (*Client, error) {
	c, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return nil, fmt.Errorf("creating MCP client: %w", err)
	}
	return New(ctx, c)
}

// New starts c and initializes the session.
func New(ctx context.Context, c *client.Client) (*Client, error) {
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting MCP client: %w", err)
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "containership", Version: "dev"}

	info, err := c.Initialize(ctx, req)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("initializing MCP session: %w", err)
	}

	log.Printf("[INFO] Connected to MCP server %s %s", info.ServerInfo.Name, info.ServerInfo.Version)
	return &Client{mcp: c}, nil
}

// Answer asks docker_docs.
func (c *Client) Answer(ctx context.Context, question string) (string, error) {
	return c.call(ctx, toolDocs, map[string]any{"question": question})
}

// Search asks web_search_docker.
func (c *Client) Search(ctx context.Context, query string, maxResults int) (string, error) {
	return c.call(ctx, toolWeb, map[string]any{"query": query, "max_results": maxResults})
}

// Lookup asks search_security_vulnerabilities.
func (c *Client) Lookup(ctx context.Context, baseImage string, packages []string) (string, error) {
	return c.call(ctx, toolVulns, map[string]any{
		"base_image": baseImage,
		"packages":   strings.Join(packages, ","),
	})
}

// Close ends the session.
func (c *Client) Close() error {
	return c.mcp.Close()
}

func (c *Client) call(ctx context.Context, tool string, args map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args

	res, err := c.mcp.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", tool, err)
	}

	text := resultText(res)
	if res.IsError {
		return "", fmt.Errorf("%w: %s: %s", ErrToolFailed, tool, text)
	}
	return text, nil
}

// resultText joins the text parts of a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	var parts []string
	for _, content := range r.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
