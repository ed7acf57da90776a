// Package llm provides chat-model adapters implementing ports.LLMService.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ubuitrago/ContainerShip/internal/domain/ports"
)

// systemPrompt frames every request; context passages are appended to it.
const systemPrompt = "You are ContainerShip, an assistant that reviews and optimizes Dockerfiles. Be concise and actionable."

// OllamaLLMAdapter implements ports.LLMService using Ollama's chat API.
type OllamaLLMAdapter struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
}

// NewOllamaLLMAdapter creates a new Ollama LLM adapter.
func NewOllamaLLMAdapter(baseURL, model string) *OllamaLLMAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaLLMAdapter{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: 0.2,
		client: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// buildMessages puts context passages in the system message and prompt as the user turn.
func buildMessages(prompt string, context []string) []chatMessage {
	system := systemPrompt
	if len(context) > 0 {
		system += "\n\nContext:\n" + strings.Join(context, "\n\n---\n\n")
	}
	return []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}
}

func (a *OllamaLLMAdapter) newRequest(ctx context.Context, prompt string, context []string, stream bool) (*http.Request, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    a.model,
		Messages: buildMessages(prompt, context),
		Stream:   stream,
		Options:  map[string]any{"temperature": a.temperature},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Generate produces a response given a prompt and context.
func (a *OllamaLLMAdapter) Generate(ctx context.Context, prompt string, context []string) (string, error) {
	req, err := a.newRequest(ctx, prompt, context, false)
	if err != nil {
		return "", err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if chatResp.Error != "" {
		return "", fmt.Errorf("Ollama: %s", chatResp.Error)
	}

	return chatResp.Message.Content, nil
}

// GenerateStream streams the answer token by token from Ollama's NDJSON output.
func (a *OllamaLLMAdapter) GenerateStream(ctx context.Context, prompt string, context []string) (<-chan ports.StreamToken, error) {
	req, err := a.newRequest(ctx, prompt, context, true)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Ollama: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}

	ch := make(chan ports.StreamToken, 100)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if ctx.Err() != nil {
				ch <- ports.StreamToken{Done: true, Error: ctx.Err()}
				return
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue // Skip malformed lines
			}
			if chunk.Error != "" {
				ch <- ports.StreamToken{Done: true, Error: fmt.Errorf("Ollama: %s", chunk.Error)}
				return
			}

			ch <- ports.StreamToken{Content: chunk.Message.Content, Done: chunk.Done}
			if chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			ch <- ports.StreamToken{Done: true, Error: err}
		}
	}()

	return ch, nil
}
