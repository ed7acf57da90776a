package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ubuitrago/ContainerShip/internal/domain/ports"
)

// ErrMissingAPIKey is returned when an OpenAI adapter is built without a key.
var ErrMissingAPIKey = errors.New("missing api key")

// OpenAIAdapter implements ports.LLMService against any OpenAI-compatible
// /chat/completions endpoint.
type OpenAIAdapter struct {
	url         string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

// NewOpenAIAdapter creates an adapter; baseURL defaults to the public OpenAI API.
func NewOpenAIAdapter(baseURL, apiKey, model string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIAdapter{
		url:         strings.TrimRight(baseURL, "/") + "/chat/completions",
		apiKey:      apiKey,
		model:       model,
		temperature: 0.2,
		client:      &http.Client{Timeout: 120 * time.Second},
	}, nil
}

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
		Delta   chatMessage `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *OpenAIAdapter) do(ctx context.Context, prompt string, context []string, stream bool) (*http.Response, error) {
	body, err := json.Marshal(openAIRequest{
		Model:       a.model,
		Messages:    buildMessages(prompt, context),
		Temperature: a.temperature,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling OpenAI: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("OpenAI returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

// Generate produces a response given a prompt and context.
func (a *OpenAIAdapter) Generate(ctx context.Context, prompt string, context []string) (string, error) {
	resp, err := a.do(ctx, prompt, context, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("OpenAI: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// GenerateStream reads the server-sent "data:" lines of a streamed completion.
func (a *OpenAIAdapter) GenerateStream(ctx context.Context, prompt string, context []string) (<-chan ports.StreamToken, error) {
	resp, err := a.do(ctx, prompt, context, true)
	if err != nil {
		return nil, err
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
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			if data == "[DONE]" {
				ch <- ports.StreamToken{Done: true}
				return
			}

			var chunk openAIResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil || len(chunk.Choices) == 0 {
				continue
			}
			ch <- ports.StreamToken{Content: chunk.Choices[0].Delta.Content}
		}
		if err := scanner.Err(); err != nil {
			ch <- ports.StreamToken{Done: true, Error: err}
			return
		}
		ch <- ports.StreamToken{Done: true}
	}()
	return ch, nil
}
