package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/daehan-lim/humanhunter/internal/config"
	"github.com/daehan-lim/humanhunter/internal/errors"
)

// ChatMessage is one message in a chat-completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient sends chat-completion requests. It is satisfied by Client and
// mocked in tests.
type ChatClient interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	apiKey      string
	httpClient  *http.Client
}

// NewClient builds a Client from model configuration. The API key is read
// from the configured environment variable; an empty key is allowed and
// produces ErrCapabilityUnavailable on the first request, which callers
// turn into scripted behavior.
func NewClient(cfg config.Model) *Client {
	return &Client{
		baseURL:     cfg.BaseURL,
		model:       cfg.Name,
		temperature: cfg.Temperature,
		apiKey:      cfg.APIKey(),
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
	}
}

// Available reports whether the client has credentials to make requests.
func (c *Client) Available() bool {
	return c.apiKey != ""
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends one chat-completion request and returns the first choice's
// content.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if c.apiKey == "" {
		return "", errors.ErrCapabilityUnavailable
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", errors.Wrap(err, "marshaling chat request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "building chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.NewAgentError("chat completion request failed", err).
			WithOperation("complete")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "reading chat response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.NewAgentError(
			fmt.Sprintf("chat completion returned status %d", resp.StatusCode), nil).
			WithOperation("complete")
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", errors.Wrap(errors.ErrMalformedOutput, "decoding chat response")
	}
	if parsed.Error != nil {
		return "", errors.NewAgentError("chat completion error: "+parsed.Error.Message, nil).
			WithOperation("complete")
	}
	if len(parsed.Choices) == 0 {
		return "", errors.Wrap(errors.ErrMalformedOutput, "chat response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
