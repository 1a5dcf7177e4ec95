// Package llm provides chat completion against an OpenAI-compatible API
// (SiliconFlow by default).
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one chat completion call. Model overrides the client default
// when non-empty.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// Client is the text-generation dependency consumed by the interview agents.
type Client interface {
	// ChatCompletion returns the complete assistant response.
	ChatCompletion(ctx context.Context, req Request) (string, error)

	// ChatCompletionStream delivers the response in chunks via fn.
	ChatCompletionStream(ctx context.Context, req Request, fn func(chunk string)) error
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client       *openai.Client
	defaultModel string
}

// Options configure NewOpenAIClient.
type Options struct {
	APIKey  string
	BaseURL string // defaults to the SiliconFlow endpoint
	Model   string
}

const defaultBaseURL = "https://api.siliconflow.cn/v1"

// NewOpenAIClient creates a client for the configured endpoint.
func NewOpenAIClient(opts Options) (*OpenAIClient, error) {
	if opts.APIKey == "" {
		return nil, errors.New("llm: API key is required")
	}
	if opts.Model == "" {
		return nil, errors.New("llm: default model is required")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(baseURL, "/")

	return &OpenAIClient{
		client:       openai.NewClientWithConfig(cfg),
		defaultModel: opts.Model,
	}, nil
}

func (c *OpenAIClient) buildRequest(req Request) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

// ChatCompletion sends a non-streaming completion request.
func (c *OpenAIClient) ChatCompletion(ctx context.Context, req Request) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatCompletionStream sends a streaming completion request, invoking fn for
// every content chunk as it arrives.
func (c *OpenAIClient) ChatCompletionStream(ctx context.Context, req Request, fn func(chunk string)) error {
	apiReq := c.buildRequest(req)
	apiReq.Stream = true

	stream, err := c.client.CreateChatCompletionStream(ctx, apiReq)
	if err != nil {
		return fmt.Errorf("opening completion stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading completion stream: %w", err)
		}
		if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
			fn(resp.Choices[0].Delta.Content)
		}
	}
}
