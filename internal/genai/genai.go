// Package genai provides LLM-backed operations over an OpenAI-compatible API.
//
// One client covers every model interaction in the system: chat completions
// for replies, vision analysis of medical images, JSON-mode completions for
// structured extraction, fixed-dimension embeddings for the vector store, and
// Whisper transcription for voice notes.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/healthbook/healthbook/internal/models"
)

// Default model and request parameters. Reply budgets are deliberately small:
// the assistant answers over a messaging channel, not a chat UI.
const (
	DefaultChatModel      = openai.GPT4oMini
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
	DefaultTemperature    = 0.7
	DefaultTimeout        = 30 * time.Second

	// ReplyTokenBudget bounds completions on the general text path.
	ReplyTokenBudget = 70
	// ImageReplyTokenBudget bounds completions on the image path.
	ImageReplyTokenBudget = 100
	// ExtractionTokenBudget bounds the structured extraction call.
	ExtractionTokenBudget = 256
)

// openAIClient is the minimal interface over the OpenAI SDK used by Client.
// Kept small so tests can substitute a mock.
type openAIClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Temperature    float32
	Timeout        time.Duration
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL points the client at any OpenAI-compatible provider.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithChatModel overrides the chat completion model.
func WithChatModel(model string) Option {
	return func(o *Opts) { o.ChatModel = model }
}

// WithEmbeddingModel overrides the embedding model.
func WithEmbeddingModel(model string) Option {
	return func(o *Opts) { o.EmbeddingModel = model }
}

// Client wraps the OpenAI API for chat, vision, embeddings, and transcription.
type Client struct {
	api            openAIClient
	chatModel      string
	embeddingModel string
	temperature    float32
	dimensions     int
}

// NewClient initializes a GenAI client, falling back to the OPENAI_API_KEY
// environment variable when no key option is given.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		ChatModel:      DefaultChatModel,
		EmbeddingModel: DefaultEmbeddingModel,
		Temperature:    DefaultTemperature,
		Timeout:        DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:            openai.NewClientWithConfig(clientConfig),
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		dimensions:     models.EmbeddingDimensions,
	}, nil
}

// newClientWithAPI is used by tests to inject a mock API.
func newClientWithAPI(api openAIClient) *Client {
	return &Client{
		api:            api,
		chatModel:      DefaultChatModel,
		embeddingModel: DefaultEmbeddingModel,
		temperature:    DefaultTemperature,
		dimensions:     models.EmbeddingDimensions,
	}
}

// Chat generates a completion from a system and user prompt, bounded by the
// given token budget.
func (c *Client) Chat(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
		TopP:        0.9,
	}
	return c.complete(ctx, req)
}

// ChatJSON generates a completion constrained to a JSON object response.
// Callers are responsible for validating the returned payload; the model's
// output is data, never code.
func (c *Client) ChatJSON(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.3,
		MaxTokens:   maxTokens,
		TopP:        0.9,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	return c.complete(ctx, req)
}

// AnalyzeImage runs a vision completion over an image URL.
func (c *Client) AnalyzeImage(ctx context.Context, prompt, imageURL string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		Temperature: c.temperature,
		MaxTokens:   ExtractionTokenBudget,
		TopP:        0.9,
	}
	return c.complete(ctx, req)
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	slog.Debug("genai completion finished",
		"model", req.Model,
		"max_tokens", req.MaxTokens,
		"duration_ms", time.Since(start).Milliseconds())
	return resp.Choices[0].Message.Content, nil
}

// Embed generates the fixed-dimension embedding vector for a text. The
// dimension matches models.EmbeddingDimensions; the vector store is migrated
// with the same constant, and main verifies the two agree at startup.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(c.embeddingModel),
		Dimensions: c.dimensions,
	}
	resp, err := c.api.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	embedding := resp.Data[0].Embedding
	if len(embedding) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", models.ErrDimensionMismatch, len(embedding), c.dimensions)
	}
	return embedding, nil
}

// Dimensions returns the embedding vector dimension.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Transcribe converts an audio file to text using Whisper.
func (c *Client) Transcribe(ctx context.Context, filePath string) (string, error) {
	req := openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: filePath,
	}
	resp, err := c.api.CreateTranscription(ctx, req)
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return resp.Text, nil
}
