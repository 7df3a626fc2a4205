package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"honeypot/internal/models"
)

// Client wraps the Gemini API client
type Client struct {
	client     *genai.Client
	logger     *zap.Logger
	modelName  string
	genConfig  genai.GenerationConfig
	maxRetries int
	retryDelay time.Duration
}

// Config for Gemini client
type Config struct {
	APIKey      string
	ModelName   string // Default: "gemini-1.5-flash-latest"
	Temperature float32
	MaxRetries  int
	RetryDelay  time.Duration
}

// NewClient creates a new Gemini client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-1.5-flash-latest"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.85
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	logger.Info("Gemini client initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Client{
		client:    client,
		logger:    logger,
		modelName: cfg.ModelName,
		genConfig: genai.GenerationConfig{
			Temperature:     genai.Ptr(cfg.Temperature),
			TopP:            genai.Ptr[float32](0.95),
			MaxOutputTokens: genai.Ptr[int32](100),
		},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Close closes the Gemini client
func (c *Client) Close() error {
	return c.client.Close()
}

// Generate produces one persona reply, retrying failed or empty
// responses at a constant delay.
func (c *Client) Generate(ctx context.Context, req models.GenerateRequest) (string, error) {
	// Per-request model: the system instruction varies between callers.
	model := c.client.GenerativeModel(c.modelName)
	model.GenerationConfig = c.genConfig
	system := req.SystemPrompt
	if system == "" {
		system = SystemInstruction
	}
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}

	prompt := genai.Text(BuildPrompt(req))
	attempt := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), uint64(c.maxRetries-1)), ctx)

	reply, err := backoff.RetryWithData(func() (string, error) {
		attempt++
		resp, err := model.GenerateContent(ctx, prompt)
		if err != nil {
			c.logger.Warn("Gemini request failed", zap.Int("attempt", attempt), zap.Error(err))
			return "", fmt.Errorf("gemini API error: %w", err)
		}
		text, err := replyText(resp)
		if err != nil {
			c.logger.Warn("Unusable Gemini response", zap.Int("attempt", attempt), zap.Error(err))
			return "", err
		}
		return text, nil
	}, policy)
	if err != nil {
		return "", fmt.Errorf("gemini failed after %d attempts: %w", attempt, err)
	}
	return CleanReply(reply), nil
}

// replyText joins the text parts of the first candidate.
func replyText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response from gemini")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", errors.New("no text in gemini response")
	}
	return b.String(), nil
}

func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":    "gemini",
		"model":       c.modelName,
		"max_retries": c.maxRetries,
		"retry_delay": c.retryDelay.String(),
	}
}
