package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"honeypot/internal/models"
)

// HTTPSender posts the payload as JSON to a callback URL.
type HTTPSender struct {
	url        string
	apiKey     string
	httpClient *http.Client
	maxRetries uint64
	logger     *zap.Logger
}

// HTTPConfig configures an HTTPSender.
type HTTPConfig struct {
	URL        string
	APIKey     string // sent as x-api-key when set
	Timeout    time.Duration
	MaxRetries int
}

func NewHTTPSender(cfg HTTPConfig, logger *zap.Logger) *HTTPSender {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &HTTPSender{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: uint64(cfg.MaxRetries),
		logger:     logger,
	}
}

// Send retries transport errors and 5xx responses with exponential
// backoff until ctx expires. 4xx responses are not retried.
func (s *HTTPSender) Send(ctx context.Context, p Payload) (*Result, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var result *Result
	attempt := 0
	op := func() error {
		attempt++
		r, err := s.post(ctx, body)
		if err != nil {
			s.logger.Warn("Callback attempt failed",
				zap.String("session_id", p.SessionID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		result = r
		if r.StatusCode >= 400 && r.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("callback returned status %d", r.StatusCode))
		}
		if !r.Success {
			return fmt.Errorf("callback returned status %d", r.StatusCode)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, s.maxRetries), ctx)); err != nil {
		return result, fmt.Errorf("%w: callback to %s failed: %v", models.ErrService, s.url, err)
	}

	s.logger.Info("Callback delivered",
		zap.String("session_id", p.SessionID),
		zap.Int("status", result.StatusCode),
		zap.Int("attempts", attempt))
	return result, nil
}

func (s *HTTPSender) post(ctx context.Context, body []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &Result{
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		Response:   string(text),
		Timestamp:  time.Now(),
	}, nil
}
