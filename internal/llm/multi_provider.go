// Package llm fronts the generative reply providers with rate limiting
// and failover.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"honeypot/internal/gemini"
	"honeypot/internal/groq"
	"honeypot/internal/models"
)

const (
	defaultRequestsPerMinute = 8 // free tier
	defaultMaxFailures       = 3
	defaultCooldown          = time.Minute
)

// FailoverConfig lists the providers in preference order.
type FailoverConfig struct {
	Providers   []ProviderConfig
	MaxFailures int           // consecutive failures before the next provider takes over
	Cooldown    time.Duration // how long a rate limited provider is passed over
}

type slot struct {
	provider Provider
	failures int
	resting  time.Time // skipped until then after a rate limit
}

// Failover sends each request to the preferred provider and walks the
// rest of the list when it fails.
type Failover struct {
	mu          sync.Mutex
	slots       []*slot
	preferred   int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewFailover builds every configured provider, each behind its own rate
// limiter. Providers that fail to initialize are logged and skipped.
func NewFailover(cfg FailoverConfig, logger *zap.Logger) (*Failover, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	providers := make([]Provider, 0, len(cfg.Providers))
	for i, pc := range cfg.Providers {
		p, err := newProvider(pc, logger)
		if err != nil {
			logger.Error("Failed to create provider",
				zap.String("type", string(pc.Type)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		rpm := pc.RequestsPerMinute
		if rpm == 0 {
			rpm = defaultRequestsPerMinute
		}
		providers = append(providers, NewRateLimitedProvider(p, rpm, logger))
		logger.Info("Provider initialized",
			zap.String("type", string(pc.Type)),
			zap.String("model", pc.ModelName),
			zap.Int("requests_per_minute", rpm))
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers could be initialized")
	}

	f := NewFailoverFrom(providers, cfg.MaxFailures, logger)
	if cfg.Cooldown > 0 {
		f.cooldown = cfg.Cooldown
	}
	return f, nil
}

// NewFailoverFrom wraps providers that are already constructed.
func NewFailoverFrom(providers []Provider, maxFailures int, logger *zap.Logger) *Failover {
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	slots := make([]*slot, len(providers))
	for i, p := range providers {
		slots[i] = &slot{provider: p}
	}
	return &Failover{
		slots:       slots,
		maxFailures: maxFailures,
		cooldown:    defaultCooldown,
		now:         time.Now,
		logger:      logger,
	}
}

func newProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:      cfg.APIKey,
			ModelName:   cfg.ModelName,
			Temperature: cfg.Temperature,
			MaxRetries:  cfg.MaxRetries,
			RetryDelay:  cfg.RetryDelay,
		}, logger)
	case ProviderGroq, ProviderOpenRouter:
		baseURL := cfg.BaseURL
		if baseURL == "" && cfg.Type == ProviderOpenRouter {
			baseURL = groq.OpenRouterBaseURL
		}
		return groq.NewClient(groq.Config{
			Name:        string(cfg.Type),
			APIKey:      cfg.APIKey,
			BaseURL:     baseURL,
			ModelName:   cfg.ModelName,
			Temperature: cfg.Temperature,
			MaxRetries:  cfg.MaxRetries,
			RetryDelay:  cfg.RetryDelay,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

// order returns slot indexes starting at the preferred one, with resting
// slots moved to the back.
func (f *Failover) order() []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	ready := make([]int, 0, len(f.slots))
	var resting []int
	for i := range f.slots {
		idx := (f.preferred + i) % len(f.slots)
		if now.Before(f.slots[idx].resting) {
			resting = append(resting, idx)
			continue
		}
		ready = append(ready, idx)
	}
	return append(ready, resting...)
}

func (f *Failover) succeeded(idx int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[idx].failures = 0
	f.slots[idx].resting = time.Time{}
}

// failed records err against slot idx and hands preference to the next
// slot once the provider is rate limited or keeps failing.
func (f *Failover) failed(idx int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.slots[idx]
	s.failures++
	limited := isRateLimitError(err)
	if limited {
		s.resting = f.now().Add(f.cooldown)
	}
	if !limited && s.failures < f.maxFailures {
		return
	}
	s.failures = 0
	if f.preferred != idx {
		return
	}
	f.preferred = (idx + 1) % len(f.slots)
	f.logger.Warn("Switching provider",
		zap.Int("from_index", idx),
		zap.Int("to_index", f.preferred),
		zap.Bool("rate_limited", limited))
}

func (f *Failover) current() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.preferred
}

// Generate returns the first successful reply. The returned error wraps
// models.ErrService.
func (f *Failover) Generate(ctx context.Context, req models.GenerateRequest) (string, error) {
	var lastErr error
	for _, idx := range f.order() {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", models.ErrService, err)
		}

		reply, err := f.slots[idx].provider.Generate(ctx, req)
		if err == nil {
			f.succeeded(idx)
			return reply, nil
		}
		lastErr = err
		f.logger.Error("Provider failed", zap.Int("provider_index", idx), zap.Error(err))
		f.failed(idx, err)
	}
	return "", fmt.Errorf("%w: all providers failed: %v", models.ErrService, lastErr)
}

func isRateLimitError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit")
}

func (f *Failover) Close() error {
	var errs []error
	for _, s := range f.slots {
		if err := s.provider.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetModelInfo describes the preferred provider.
func (f *Failover) GetModelInfo() map[string]interface{} {
	idx := f.current()
	info := f.slots[idx].provider.GetModelInfo()
	info["provider_index"] = idx
	info["total_providers"] = len(f.slots)
	return info
}

// GetProvidersInfo describes every provider and its failover state.
func (f *Failover) GetProvidersInfo() []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	out := make([]map[string]interface{}, len(f.slots))
	for i, s := range f.slots {
		info := s.provider.GetModelInfo()
		info["is_current"] = i == f.preferred
		info["failure_count"] = s.failures
		info["resting"] = now.Before(s.resting)
		out[i] = info
	}
	return out
}
