package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"honeypot/internal/models"
)

type fakeProvider struct {
	name  string
	err   error
	calls int
}

func (f *fakeProvider) Generate(context.Context, models.GenerateRequest) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "reply from " + f.name, nil
}

func (f *fakeProvider) Close() error { return nil }

func (f *fakeProvider) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{"provider": f.name}
}

func TestGenerateUsesCurrentProvider(t *testing.T) {
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b"}
	c := NewFailoverFrom([]Provider{a, b}, 3, zap.NewNop())

	reply, err := c.Generate(context.Background(), models.GenerateRequest{Current: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "reply from a", reply)
	assert.Zero(t, b.calls)
}

func TestGenerateFallsThrough(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("boom")}
	b := &fakeProvider{name: "b"}
	c := NewFailoverFrom([]Provider{a, b}, 3, zap.NewNop())

	reply, err := c.Generate(context.Background(), models.GenerateRequest{Current: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "reply from b", reply)

	// One failure is below the threshold, so "a" stays current.
	idx := c.current()
	assert.Equal(t, 0, idx)
}

func TestGenerateSwitchesOnRateLimit(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("status 429: quota exceeded")}
	b := &fakeProvider{name: "b"}
	c := NewFailoverFrom([]Provider{a, b}, 3, zap.NewNop())

	_, err := c.Generate(context.Background(), models.GenerateRequest{})
	require.NoError(t, err)

	idx := c.current()
	assert.Equal(t, 1, idx)

	_, err = c.Generate(context.Background(), models.GenerateRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, a.calls)
}

func TestGenerateTriesRestingProviderLast(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("rate limit exceeded")}
	b := &fakeProvider{name: "b", err: errors.New("boom")}
	c := NewFailoverFrom([]Provider{a, b}, 5, zap.NewNop())

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.Generate(context.Background(), models.GenerateRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, c.current())

	a.err = nil
	reply, err := c.Generate(context.Background(), models.GenerateRequest{})
	require.NoError(t, err)
	assert.Equal(t, "reply from a", reply)
	assert.Equal(t, 2, b.calls)

	info := c.GetProvidersInfo()
	assert.Equal(t, false, info[0]["resting"])
}

func TestGenerateSwitchesAfterMaxFailures(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("boom")}
	b := &fakeProvider{name: "b"}
	c := NewFailoverFrom([]Provider{a, b}, 2, zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := c.Generate(context.Background(), models.GenerateRequest{})
		require.NoError(t, err)
	}

	idx := c.current()
	assert.Equal(t, 1, idx)
}

func TestGenerateAllFailedIsServiceError(t *testing.T) {
	c := NewFailoverFrom([]Provider{
		&fakeProvider{name: "a", err: errors.New("down")},
		&fakeProvider{name: "b", err: errors.New("down too")},
	}, 3, zap.NewNop())

	_, err := c.Generate(context.Background(), models.GenerateRequest{})
	assert.ErrorIs(t, err, models.ErrService)
	assert.ErrorContains(t, err, "down too")
}

func TestGenerateCancelledContext(t *testing.T) {
	a := &fakeProvider{name: "a"}
	c := NewFailoverFrom([]Provider{a}, 3, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Generate(ctx, models.GenerateRequest{})
	assert.ErrorIs(t, err, models.ErrService)
	assert.Zero(t, a.calls)
}

func TestNewFailoverSkipsBadProviders(t *testing.T) {
	_, err := NewFailover(FailoverConfig{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewFailover(FailoverConfig{Providers: []ProviderConfig{
		{Type: "unknown", APIKey: "k"},
		{Type: ProviderGroq},
	}}, zap.NewNop())
	assert.EqualError(t, err, "no providers could be initialized")

	c, err := NewFailover(FailoverConfig{Providers: []ProviderConfig{
		{Type: ProviderOpenRouter, APIKey: "k", ModelName: "meta-llama/llama-3.1-8b-instruct"},
	}}, zap.NewNop())
	require.NoError(t, err)
	info := c.GetModelInfo()
	assert.Equal(t, "openrouter", info["provider"])
	assert.Equal(t, "https://openrouter.ai/api/v1", info["base_url"])
}

func TestRateLimitedProviderHonoursContext(t *testing.T) {
	a := &fakeProvider{name: "a"}
	p := NewRateLimitedProvider(a, 1, zap.NewNop())

	_, err := p.Generate(context.Background(), models.GenerateRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Generate(ctx, models.GenerateRequest{})
	assert.Error(t, err)
	assert.Equal(t, 1, a.calls)
}
