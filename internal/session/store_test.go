package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honeypot/internal/models"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Now == nil {
		fixed := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
		opts.Now = func() time.Time { return fixed }
	}
	return NewStore(opts)
}

func TestGetOrCreateIdempotent(t *testing.T) {
	s := newTestStore(t, Options{})

	first, err := s.GetOrCreate("abc", models.Metadata{Channel: "WhatsApp"})
	require.NoError(t, err)
	second, err := s.GetOrCreate("abc", models.Metadata{Channel: "Email"})
	require.NoError(t, err)

	assert.Equal(t, "WhatsApp", second.Metadata.Channel)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, 1, s.Len())
}

func TestEmptyIDIsValidationError(t *testing.T) {
	s := newTestStore(t, Options{})

	_, err := s.GetOrCreate("  ", models.Metadata{})
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = s.Acquire(context.Background(), "", models.Metadata{})
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	s := newTestStore(t, Options{})

	_, err := s.Get("missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))

	for _, err := range []error{
		s.AppendMessage("missing", models.SenderCounterparty, "hi", ""),
		s.SetLatestClassification("missing", models.ClassificationResult{}),
		s.MergeIntelligence("missing", models.NewIntelligenceRecord()),
		s.SetNotes("missing", "x"),
		s.MarkEmitted("missing"),
	} {
		assert.True(t, errors.Is(err, models.ErrNotFound), "got %v", err)
	}
}

func TestAppendMessageKeepsCount(t *testing.T) {
	s := newTestStore(t, Options{})
	_, err := s.GetOrCreate("abc", models.Metadata{})
	require.NoError(t, err)

	require.NoError(t, s.AppendMessage("abc", models.SenderCounterparty, "hello", "2025-01-15T09:00:00Z"))
	require.NoError(t, s.AppendMessage("abc", models.SenderAgent, "who is this?", ""))

	got, err := s.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)
	assert.Len(t, got.Messages, 2)
	assert.Equal(t, "2025-01-15T09:00:00Z", got.Messages[0].Timestamp)
	assert.Equal(t, "2025-01-15T10:00:00Z", got.Messages[1].Timestamp)
	assert.Equal(t, 1, got.CounterpartyTurns())
}

func TestGetReturnsDeepCopy(t *testing.T) {
	s := newTestStore(t, Options{})
	_, err := s.GetOrCreate("abc", models.Metadata{})
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage("abc", models.SenderCounterparty, "hello", ""))
	require.NoError(t, s.MergeIntelligence("abc", models.IntelligenceRecord{UPIIDs: []string{"a@upi"}}))

	snap, err := s.Get("abc")
	require.NoError(t, err)
	snap.Messages[0].Text = "mutated"
	snap.CumulativeIntelligence.UPIIDs[0] = "mutated"

	again, err := s.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, "hello", again.Messages[0].Text)
	assert.Equal(t, []string{"a@upi"}, again.CumulativeIntelligence.UPIIDs)
}

func TestMergeIntelligenceIdempotent(t *testing.T) {
	s := newTestStore(t, Options{})
	_, err := s.GetOrCreate("abc", models.Metadata{})
	require.NoError(t, err)

	rec := models.IntelligenceRecord{
		UPIIDs:       []string{"scammer@upi"},
		PhoneNumbers: []string{"+919876543210"},
		Tactics:      []models.Tactic{{Category: "urgency", Keyword: "urgent"}},
	}
	require.NoError(t, s.MergeIntelligence("abc", rec))
	once, err := s.Get("abc")
	require.NoError(t, err)

	require.NoError(t, s.MergeIntelligence("abc", rec))
	twice, err := s.Get("abc")
	require.NoError(t, err)

	assert.Equal(t, once.CumulativeIntelligence, twice.CumulativeIntelligence)
}

func TestMarkEmittedIsSticky(t *testing.T) {
	s := newTestStore(t, Options{})
	_, err := s.GetOrCreate("abc", models.Metadata{})
	require.NoError(t, err)

	require.NoError(t, s.MarkEmitted("abc"))
	require.NoError(t, s.MarkEmitted("abc"))

	got, err := s.Get("abc")
	require.NoError(t, err)
	assert.True(t, got.Emitted)
}

func TestSetLatestClassificationLastWins(t *testing.T) {
	s := newTestStore(t, Options{})
	_, err := s.GetOrCreate("abc", models.Metadata{})
	require.NoError(t, err)

	require.NoError(t, s.SetLatestClassification("abc", models.ClassificationResult{IsScam: true, Confidence: 0.9, RiskTier: models.RiskCritical}))
	require.NoError(t, s.SetLatestClassification("abc", models.ClassificationResult{Confidence: 0.1, RiskTier: models.RiskLow}))

	got, err := s.Get("abc")
	require.NoError(t, err)
	assert.False(t, got.LatestClassification.IsScam)
	assert.Equal(t, 0.1, got.LatestClassification.Confidence)
}

func TestConcurrentTurnsOnOneSession(t *testing.T) {
	s := newTestStore(t, Options{})
	const turns = 50

	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			release, err := s.Acquire(context.Background(), "shared", models.Metadata{})
			if !assert.NoError(t, err) {
				return
			}
			defer release()
			assert.NoError(t, s.AppendMessage("shared", models.SenderCounterparty, fmt.Sprintf("msg %d", i), ""))
			assert.NoError(t, s.AppendMessage("shared", models.SenderAgent, "reply", ""))
		}(i)
	}
	wg.Wait()

	got, err := s.Get("shared")
	require.NoError(t, err)
	assert.Equal(t, 2*turns, got.MessageCount)
	assert.Len(t, got.Messages, 2*turns)

	// Each turn holds the section, so its two messages are adjacent.
	for i := 0; i < len(got.Messages); i += 2 {
		assert.Equal(t, models.SenderCounterparty, got.Messages[i].Sender)
		assert.Equal(t, models.SenderAgent, got.Messages[i+1].Sender)
	}
}

func TestAcquireIsFIFO(t *testing.T) {
	s := newTestStore(t, Options{})
	release, err := s.Acquire(context.Background(), "abc", models.Metadata{})
	require.NoError(t, err)

	s.mu.Lock()
	e := s.pinned["abc"]
	s.mu.Unlock()
	require.NotNil(t, e)

	const waiters = 8
	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rel, err := s.Acquire(context.Background(), "abc", models.Metadata{})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			rel()
		}(i)
		want := i + 1
		require.Eventually(t, func() bool { return e.turn.queued() == want }, time.Second, time.Millisecond)
	}

	release()
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
}

func TestAcquireCancelledWhileQueued(t *testing.T) {
	s := newTestStore(t, Options{})
	release, err := s.Acquire(context.Background(), "abc", models.Metadata{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Acquire(ctx, "abc", models.Metadata{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()

	again, err := s.Acquire(context.Background(), "abc", models.Metadata{})
	require.NoError(t, err)
	again()
}

func TestReleaseIsIdempotent(t *testing.T) {
	s := newTestStore(t, Options{})
	release, err := s.Acquire(context.Background(), "abc", models.Metadata{})
	require.NoError(t, err)

	release()
	assert.NotPanics(t, release)
}

func TestCapacityEviction(t *testing.T) {
	var (
		mu      sync.Mutex
		evicted []string
	)
	s := newTestStore(t, Options{
		Capacity: 2,
		OnEvict: func(id string, _ models.Session) {
			mu.Lock()
			evicted = append(evicted, id)
			mu.Unlock()
		},
	})

	for _, id := range []string{"a", "b", "c"} {
		_, err := s.GetOrCreate(id, models.Metadata{})
		require.NoError(t, err)
	}

	_, err := s.Get("a")
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.Equal(t, 2, s.Len())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a"}, evicted)
}

func TestIdleSessionsExpire(t *testing.T) {
	var evictions sync.WaitGroup
	evictions.Add(1)
	var once sync.Once

	s := NewStore(Options{
		TTL: 50 * time.Millisecond,
		OnEvict: func(string, models.Session) {
			once.Do(evictions.Done)
		},
	})
	_, err := s.GetOrCreate("idle", models.Metadata{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := s.Get("idle")
		return errors.Is(err, models.ErrNotFound)
	}, 2*time.Second, 10*time.Millisecond)
	evictions.Wait()
}

func TestPinnedSessionSurvivesEviction(t *testing.T) {
	s := newTestStore(t, Options{Capacity: 1})

	release, err := s.Acquire(context.Background(), "busy", models.Metadata{})
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage("busy", models.SenderCounterparty, "hello", ""))

	// Pushes "busy" out of the LRU while its turn is still open.
	_, err = s.GetOrCreate("other", models.Metadata{})
	require.NoError(t, err)

	got, err := s.Get("busy")
	require.NoError(t, err)
	assert.Equal(t, 1, got.MessageCount)

	release()

	got, err = s.Get("busy")
	require.NoError(t, err)
	assert.Equal(t, 1, got.MessageCount)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t, Options{})
	_, err := s.GetOrCreate("abc", models.Metadata{})
	require.NoError(t, err)

	s.Delete("abc")

	_, err = s.Get("abc")
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.Zero(t, s.Len())
}

func TestDeleteWhilePinned(t *testing.T) {
	s := newTestStore(t, Options{})
	release, err := s.Acquire(context.Background(), "abc", models.Metadata{})
	require.NoError(t, err)

	s.Delete("abc")
	release()

	_, err = s.Get("abc")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestMessageCountAccumulatesAcrossGetOrCreate(t *testing.T) {
	s := newTestStore(t, Options{})

	_, err := s.GetOrCreate("abc", models.Metadata{})
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage("abc", models.SenderCounterparty, "hello", ""))
	require.NoError(t, s.AppendMessage("abc", models.SenderAgent, "hi", ""))

	again, err := s.GetOrCreate("abc", models.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, 2, again.MessageCount)

	require.NoError(t, s.AppendMessage("abc", models.SenderCounterparty, "still there?", ""))
	got, err := s.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, 3, got.MessageCount)
}
