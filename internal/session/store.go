// Package session keeps per-conversation aggregate state in memory.
//
// Sessions live in an expirable LRU bounded by capacity and idle TTL.
// A session that is inside a turn (see Store.Acquire) is pinned and is
// never dropped, even if the LRU evicts it; it is re-inserted when the
// turn ends.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"honeypot/internal/models"
)

const (
	DefaultTTL      = 2 * time.Hour
	DefaultCapacity = 10000
)

// Options configures a Store. Zero values select the defaults.
type Options struct {
	TTL      time.Duration
	Capacity int
	Now      func() time.Time
	// OnEvict receives a snapshot of every session dropped for capacity or
	// idleness. It must not call back into the Store.
	OnEvict func(id string, snapshot models.Session)
}

type entry struct {
	turn fifoLock

	mu   sync.Mutex
	sess *models.Session

	pins    atomic.Int32
	removed atomic.Bool
}

func (e *entry) snapshot() models.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Clone()
}

// Store is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	cache  *expirable.LRU[string, *entry]
	pinned map[string]*entry

	now     func() time.Time
	onEvict func(string, models.Session)
}

func NewStore(opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Store{
		pinned:  make(map[string]*entry),
		now:     opts.Now,
		onEvict: opts.OnEvict,
	}
	s.cache = expirable.NewLRU[string, *entry](opts.Capacity, s.evicted, opts.TTL)
	return s
}

// evicted runs under the LRU's own lock.
func (s *Store) evicted(id string, e *entry) {
	if e.pins.Load() > 0 || e.removed.Load() {
		return
	}
	if s.onEvict != nil {
		s.onEvict(id, e.snapshot())
	}
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty session id", models.ErrValidation)
	}
	return nil
}

// lookupLocked requires s.mu.
func (s *Store) lookupLocked(id string) (*entry, bool) {
	if e, ok := s.pinned[id]; ok {
		return e, true
	}
	return s.cache.Get(id)
}

func (s *Store) getOrCreateLocked(id string, meta models.Metadata) *entry {
	if e, ok := s.lookupLocked(id); ok {
		return e
	}
	e := &entry{sess: models.NewSession(id, meta, s.now())}
	s.cache.Add(id, e)
	return e
}

func (s *Store) lookup(id string) (*entry, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	e, ok := s.lookupLocked(id)
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: session %s", models.ErrNotFound, id)
	}
	return e, nil
}

// GetOrCreate returns the session for id, creating it with meta if absent.
// meta is ignored for existing sessions.
func (s *Store) GetOrCreate(id string, meta models.Metadata) (models.Session, error) {
	if err := validateID(id); err != nil {
		return models.Session{}, err
	}
	s.mu.Lock()
	e := s.getOrCreateLocked(id, meta)
	s.mu.Unlock()
	return e.snapshot(), nil
}

// Acquire creates the session if needed, pins it and enters its exclusive
// section. Callers queue in arrival order. The returned release func is
// idempotent and must be called exactly once the turn is over.
func (s *Store) Acquire(ctx context.Context, id string, meta models.Metadata) (func(), error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	e := s.getOrCreateLocked(id, meta)
	e.pins.Add(1)
	s.pinned[id] = e
	s.mu.Unlock()

	if err := e.turn.Lock(ctx); err != nil {
		s.unpin(id, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.turn.Unlock()
			s.unpin(id, e)
		})
	}, nil
}

func (s *Store) unpin(id string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.pins.Add(-1) > 0 {
		return
	}
	if s.pinned[id] == e {
		delete(s.pinned, id)
	}
	if !e.removed.Load() {
		// Re-adding refreshes the idle TTL and restores entries the LRU
		// dropped while the turn was running.
		s.cache.Add(id, e)
	}
}

func (s *Store) update(id string, fn func(*models.Session)) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.sess)
	e.sess.UpdatedAt = s.now()
	return nil
}

// AppendMessage adds a message to the conversation. An empty timestamp
// is replaced with the current time.
func (s *Store) AppendMessage(id string, sender models.Sender, text, timestamp string) error {
	if timestamp == "" {
		timestamp = s.now().UTC().Format(time.RFC3339)
	}
	return s.update(id, func(sess *models.Session) {
		sess.Messages = append(sess.Messages, models.Message{Sender: sender, Text: text, Timestamp: timestamp})
		sess.MessageCount = len(sess.Messages)
	})
}

func (s *Store) SetLatestClassification(id string, result models.ClassificationResult) error {
	return s.update(id, func(sess *models.Session) {
		sess.LatestClassification = result.Clone()
	})
}

// MergeIntelligence unions rec into the session's cumulative record.
func (s *Store) MergeIntelligence(id string, rec models.IntelligenceRecord) error {
	return s.update(id, func(sess *models.Session) {
		sess.CumulativeIntelligence = sess.CumulativeIntelligence.Merge(rec)
	})
}

func (s *Store) SetNotes(id, notes string) error {
	return s.update(id, func(sess *models.Session) {
		sess.Notes = notes
	})
}

// MarkEmitted records that the session's report went out. It is a no-op
// for sessions already marked.
func (s *Store) MarkEmitted(id string) error {
	return s.update(id, func(sess *models.Session) {
		sess.Emitted = true
	})
}

// Get returns a deep copy of the session.
func (s *Store) Get(id string) (models.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return models.Session{}, err
	}
	return e.snapshot(), nil
}

// Delete drops the session. A turn in progress keeps its private copy.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.pinned[id]; ok {
		e.removed.Store(true)
		delete(s.pinned, id)
	}
	if e, ok := s.cache.Peek(id); ok {
		e.removed.Store(true)
		s.cache.Remove(id)
	}
}

// Len reports the number of live sessions, pinned ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.cache.Len()
	for id := range s.pinned {
		if !s.cache.Contains(id) {
			n++
		}
	}
	return n
}
