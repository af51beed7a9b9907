// ABOUTME: In-memory session store backed by a mutex-guarded map
// ABOUTME: Lazily evicts expired records on read and optionally sweeps in the background

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/timecard/internal/metrics"
)

// maxIDAttempts bounds retries on the (practically impossible) identifier collision.
const maxIDAttempts = 3

// MemoryStore keeps sessions in process memory. Everything is lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Record
	opts     Options
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. When sweepInterval is positive a
// goroutine removes expired records on that interval until Close is called.
func NewMemoryStore(opts Options, sweepInterval time.Duration) *MemoryStore {
	opts.setDefaults()
	s := &MemoryStore{
		sessions: make(map[string]*Record),
		opts:     opts,
		logger:   slog.Default().With("component", "session-memory"),
	}

	if sweepInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.done = make(chan struct{})
		go s.sweepLoop(ctx, sweepInterval)
	}
	return s
}

// Create stores a new record for data and returns its identifier.
func (s *MemoryStore) Create(ctx context.Context, data Data) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.freshIDLocked()
	if err != nil {
		return "", err
	}
	s.sessions[id] = s.opts.newRecord(id, data)
	s.publishLocked()
	return id, nil
}

// Get returns a copy of the record, or ErrNotFound if it is absent or expired.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.liveLocked(id)
	if err != nil {
		return nil, err
	}
	out := *rec
	return &out, nil
}

// Set replaces the data of a live record without changing its expiry.
func (s *MemoryStore) Set(ctx context.Context, id string, data Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.liveLocked(id)
	if err != nil {
		return err
	}
	rec.Data = data
	return nil
}

// Touch pushes the expiry of a live record to now + TTL.
func (s *MemoryStore) Touch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.liveLocked(id)
	if err != nil {
		return nil
	}
	now := s.opts.Now()
	rec.TouchedAt = now
	rec.Cookie.Expires = now.Add(s.opts.TTL)
	return nil
}

// Destroy removes a record. Destroying an absent record is not an error.
func (s *MemoryStore) Destroy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	s.publishLocked()
	return nil
}

// Regenerate moves a live record's data to a new identifier and deletes the old one.
func (s *MemoryStore) Regenerate(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.liveLocked(id)
	if err != nil {
		return "", err
	}

	newID, err := s.freshIDLocked()
	if err != nil {
		return "", err
	}

	s.sessions[newID] = s.opts.newRecord(newID, old.Data)
	delete(s.sessions, id)
	return newID, nil
}

// Len returns the number of records held, including expired ones not yet evicted.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops the sweeper and drops every session.
func (s *MemoryStore) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.sessions)
	s.publishLocked()
	return nil
}

// liveLocked returns the stored record for id, evicting it if expired.
func (s *MemoryStore) liveLocked(id string) (*Record, error) {
	rec, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Expired(s.opts.Now()) {
		delete(s.sessions, id)
		s.publishLocked()
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) freshIDLocked() (string, error) {
	for range maxIDAttempts {
		id, err := s.opts.NewID()
		if err != nil {
			return "", err
		}
		if _, taken := s.sessions[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("generating session id: %d collisions", maxIDAttempts)
}

func (s *MemoryStore) publishLocked() {
	metrics.SessionsActive.Set(float64(len(s.sessions)))
}

func (s *MemoryStore) sweepLoop(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now()
	removed := 0
	for id, rec := range s.sessions {
		if rec.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.publishLocked()
		s.logger.Debug("swept expired sessions", "count", removed)
	}
}
