package chat

import (
	"context"
	"sync"
	"time"
)

// DefaultTranscriptTTL is how long an idle in-memory transcript is kept.
const DefaultTranscriptTTL = 24 * time.Hour

// TranscriptStore persists chat transcripts.
type TranscriptStore interface {
	Create(ctx context.Context, sessionID string, seed Message) error
	Append(ctx context.Context, sessionID string, msgs ...Message) error
	Messages(ctx context.Context, sessionID string) ([]Message, error)
	Exists(ctx context.Context, sessionID string) (bool, error)
}

type memoryTranscript struct {
	messages  []Message
	expiresAt time.Time
}

// MemoryStore keeps transcripts in process memory.
// Like the Redis store, every write pushes the expiry out by ttl.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu          sync.Mutex
	transcripts map[string]*memoryTranscript
}

// NewMemoryStore returns an empty in-memory store. A non-positive ttl uses DefaultTranscriptTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTranscriptTTL
	}
	return &MemoryStore{
		ttl:         ttl,
		now:         time.Now,
		transcripts: make(map[string]*memoryTranscript),
	}
}

// Create starts a transcript with the seed message and evicts expired ones.
func (s *MemoryStore) Create(ctx context.Context, sessionID string, seed Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, t := range s.transcripts {
		if !now.Before(t.expiresAt) {
			delete(s.transcripts, id)
		}
	}
	s.transcripts[sessionID] = &memoryTranscript{
		messages:  []Message{seed},
		expiresAt: now.Add(s.ttl),
	}
	return nil
}

// Append adds messages to an existing transcript.
func (s *MemoryStore) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.liveLocked(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	t.messages = append(t.messages, msgs...)
	t.expiresAt = s.now().Add(s.ttl)
	return nil
}

// Messages returns a copy of the transcript.
func (s *MemoryStore) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.liveLocked(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return append([]Message(nil), t.messages...), nil
}

// Exists reports whether the session has an unexpired transcript.
func (s *MemoryStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.liveLocked(sessionID)
	return ok, nil
}

// Len returns the number of stored transcripts, expired ones included until evicted.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcripts)
}

func (s *MemoryStore) liveLocked(sessionID string) (*memoryTranscript, bool) {
	t, ok := s.transcripts[sessionID]
	if !ok {
		return nil, false
	}
	if !s.now().Before(t.expiresAt) {
		delete(s.transcripts, sessionID)
		return nil, false
	}
	return t, true
}
