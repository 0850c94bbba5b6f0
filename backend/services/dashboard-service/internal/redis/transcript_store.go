package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"greenlens/backend/services/dashboard-service/internal/chat"
)

// TranscriptStore keeps chat transcripts as redis lists of JSON messages.
type TranscriptStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTranscriptStore returns redis-backed transcript store. Every write refreshes the ttl.
func NewTranscriptStore(client *redis.Client, ttl time.Duration) *TranscriptStore {
	return &TranscriptStore{client: client, ttl: ttl}
}

func (s *TranscriptStore) key(sessionID string) string {
	return fmt.Sprintf("chat:transcript:%s", sessionID)
}

// Create replaces any previous transcript with the seed message.
func (s *TranscriptStore) Create(ctx context.Context, sessionID string, seed chat.Message) error {
	data, err := json.Marshal(seed)
	if err != nil {
		return err
	}
	key := s.key(sessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, data)
		s.expire(ctx, pipe, key)
		return nil
	})
	return err
}

// Append adds messages to an existing transcript.
func (s *TranscriptStore) Append(ctx context.Context, sessionID string, msgs ...chat.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	key := s.key(sessionID)
	exists, err := s.Exists(ctx, sessionID)
	if err != nil {
		return err
	}
	if !exists {
		return chat.ErrSessionNotFound
	}

	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		values = append(values, data)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		s.expire(ctx, pipe, key)
		return nil
	})
	return err
}

// Messages returns the whole transcript in insertion order.
func (s *TranscriptStore) Messages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	raw, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, chat.ErrSessionNotFound
	}
	msgs := make([]chat.Message, 0, len(raw))
	for _, item := range raw {
		var m chat.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("decode transcript entry: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Exists reports whether the transcript key is still present.
func (s *TranscriptStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *TranscriptStore) expire(ctx context.Context, pipe redis.Pipeliner, key string) {
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}
