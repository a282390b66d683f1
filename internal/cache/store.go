// Package cache holds the last known Friend record per contact key.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/HammerMeetNail/friendsync/internal/models"
)

// Store maps contact keys to Friend records. Missing keys are absent from ReadAll
// results, never an error. WriteAll overwrites whole records per key.
type Store interface {
	ReadAll(ctx context.Context, keys []models.ContactKey) (map[models.ContactKey]models.Friend, error)
	WriteAll(ctx context.Context, entries map[models.ContactKey]models.Friend) error
}

type MemoryStore struct {
	mu      sync.RWMutex
	entries map[models.ContactKey]models.Friend
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[models.ContactKey]models.Friend)}
}

func (s *MemoryStore) ReadAll(ctx context.Context, keys []models.ContactKey) (map[models.ContactKey]models.Friend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[models.ContactKey]models.Friend, len(keys))
	for _, key := range keys {
		if f, ok := s.entries[key]; ok {
			out[key] = f
		}
	}
	return out, nil
}

func (s *MemoryStore) WriteAll(ctx context.Context, entries map[models.ContactKey]models.Friend) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, f := range entries {
		f.ContactKey = key
		s.entries[key] = f
	}
	return nil
}

func encodeFriend(f models.Friend) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encoding friend %s: %w", f.ContactKey, err)
	}
	return data, nil
}

// decodeFriend re-keys the record to the key it was stored under.
func decodeFriend(key models.ContactKey, data []byte) (models.Friend, error) {
	var f models.Friend
	if err := json.Unmarshal(data, &f); err != nil {
		return models.Friend{}, fmt.Errorf("decoding friend %s: %w", key, err)
	}
	f.ContactKey = key
	return f, nil
}
