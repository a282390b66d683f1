package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"github.com/HammerMeetNail/friendsync/internal/models"
)

const pebbleKeyPrefix = "friend:"

// PebbleStore is the on-device store. It survives process restarts.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebble opens (creating if needed) the store at dir.
func OpenPebble(dir string) (*PebbleStore, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0o700); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return OpenPebbleWithOptions(dir, &pebble.Options{})
}

func OpenPebbleWithOptions(dir string, opts *pebble.Options) (*PebbleStore, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("opening pebble cache: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PebbleStore) ReadAll(ctx context.Context, keys []models.ContactKey) (map[models.ContactKey]models.Friend, error) {
	out := make(map[models.ContactKey]models.Friend, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		value, closer, err := s.db.Get(pebbleKey(key))
		if errors.Is(err, pebble.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		f, err := decodeFriend(key, value)
		closer.Close()
		if err != nil {
			return nil, err
		}
		out[key] = f
	}
	return out, nil
}

func (s *PebbleStore) WriteAll(ctx context.Context, entries map[models.ContactKey]models.Friend) error {
	if len(entries) == 0 {
		return nil
	}
	batch := s.db.NewBatch()
	defer batch.Close()

	for key, f := range entries {
		f.ContactKey = key
		data, err := encodeFriend(f)
		if err != nil {
			return err
		}
		if err := batch.Set(pebbleKey(key), data, nil); err != nil {
			return fmt.Errorf("staging %s: %w", key, err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("committing cache batch: %w", err)
	}
	return nil
}

func pebbleKey(key models.ContactKey) []byte {
	return []byte(pebbleKeyPrefix + string(key))
}
