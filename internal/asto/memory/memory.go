// Package memory provides a map-backed asto.Storage used by tests and by
// repositories configured with Storage.Type = "memory".
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/artipie/artipie/internal/asto"
)

type entry struct {
	data    []byte
	updated time.Time
}

// Storage keeps values in memory. The zero value is not usable; call New.
type Storage struct {
	mu   sync.RWMutex
	data map[asto.Key]entry
	now  func() time.Time
}

// New returns an empty in-memory storage.
func New() *Storage {
	return &Storage{
		data: make(map[asto.Key]entry),
		now:  time.Now,
	}
}

func (s *Storage) Exists(ctx context.Context, key asto.Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok, nil
}

func (s *Storage) Value(ctx context.Context, key asto.Key) (asto.Content, error) {
	if err := asto.CheckValueKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok {
		return nil, asto.NotFoundError(key)
	}
	return asto.FromBytes(e.data), nil
}

// Save reads content fully before publishing it, so a failing reader leaves
// the previous value (or nothing) in place.
func (s *Storage) Save(ctx context.Context, key asto.Key, content asto.Content) error {
	if err := asto.CheckValueKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := asto.ReadAll(content)
	if err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}

	s.mu.Lock()
	s.data[key] = entry{data: data, updated: s.now().UTC()}
	s.mu.Unlock()
	return nil
}

func (s *Storage) Delete(ctx context.Context, key asto.Key) error {
	if err := asto.CheckValueKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *Storage) Metadata(ctx context.Context, key asto.Key) (asto.Meta, error) {
	if err := asto.CheckValueKey(key); err != nil {
		return asto.Meta{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok {
		return asto.Meta{}, asto.NotFoundError(key)
	}
	return asto.Meta{Size: int64(len(e.data)), Updated: e.updated}, nil
}

func (s *Storage) List(ctx context.Context, prefix asto.Key) ([]asto.Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	keys := make([]asto.Key, 0, len(s.data))
	for key := range s.data {
		if key.HasPrefix(prefix) {
			keys = append(keys, key)
		}
	}
	s.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys, nil
}

// SetClock overrides the time source used for Meta.Updated.
func (s *Storage) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}
