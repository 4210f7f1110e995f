package asto

import (
	"context"

	"github.com/sirupsen/logrus"
)

// subStorage scopes every key under a fixed prefix.
type subStorage struct {
	origin Storage
	prefix Key
}

// Sub returns a view of origin rooted at prefix. Keys returned by List are
// relative to prefix.
func Sub(origin Storage, prefix Key) Storage {
	if prefix.IsRoot() {
		return origin
	}
	return &subStorage{origin: origin, prefix: prefix}
}

func (s *subStorage) full(key Key) Key {
	return s.prefix.Join(key.String())
}

func (s *subStorage) Exists(ctx context.Context, key Key) (bool, error) {
	if key.IsRoot() {
		return false, nil
	}
	return s.origin.Exists(ctx, s.full(key))
}

func (s *subStorage) Value(ctx context.Context, key Key) (Content, error) {
	if err := CheckValueKey(key); err != nil {
		return nil, err
	}
	return s.origin.Value(ctx, s.full(key))
}

func (s *subStorage) Save(ctx context.Context, key Key, content Content) error {
	if err := CheckValueKey(key); err != nil {
		return err
	}
	return s.origin.Save(ctx, s.full(key), content)
}

func (s *subStorage) Delete(ctx context.Context, key Key) error {
	if err := CheckValueKey(key); err != nil {
		return err
	}
	return s.origin.Delete(ctx, s.full(key))
}

func (s *subStorage) Metadata(ctx context.Context, key Key) (Meta, error) {
	if err := CheckValueKey(key); err != nil {
		return Meta{}, err
	}
	return s.origin.Metadata(ctx, s.full(key))
}

func (s *subStorage) List(ctx context.Context, prefix Key) ([]Key, error) {
	keys, err := s.origin.List(ctx, s.full(prefix))
	if err != nil {
		return nil, err
	}
	result := make([]Key, 0, len(keys))
	for _, key := range keys {
		result = append(result, key.TrimPrefix(s.prefix))
	}
	return result, nil
}

// loggingStorage logs every storage call at debug level.
type loggingStorage struct {
	origin Storage
	logger logrus.FieldLogger
}

// Logging wraps origin so every operation is logged with its key and outcome.
func Logging(origin Storage, logger logrus.FieldLogger) Storage {
	if logger == nil {
		return origin
	}
	return &loggingStorage{origin: origin, logger: logger}
}

func (s *loggingStorage) log(op string, key Key, err error) {
	entry := s.logger.WithFields(logrus.Fields{
		"action": "storage",
		"op":     op,
		"key":    key.String(),
	})
	if err != nil {
		entry.WithError(err).Debug("storage_op_failed")
		return
	}
	entry.Debug("storage_op")
}

func (s *loggingStorage) Exists(ctx context.Context, key Key) (bool, error) {
	ok, err := s.origin.Exists(ctx, key)
	s.log("exists", key, err)
	return ok, err
}

func (s *loggingStorage) Value(ctx context.Context, key Key) (Content, error) {
	content, err := s.origin.Value(ctx, key)
	s.log("value", key, err)
	return content, err
}

func (s *loggingStorage) Save(ctx context.Context, key Key, content Content) error {
	err := s.origin.Save(ctx, key, content)
	s.log("save", key, err)
	return err
}

func (s *loggingStorage) Delete(ctx context.Context, key Key) error {
	err := s.origin.Delete(ctx, key)
	s.log("delete", key, err)
	return err
}

func (s *loggingStorage) Metadata(ctx context.Context, key Key) (Meta, error) {
	meta, err := s.origin.Metadata(ctx, key)
	s.log("metadata", key, err)
	return meta, err
}

func (s *loggingStorage) List(ctx context.Context, prefix Key) ([]Key, error) {
	keys, err := s.origin.List(ctx, prefix)
	s.log("list", prefix, err)
	return keys, err
}
