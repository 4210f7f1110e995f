package asto

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by Value and Metadata when no value is stored
	// under the key.
	ErrNotFound = errors.New("asto: value not found")

	// ErrRootKey is returned when a value operation targets RootKey.
	ErrRootKey = errors.New("asto: root key is not a value")

	// ErrContentConsumed is returned when one-time content is opened twice.
	ErrContentConsumed = errors.New("asto: content already consumed")
)

// Meta describes a stored value.
type Meta struct {
	Size    int64
	Updated time.Time
}

// Storage is an asynchronous-safe key/value blob store. Implementations must
// be safe for concurrent use.
type Storage interface {
	// Exists reports whether a value is stored under key.
	Exists(ctx context.Context, key Key) (bool, error)

	// Value returns the stored content. Returns ErrNotFound if absent.
	Value(ctx context.Context, key Key) (Content, error)

	// Save drains content and stores it under key, replacing any previous
	// value. Readers never observe a partially written value; when content
	// fails mid-read nothing is stored.
	Save(ctx context.Context, key Key, content Content) error

	// Delete removes the value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// Metadata returns size and update time. Returns ErrNotFound if absent.
	Metadata(ctx context.Context, key Key) (Meta, error)

	// List returns all keys under prefix in lexical order.
	List(ctx context.Context, prefix Key) ([]Key, error)
}

// NotFoundError wraps ErrNotFound with the missing key.
func NotFoundError(key Key) error {
	return fmt.Errorf("%w: %s", ErrNotFound, key)
}

// CheckValueKey rejects RootKey for value operations.
func CheckValueKey(key Key) error {
	if key.IsRoot() {
		return ErrRootKey
	}
	return nil
}
