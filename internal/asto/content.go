package asto

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Content is a lazily readable byte sequence.
//
// Replayable content (FromBytes) may be opened any number of times. One-time
// content (FromReader, OneTime) wraps a producer that can be drained once;
// opening it again fails with ErrContentConsumed.
type Content interface {
	// Open returns a reader over the content. The caller must close it.
	Open() (io.ReadCloser, error)

	// Size returns the content length when it is known up front.
	Size() (int64, bool)
}

// Empty is replayable content of zero length.
var Empty Content = FromBytes(nil)

type bytesContent struct {
	data []byte
}

// FromBytes returns replayable content over data. The slice is not copied.
func FromBytes(data []byte) Content {
	return bytesContent{data: data}
}

func (c bytesContent) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(c.data)), nil
}

func (c bytesContent) Size() (int64, bool) {
	return int64(len(c.data)), true
}

type oneTime struct {
	mu     sync.Mutex
	opened bool
	open   func() (io.ReadCloser, error)
	size   int64
	known  bool
}

// FromReader wraps an already opened reader as one-time content. Pass a
// negative size when the length is unknown.
func FromReader(r io.ReadCloser, size int64) Content {
	return &oneTime{
		open:  func() (io.ReadCloser, error) { return r, nil },
		size:  size,
		known: size >= 0,
	}
}

// OneTime restricts c to a single Open.
func OneTime(c Content) Content {
	size, known := c.Size()
	return &oneTime{open: c.Open, size: size, known: known}
}

func (c *oneTime) Open() (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened {
		return nil, ErrContentConsumed
	}
	c.opened = true
	return c.open()
}

func (c *oneTime) Size() (int64, bool) {
	return c.size, c.known
}

// ReadAll drains c into memory.
func ReadAll(c Content) ([]byte, error) {
	r, err := c.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return data, nil
}
