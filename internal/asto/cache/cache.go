package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/artipie/artipie/internal/asto"
)

// Cache loads content for key. A nil Content with a nil error means nothing
// is available locally or upstream.
type Cache interface {
	Load(ctx context.Context, key asto.Key, remote Remote, control Control) (asto.Content, error)
}

type nop struct{}

// NOP stores nothing and returns whatever the remote returns.
var NOP Cache = nop{}

func (nop) Load(ctx context.Context, _ asto.Key, remote Remote, _ Control) (asto.Content, error) {
	return remote.Get(ctx)
}

// Option configures a storage-backed cache.
type Option func(*options)

type options struct {
	observer Observer
}

// WithObserver reports every Load outcome to o.
func WithObserver(o Observer) Option {
	return func(opts *options) {
		if o != nil {
			opts.observer = o
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{observer: Observers()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// FromStorage prefers the local copy: it is served while the control accepts
// it and the remote is only asked when it does not.
type FromStorage struct {
	storage  asto.Storage
	flight   *flight
	observer Observer
}

// NewFromStorage builds a storage-biased cache over storage.
func NewFromStorage(storage asto.Storage, opts ...Option) *FromStorage {
	o := buildOptions(opts)
	return &FromStorage{storage: storage, flight: newFlight(), observer: o.observer}
}

func (c *FromStorage) Load(ctx context.Context, key asto.Key, remote Remote, control Control) (asto.Content, error) {
	start := time.Now()
	content, outcome, err := c.load(ctx, key, remote, control)
	record(ctx, outcome)
	c.observer.Observe(Event{Key: key, Outcome: outcome, Err: err, Duration: time.Since(start)})
	return observed(content, key, c.observer), err
}

func (c *FromStorage) load(ctx context.Context, key asto.Key, remote Remote, control Control) (asto.Content, Outcome, error) {
	exists, err := c.storage.Exists(ctx, key)
	if err != nil {
		return nil, OutcomeError, fmt.Errorf("cache: check %s: %w", key, err)
	}
	corrupt := false
	if exists {
		valid, err := control.Validate(ctx, key, StorageRemote(c.storage, key))
		if err != nil {
			return nil, OutcomeError, fmt.Errorf("cache: validate %s: %w", key, err)
		}
		corrupt = !valid && verifiesIntegrity(control)
		if valid {
			content, err := c.storage.Value(ctx, key)
			if err == nil {
				return content, OutcomeHit, nil
			}
			if !errors.Is(err, asto.ErrNotFound) {
				return nil, OutcomeError, fmt.Errorf("cache: read %s: %w", key, err)
			}
		}
	}

	fetched, err := c.flight.do(ctx, key, func(fctx context.Context) (bool, error) {
		return fetchAndSave(fctx, c.storage, key, remote)
	})
	return resolve(ctx, c.storage, key, control, fetched, corrupt, err)
}

// FromRemote prefers the upstream: every Load asks the remote first and the
// local copy is only used when the remote cannot deliver. The control is
// consulted solely for the NoCache error rule.
type FromRemote struct {
	storage  asto.Storage
	flight   *flight
	observer Observer
}

// NewFromRemote builds a remote-biased cache over storage.
func NewFromRemote(storage asto.Storage, opts ...Option) *FromRemote {
	o := buildOptions(opts)
	return &FromRemote{storage: storage, flight: newFlight(), observer: o.observer}
}

func (c *FromRemote) Load(ctx context.Context, key asto.Key, remote Remote, control Control) (asto.Content, error) {
	start := time.Now()
	fetched, err := c.flight.do(ctx, key, func(fctx context.Context) (bool, error) {
		return fetchAndSave(fctx, c.storage, key, remote)
	})
	content, outcome, err := resolve(ctx, c.storage, key, control, fetched, false, err)
	record(ctx, outcome)
	c.observer.Observe(Event{Key: key, Outcome: outcome, Err: err, Duration: time.Since(start)})
	return observed(content, key, c.observer), err
}

// resolve turns the result of a shared fetch into the answer for one caller.
// corrupt means the local copy failed an integrity check; such a copy is never
// served as a fallback.
func resolve(
	ctx context.Context,
	storage asto.Storage,
	key asto.Key,
	control Control,
	fetched, corrupt bool,
	err error,
) (asto.Content, Outcome, error) {
	var remoteErr *RemoteError
	if err != nil && (!errors.As(err, &remoteErr) || !remoteErr.Recoverable()) {
		return nil, OutcomeError, err
	}
	if fetched {
		content, err := storage.Value(ctx, key)
		if err != nil {
			return nil, OutcomeError, fmt.Errorf("cache: read %s: %w", key, err)
		}
		return content, OutcomeMiss, nil
	}
	if corrupt {
		if remoteErr != nil {
			return nil, OutcomeCorrupt, remoteErr
		}
		return nil, OutcomeCorrupt, nil
	}

	content, err := storage.Value(ctx, key)
	if err == nil {
		return content, OutcomeStale, nil
	}
	if !errors.Is(err, asto.ErrNotFound) {
		return nil, OutcomeError, fmt.Errorf("cache: read %s: %w", key, err)
	}
	if remoteErr != nil && isNoCache(control) {
		return nil, OutcomeError, remoteErr
	}
	return nil, OutcomeAbsent, nil
}

// fetchAndSave asks remote for content and stores it under key. Failures of
// the remote, including read errors while the content is being saved, come
// back as *RemoteError; storage failures do not.
func fetchAndSave(ctx context.Context, storage asto.Storage, key asto.Key, remote Remote) (bool, error) {
	content, err := remote.Get(ctx)
	if err != nil {
		return false, &RemoteError{Key: key, Err: err}
	}
	if content == nil {
		return false, nil
	}

	tracked := &trackedContent{origin: content}
	if err := storage.Save(ctx, key, tracked); err != nil {
		if readErr := tracked.readErr(); readErr != nil {
			return false, &RemoteError{Key: key, Err: readErr, Stream: true}
		}
		return false, fmt.Errorf("cache: save %s: %w", key, err)
	}
	return true, nil
}

// observed reports the first read failure of served content as an
// OutcomeError event, since such failures happen after Load has returned.
func observed(content asto.Content, key asto.Key, observer Observer) asto.Content {
	if content == nil {
		return nil
	}
	return &trackedContent{origin: content, onErr: func(err error) {
		observer.Observe(Event{Key: key, Outcome: OutcomeError, Err: err})
	}}
}

// trackedContent remembers the first read error of the wrapped content.
type trackedContent struct {
	origin asto.Content
	onErr  func(error)

	mu  sync.Mutex
	err error
}

func (t *trackedContent) Open() (io.ReadCloser, error) {
	r, err := t.origin.Open()
	if err != nil {
		t.record(err)
		return nil, err
	}
	return &trackedReader{ReadCloser: r, owner: t}, nil
}

func (t *trackedContent) Size() (int64, bool) {
	return t.origin.Size()
}

func (t *trackedContent) record(err error) {
	t.mu.Lock()
	first := t.err == nil
	if first {
		t.err = err
	}
	t.mu.Unlock()
	if first && t.onErr != nil {
		t.onErr(err)
	}
}

func (t *trackedContent) readErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

type trackedReader struct {
	io.ReadCloser
	owner *trackedContent
}

func (r *trackedReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		r.owner.record(err)
	}
	return n, err
}
