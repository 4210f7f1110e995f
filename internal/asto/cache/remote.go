package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/artipie/artipie/internal/asto"
)

// ErrUnavailable marks an upstream that could not be reached. Remotes return
// it (possibly wrapped) for failures that are not plain transport errors,
// e.g. 5xx responses.
var ErrUnavailable = errors.New("cache: remote unavailable")

// Remote fetches fresh content for a key bound at construction time.
// A nil Content with a nil error means the upstream has nothing to offer.
type Remote interface {
	Get(ctx context.Context) (asto.Content, error)
}

// RemoteFunc adapts a function to Remote.
type RemoteFunc func(ctx context.Context) (asto.Content, error)

func (f RemoteFunc) Get(ctx context.Context) (asto.Content, error) {
	return f(ctx)
}

// Empty never has content.
var Empty Remote = RemoteFunc(func(context.Context) (asto.Content, error) {
	return nil, nil
})

// Failed returns a Remote that always fails with err.
func Failed(err error) Remote {
	return RemoteFunc(func(context.Context) (asto.Content, error) {
		return nil, err
	})
}

// RemoteError wraps a failure reported by a Remote while loading key.
// Stream marks failures that happened while draining content the remote had
// already handed over.
type RemoteError struct {
	Key    asto.Key
	Err    error
	Stream bool
}

// Recoverable reports whether a cached copy may stand in for the failed
// fetch. Only transport failures and broken streams qualify; anything else
// is a bug in the remote and must reach the caller.
func (e *RemoteError) Recoverable() bool {
	return e.Stream || IsTransportError(e.Err)
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("cache: remote %s: %v", e.Key, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

type errorHandling struct {
	origin Remote
	logger logrus.FieldLogger
}

// WithErrorHandling turns transport failures of origin into absent content.
// Other errors, including context.Canceled, are returned unchanged.
func WithErrorHandling(origin Remote, logger logrus.FieldLogger) Remote {
	return &errorHandling{origin: origin, logger: logger}
}

func (r *errorHandling) Get(ctx context.Context) (asto.Content, error) {
	content, err := r.origin.Get(ctx)
	if err == nil {
		return content, nil
	}
	if !IsTransportError(err) {
		return nil, err
	}
	if r.logger != nil {
		r.logger.WithError(err).WithField("action", "remote").Warn("remote_unavailable")
	}
	return nil, nil
}

// IsTransportError reports whether err means the upstream could not be
// reached or stopped answering mid-way.
func IsTransportError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch {
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// StorageRemote serves the copy of key held by storage. Controls receive it
// when validating a cached value, so checks such as DigestVerification look
// at the bytes that would actually be served.
func StorageRemote(storage asto.Storage, key asto.Key) Remote {
	return RemoteFunc(func(ctx context.Context) (asto.Content, error) {
		content, err := storage.Value(ctx, key)
		if errors.Is(err, asto.ErrNotFound) {
			return nil, nil
		}
		return content, err
	})
}
