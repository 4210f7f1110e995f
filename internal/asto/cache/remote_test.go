package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artipie/artipie/internal/asto"
	"github.com/artipie/artipie/internal/asto/memory"
)

func TestWithErrorHandlingSwallowsTransportErrors(t *testing.T) {
	logger, hook := test.NewNullLogger()

	cases := map[string]error{
		"refused":     errConnRefused,
		"deadline":    context.DeadlineExceeded,
		"short body":  io.ErrUnexpectedEOF,
		"unavailable": fmt.Errorf("upstream 503: %w", ErrUnavailable),
		"url":         &url.Error{Op: "Get", URL: "http://upstream", Err: errors.New("tls handshake")},
	}
	for name, cause := range cases {
		t.Run(name, func(t *testing.T) {
			hook.Reset()
			content, err := WithErrorHandling(Failed(cause), logger).Get(context.Background())
			require.NoError(t, err)
			assert.Nil(t, content)
			require.Len(t, hook.Entries, 1)
			assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
			assert.Equal(t, "remote_unavailable", hook.LastEntry().Message)
		})
	}
}

func TestWithErrorHandlingPropagatesOtherErrors(t *testing.T) {
	errBug := errors.New("nil pointer in remote")

	_, err := WithErrorHandling(Failed(errBug), nil).Get(context.Background())
	assert.ErrorIs(t, err, errBug)

	_, err = WithErrorHandling(Failed(context.Canceled), nil).Get(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithErrorHandlingPassesContent(t *testing.T) {
	content, err := WithErrorHandling(returning("ok"), nil).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", readString(t, content))
}

func TestStorageRemote(t *testing.T) {
	storage := memory.New()
	key := asto.NewKey("local")
	save(t, storage, key, "copy")

	content, err := StorageRemote(storage, key).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "copy", readString(t, content))

	content, err = StorageRemote(storage, asto.NewKey("other")).Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, content)
}

func TestCacheWithErrorHandlingFallsBack(t *testing.T) {
	cache := NewFromStorage(memory.New())

	content, err := cache.Load(context.Background(), asto.NewKey("wrapped"),
		WithErrorHandling(Failed(errConnRefused), nil), NoCache)
	require.NoError(t, err)
	assert.Nil(t, content)
}
