package cache

import (
	"context"
	"crypto/md5"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artipie/artipie/internal/asto"
	"github.com/artipie/artipie/internal/asto/memory"
)

func TestAllShortCircuits(t *testing.T) {
	ctx := context.Background()
	key := asto.NewKey("any")

	ok, err := All(Always, NoCache).Validate(ctx, key, Empty)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = All(Always, Always).Validate(ctx, key, Empty)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = All().Validate(ctx, key, Empty)
	require.NoError(t, err)
	assert.True(t, ok)

	called := false
	probe := ControlFunc(func(context.Context, asto.Key, Remote) (bool, error) {
		called = true
		return true, nil
	})
	ok, err = All(NoCache, probe).Validate(ctx, key, Empty)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, called)
}

func TestAllStopsOnError(t *testing.T) {
	errBoom := errors.New("boom")
	failing := ControlFunc(func(context.Context, asto.Key, Remote) (bool, error) {
		return false, errBoom
	})
	ok, err := All(Always, failing, Always).Validate(context.Background(), asto.NewKey("k"), Empty)
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, ok)
}

func TestDigestVerification(t *testing.T) {
	ctx := context.Background()
	key := asto.NewKey("artifact.jar")
	data := []byte("artifact bytes")
	sum := md5.Sum(data)

	ok, err := DigestVerification(MD5, sum[:]).Validate(ctx, key, returning(string(data)))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = DigestVerification(MD5, []byte("wrong")).Validate(ctx, key, returning(string(data)))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = DigestVerification(MD5, sum[:]).Validate(ctx, key, Empty)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDigestVerificationChecksCachedBytes(t *testing.T) {
	storage := memory.New()
	key := asto.NewKey("lib.jar")
	save(t, storage, key, "corrupted")

	good := []byte("original")
	control, err := Verification(SHA256, mustHex(t, good, SHA256))
	require.NoError(t, err)

	content, err := NewFromStorage(storage).Load(context.Background(), key, returning("original"), control)
	require.NoError(t, err)
	assert.Equal(t, "original", readString(t, content))
}

func TestTimeControl(t *testing.T) {
	storage := memory.New()
	key := asto.NewKey("maven-metadata.xml")
	saved := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	storage.SetClock(func() time.Time { return saved })
	save(t, storage, key, "<metadata/>")

	control := TimeControl(storage, time.Hour).(*timeControl)

	control.now = func() time.Time { return saved.Add(30 * time.Minute) }
	ok, err := control.Validate(context.Background(), key, Empty)
	require.NoError(t, err)
	assert.True(t, ok)

	control.now = func() time.Time { return saved.Add(2 * time.Hour) }
	ok, err = control.Validate(context.Background(), key, Empty)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = control.Validate(context.Background(), asto.NewKey("missing"), Empty)
	require.NoError(t, err)
	assert.False(t, ok)
}

func mustHex(t *testing.T, data []byte, alg Algorithm) string {
	t.Helper()
	sum, err := DigestHex(asto.FromBytes(data), alg)
	require.NoError(t, err)
	return sum
}
