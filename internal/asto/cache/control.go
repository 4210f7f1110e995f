package cache

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/artipie/artipie/internal/asto"
)

// Control decides whether the cached value of key may be served.
type Control interface {
	Validate(ctx context.Context, key asto.Key, remote Remote) (bool, error)
}

// ControlFunc adapts a function to Control.
type ControlFunc func(ctx context.Context, key asto.Key, remote Remote) (bool, error)

func (f ControlFunc) Validate(ctx context.Context, key asto.Key, remote Remote) (bool, error) {
	return f(ctx, key, remote)
}

type always struct{}

func (always) Validate(context.Context, asto.Key, Remote) (bool, error) { return true, nil }

type noCache struct{}

func (noCache) Validate(context.Context, asto.Key, Remote) (bool, error) { return false, nil }

var (
	// Always accepts any cached value.
	Always Control = always{}

	// NoCache rejects every cached value. When nothing is cached and the
	// remote fails, caches return the remote error instead of absent content.
	NoCache Control = noCache{}
)

func isNoCache(control Control) bool {
	_, ok := control.(noCache)
	return ok
}

type all []Control

// All accepts a value only if every control does. Controls run in order and
// evaluation stops at the first rejection. All() accepts everything.
func All(controls ...Control) Control {
	return all(controls)
}

func (a all) Validate(ctx context.Context, key asto.Key, remote Remote) (bool, error) {
	for _, control := range a {
		ok, err := control.Validate(ctx, key, remote)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// verifiesIntegrity reports whether control checks the cached bytes
// themselves, directly or inside All.
func verifiesIntegrity(control Control) bool {
	switch c := control.(type) {
	case *digestVerification:
		return true
	case all:
		for _, inner := range c {
			if verifiesIntegrity(inner) {
				return true
			}
		}
	}
	return false
}

type digestVerification struct {
	algorithm Algorithm
	expected  []byte
}

// DigestVerification reads the content from remote and accepts it when its
// digest under algorithm equals expected. Absent content is rejected.
func DigestVerification(algorithm Algorithm, expected []byte) Control {
	return &digestVerification{algorithm: algorithm, expected: append([]byte(nil), expected...)}
}

func (d *digestVerification) Validate(ctx context.Context, key asto.Key, remote Remote) (bool, error) {
	content, err := remote.Get(ctx)
	if err != nil {
		return false, err
	}
	if content == nil {
		return false, nil
	}
	sum, err := DigestOf(content, d.algorithm)
	if err != nil {
		return false, err
	}
	return bytes.Equal(sum, d.expected), nil
}

type timeControl struct {
	storage asto.Storage
	ttl     time.Duration
	now     func() time.Time
}

// TimeControl accepts a cached value while it is younger than ttl, judged by
// Meta.Updated in storage. The remote is not consulted.
func TimeControl(storage asto.Storage, ttl time.Duration) Control {
	return &timeControl{storage: storage, ttl: ttl, now: time.Now}
}

func (t *timeControl) Validate(ctx context.Context, key asto.Key, _ Remote) (bool, error) {
	meta, err := t.storage.Metadata(ctx, key)
	if err != nil {
		if errors.Is(err, asto.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return t.now().Sub(meta.Updated) < t.ttl, nil
}
