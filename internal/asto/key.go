package asto

import "strings"

// KeyDelimiter separates key segments.
const KeyDelimiter = "/"

// Key identifies a value in Storage. Keys are immutable and compare by their
// segments, so they can be used directly as map keys.
type Key struct {
	path string
}

// RootKey is the empty key. Values cannot be stored under it.
var RootKey = Key{}

// NewKey builds a key from the given parts. Every part is split on "/" and
// empty segments are dropped, so NewKey("a/b", "c") == NewKey("a", "b", "c").
func NewKey(parts ...string) Key {
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		for _, seg := range strings.Split(part, KeyDelimiter) {
			if seg == "" {
				continue
			}
			segments = append(segments, seg)
		}
	}
	return Key{path: strings.Join(segments, KeyDelimiter)}
}

// String returns the segments joined by "/".
func (k Key) String() string {
	return k.path
}

// Parts returns a copy of the key segments.
func (k Key) Parts() []string {
	if k.path == "" {
		return nil
	}
	return strings.Split(k.path, KeyDelimiter)
}

// IsRoot reports whether k is the root key.
func (k Key) IsRoot() bool {
	return k.path == ""
}

// Parent returns the key without its last segment. The root key has no parent.
func (k Key) Parent() (Key, bool) {
	if k.path == "" {
		return RootKey, false
	}
	idx := strings.LastIndex(k.path, KeyDelimiter)
	if idx < 0 {
		return RootKey, true
	}
	return Key{path: k.path[:idx]}, true
}

// Join appends parts to the key.
func (k Key) Join(parts ...string) Key {
	return NewKey(append([]string{k.path}, parts...)...)
}

// HasPrefix reports whether prefix is an ancestor of (or equal to) k, segment-wise.
func (k Key) HasPrefix(prefix Key) bool {
	if prefix.path == "" {
		return true
	}
	if k.path == prefix.path {
		return true
	}
	return strings.HasPrefix(k.path, prefix.path+KeyDelimiter)
}

// TrimPrefix removes prefix from k. It returns k unchanged when prefix is not
// an ancestor.
func (k Key) TrimPrefix(prefix Key) Key {
	if prefix.path == "" || !k.HasPrefix(prefix) {
		return k
	}
	if k.path == prefix.path {
		return RootKey
	}
	return Key{path: k.path[len(prefix.path)+1:]}
}
