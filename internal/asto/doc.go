// Package asto defines the storage abstraction shared by every repository:
// hierarchical keys, lazily readable content and the Storage contract that
// concrete backends (memory, fs, redis, s3) implement. Proxy repositories
// consume it through the cache package; nothing here knows about HTTP or
// package formats.
package asto
