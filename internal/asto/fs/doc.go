// Package fs implements asto.Storage on the local disk. Every key maps to
// <basePath>/<key> and writes go through a temp file + rename so readers
// never see half written artifacts. Concurrent writers of the same key are
// serialized with a ref-counted per-key lock; the file mtime doubles as the
// value's update time, which TTL based cache controls depend on.
package fs
