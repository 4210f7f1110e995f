// Package server hosts the Fiber HTTP service, the request middleware chain,
// and the repository registry that maps a Host header to a RepoRoute. Each
// route owns a cache over its own slice of the shared storage, so proxy
// handlers only deal with paths and upstream calls.
package server
