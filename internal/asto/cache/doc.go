// Package cache resolves content for proxy repositories from a local
// asto.Storage, an upstream Remote, or both.
//
// A Cache receives the key, a Remote bound to that key and a Control policy.
// FromStorage serves the local copy while the policy accepts it and fetches
// otherwise; FromRemote always asks the upstream first. Both persist fetched
// content before returning it, coalesce concurrent fetches of the same key
// and fall back to the local copy when the upstream cannot be reached. Stale
// fallbacks are reported to the configured Observer as OutcomeStale so they
// stay visible in logs and metrics. Errors a Remote returns for any other
// reason are programming errors and are returned to the caller as is; a
// local copy rejected by an integrity check is never used as a fallback.
package cache
