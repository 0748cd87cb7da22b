// Package ratelimit provides the limiters used by mediagrab.
//
// TokenBucket paces outbound requests to Instagram's public endpoints.
// KeyedLimiter keeps a SlidingWindow per client and backs the per-IP
// requests-per-minute limit of the HTTP API.
//
// All limiters are safe for concurrent use. Wait honours context
// cancellation.
package ratelimit
