// Package router runs one Instagram post through the download state
// machine:
//
//	IDLE -> CHECK_EXISTING -> PROBE -> TRY_AUTHENTICATED -> TRY_UNAUTHENTICATED -> SUCCESS | FAILED
//
// Files already on disk short-circuit the run. The probe decides the
// content kind once, credentialed strategies are tried with every
// available account from the pool, and the public proxy is the last
// resort for content that does not need a login. Whatever succeeds is
// normalized into a models.Outcome; whatever fails is reported as the
// most specific typed error seen along the way.
//
// Concurrent requests for the same identifier share a single run.
//
// Basic usage:
//
//	r := router.New(store, prober, pool,
//		router.WithProxy(proxy),
//		router.WithAuthenticated(ytdlp, gallerydl),
//		router.WithMetadataStore(sidecars),
//	)
//	outcome, err := r.Download(ctx, "C9xYz123AbC")
package router
