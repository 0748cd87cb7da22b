// Package instagram is a small client for Instagram's public endpoints:
// oEmbed, the post embed page and the legacy ?__a=1 JSON view. It backs
// the credential-free proxy strategy and downloads CDN files with a size
// ceiling.
//
// Every HTTP status is mapped onto pkg/errors. A 404 is ContentNotFound,
// 429 is RateLimitExceeded and 5xx responses are retried with backoff.
//
//	client := instagram.NewClient(30*time.Second, config.DefaultUserAgent, log)
//	urls, err := client.EmbedMediaURLs(ctx, "DPTJ6XYEiQ5")
package instagram
