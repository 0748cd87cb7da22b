// Package retry provides backoff and retry logic for transient failures in
// outbound HTTP calls made by the public-endpoint download strategy.
//
// Only errors that pkg/errors marks retryable are retried in place. Rate
// limits and missing or private content return immediately so the router
// can move on to another account or strategy.
//
// Basic usage:
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//		return client.Fetch(ctx, url)
//	}, nil)
//
//	retrier := retry.NewHTTPRetrier(3, logger.GetLogger())
//	err := retrier.Do(ctx, op)
package retry
