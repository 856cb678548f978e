// Package retry re-runs operations that failed in transport.
//
// Only errors tagged errors.ErrorTypeNetwork are retried by default. HTTP
// status failures and file saves are final on the first attempt, so a
// retry never duplicates a side effect the server already accepted.
//
//	page, err := retry.DoWithResult(ctx, func(ctx context.Context) (*Page, error) {
//	    return client.FetchPage(ctx, url)
//	}, &retry.Config{MaxAttempts: 3, Backoff: retry.DefaultExponentialBackoff()})
package retry
