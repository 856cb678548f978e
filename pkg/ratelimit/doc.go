// Package ratelimit paces requests to the childcare service API.
//
// TokenBucket starts full and credits one token per interval up to its
// capacity. Wait blocks until a token is available or the context ends:
//
//	limiter := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//
// Asset downloads are paced by the exporter's fixed per-asset delay and do not
// take tokens.
package ratelimit
