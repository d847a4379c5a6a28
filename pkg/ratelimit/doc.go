// Package ratelimit paces requests to booru sites.
//
// Two limiters implement the Limiter interface:
//
// FixedDelay:
//   - Sleeps 1/rps before every page request
//   - No bursts; rps <= 0 disables the delay
//   - Used by the paginator for listing requests
//
// Throttle:
//   - Token bucket over golang.org/x/time/rate with a burst of one
//   - Optional cap on image downloads per second
//
// Usage:
//
//	limiter := ratelimit.NewFixedDelay(1.0)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//	// issue the page request
package ratelimit
