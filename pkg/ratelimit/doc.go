// Package ratelimit provides the client-side request budget for the X API.
//
// TokenBucket hands out a fixed number of requests per period and reports
// when it refills, so callers can turn an exhausted budget into a rate
// limit signal with a reset time instead of blocking. Observe lets the
// client tighten the bucket from x-rate-limit-remaining/-reset headers.
package ratelimit
