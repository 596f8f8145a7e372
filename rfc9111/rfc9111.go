// Package rfc9111 implements the parts of HTTP Caching (RFC 9111) the
// fetcher's private cache relies on. Comments starting with § quote the RFC.
package rfc9111

import (
	"time"

	"github.com/always-cache/webfetch/pkg/message"
)

// Expiration returns the instant result stops being fresh, computed as
// now + max-age - Age. The boolean is false if the result must not be
// stored or would already be stale at now.
func Expiration(result message.Result, now time.Time) (time.Time, bool) {
	if mustNotStore(result) {
		return time.Time{}, false
	}
	lifetime, ok := freshnessLifetime(result.Response)
	if !ok {
		return time.Time{}, false
	}
	age, _ := getAge(result.Response)
	expiresAt := now.Add(lifetime - age)
	if !IsFresh(expiresAt, now) {
		return time.Time{}, false
	}
	return expiresAt, true
}

// TimeToLive returns the remaining freshness of an entry expiring at expiresAt.
func TimeToLive(expiresAt, now time.Time) time.Duration {
	if ttl := expiresAt.Sub(now); ttl > 0 {
		return ttl
	}
	return 0
}
