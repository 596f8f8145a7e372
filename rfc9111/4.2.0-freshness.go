package rfc9111

import "time"

// §  4.2.  Freshness
// §
// §     A "fresh" response is one whose age has not yet exceeded its
// §     freshness lifetime.
// §
// §     A response's age is the time that has passed since it was generated
// §     by, or successfully validated with, the origin server.
//
// An entry expiring exactly at now is already stale.
func IsFresh(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && now.Before(expiresAt)
}
