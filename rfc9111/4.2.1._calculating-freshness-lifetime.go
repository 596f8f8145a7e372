package rfc9111

import (
	"time"

	"github.com/always-cache/webfetch/pkg/message"
)

// §  4.2.1.  Calculating Freshness Lifetime
// §
// §     A cache can calculate the freshness lifetime (denoted as
// §     freshness_lifetime) of a response by evaluating the following rules
// §     and using the first match:
// §
// §     *  If the max-age response directive (Section 5.2.2.1) is present,
// §        use its value, or
// §
// §     *  Otherwise, no explicit expiration time is present in the response.
//
// Expires and heuristic freshness are not used: a response without a valid
// max-age has no freshness lifetime.
func freshnessLifetime(res *message.Response) (time.Duration, bool) {
	return ParseCacheControl(res.Header.Get("Cache-Control")).MaxAge()
}
