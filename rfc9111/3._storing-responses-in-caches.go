package rfc9111

import (
	"net/http"

	"github.com/always-cache/webfetch/pkg/message"
)

// § 3.  Storing Responses in Caches
//
// The fetcher is a private cache and applies a narrower policy than the RFC:
// it stores only complete 200 responses to GET that carry an explicit
// max-age. Everything else is fetched again next time.
func mustNotStore(result message.Result) bool {
	if !result.IsNetwork() || result.Response == nil || result.Response.Local {
		return true
	}
	cc, ok := result.Response.Header.Lookup("Cache-Control")
	if !ok {
		return true
	}
	resCacheControl := ParseCacheControl(cc)
	// §    A cache MUST NOT store a response to a request unless:
	// §      *  the request method is understood by the cache;
	if requestMethodIsUnderstood(result.Request.Method) &&
		// §  *  the response status code is final (see Section 15 of [HTTP]);
		//
		// only 200 is understood here
		responseStatusCodeIsUnderstood(result.Response.StatusCode) &&
		// §  *  the no-store cache directive is not present in the response (see
		// §     Section 5.2.2.5);
		!resCacheControl.NoStore() &&
		// §  *  the response contains at least one of the following:
		// §      -  a max-age response directive (see Section 5.2.2.1);
		resCacheControl.HasDirective("max-age") {
		return false
	}
	return true
}

func requestMethodIsUnderstood(method string) bool {
	return method == http.MethodGet
}

func responseStatusCodeIsUnderstood(statusCode int) bool {
	return statusCode == http.StatusOK
}
