package rfc9111

import (
	"testing"
	"time"

	"github.com/always-cache/webfetch/pkg/locator"
	"github.com/always-cache/webfetch/pkg/message"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func makeResult(t *testing.T, raw string, status int, headers map[string]string) message.Result {
	t.Helper()
	loc, err := locator.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	res := &message.Response{Proto: "HTTP/1.1", StatusCode: status, Header: message.Header{}}
	for k, v := range headers {
		res.Header.Set(k, v)
	}
	return message.Result{Request: message.NewGetRequest(loc, ""), Response: res}
}

func TestExpiration(t *testing.T) {
	res := makeResult(t, "http://example.test/", 200, map[string]string{"Cache-Control": "public, max-age=60"})
	exp, ok := Expiration(res, now)
	if !ok || !exp.Equal(now.Add(time.Minute)) {
		t.Fatalf("Expiration is %v, %v", exp, ok)
	}
}

func TestExpirationWithAge(t *testing.T) {
	res := makeResult(t, "https://example.test/", 200, map[string]string{"Cache-Control": "max-age=60", "Age": "20"})
	exp, ok := Expiration(res, now)
	if !ok || !exp.Equal(now.Add(40*time.Second)) {
		t.Fatalf("Expiration is %v, %v", exp, ok)
	}

	// an invalid Age is ignored
	res = makeResult(t, "https://example.test/", 200, map[string]string{"Cache-Control": "max-age=60", "Age": "old"})
	if exp, ok := Expiration(res, now); !ok || !exp.Equal(now.Add(time.Minute)) {
		t.Fatalf("Expiration is %v, %v", exp, ok)
	}
}

func TestNotStored(t *testing.T) {
	tests := map[string]message.Result{
		"no cache-control": makeResult(t, "http://example.test/", 200, nil),
		"no-store":         makeResult(t, "http://example.test/", 200, map[string]string{"Cache-Control": "no-store, max-age=60"}),
		"no max-age":       makeResult(t, "http://example.test/", 200, map[string]string{"Cache-Control": "public"}),
		"bad max-age":      makeResult(t, "http://example.test/", 200, map[string]string{"Cache-Control": "max-age=soon"}),
		"zero max-age":     makeResult(t, "http://example.test/", 200, map[string]string{"Cache-Control": "max-age=0"}),
		"older than max":   makeResult(t, "http://example.test/", 200, map[string]string{"Cache-Control": "max-age=10", "Age": "10"}),
		"not 200":          makeResult(t, "http://example.test/", 203, map[string]string{"Cache-Control": "max-age=60"}),
		"redirect":         makeResult(t, "http://example.test/", 301, map[string]string{"Cache-Control": "max-age=60"}),
		"local":            makeResult(t, "file:///tmp", 200, map[string]string{"Cache-Control": "max-age=60"}),
	}
	for name, res := range tests {
		if _, ok := Expiration(res, now); ok {
			t.Fatalf("%s: response would be stored", name)
		}
	}

	post := makeResult(t, "http://example.test/", 200, map[string]string{"Cache-Control": "max-age=60"})
	post.Request.Method = "POST"
	if !mustNotStore(post) {
		t.Fatal("POST response would be stored")
	}
}

func TestIsFresh(t *testing.T) {
	exp := now.Add(time.Minute)
	if !IsFresh(exp, exp.Add(-time.Nanosecond)) {
		t.Fatal("Not fresh just before expiry")
	}
	if IsFresh(exp, exp) {
		t.Fatal("Fresh at expiry")
	}
	if IsFresh(exp, exp.Add(time.Nanosecond)) {
		t.Fatal("Fresh after expiry")
	}
	if IsFresh(time.Time{}, now) {
		t.Fatal("Zero expiry is fresh")
	}
}

func TestTimeToLive(t *testing.T) {
	if ttl := TimeToLive(now.Add(time.Minute), now); ttl != time.Minute {
		t.Fatalf("TTL is %v", ttl)
	}
	if ttl := TimeToLive(now, now.Add(time.Minute)); ttl != 0 {
		t.Fatalf("TTL is %v", ttl)
	}
}
