package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/always-cache/webfetch/pkg/locator"
	"github.com/always-cache/webfetch/pkg/message"
	"github.com/always-cache/webfetch/rfc9211"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCache(capacity int) (*Cache, *clock) {
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(capacity, WithClock(clk.Now)), clk
}

func cacheable(t *testing.T, raw string, headers ...string) message.Result {
	t.Helper()
	loc, err := locator.Parse(raw)
	require.NoError(t, err)
	res := &message.Response{Proto: "HTTP/1.1", StatusCode: 200, Reason: "OK", Header: message.Header{}, Body: []byte(raw)}
	for i := 0; i+1 < len(headers); i += 2 {
		res.Header.Set(headers[i], headers[i+1])
	}
	return message.Result{Request: message.NewGetRequest(loc, ""), Response: res}
}

func url(i int) string {
	return fmt.Sprintf("http://example.test/%d", i)
}

func TestLookupMissAndHit(t *testing.T) {
	c, _ := newTestCache(0)
	_, ok := c.Lookup(url(1))
	assert.False(t, ok)

	_, stored := c.Insert(url(1), cacheable(t, url(1), "Cache-Control", "max-age=60"))
	require.True(t, stored)
	res, ok := c.Lookup(url(1))
	require.True(t, ok)
	assert.Equal(t, url(1), string(res.Response.Body))
	assert.Equal(t, Stats{Accesses: 2, Hits: 1, Len: 1, Capacity: DefaultCapacity}, c.Stats())
}

func TestFreshnessBoundary(t *testing.T) {
	c, clk := newTestCache(0)
	expires, ok := c.Insert(url(1), cacheable(t, url(1), "Cache-Control", "max-age=60", "Age", "10"))
	require.True(t, ok)
	assert.Equal(t, clk.now.Add(50*time.Second), expires)

	clk.Advance(49 * time.Second)
	_, status := c.LookupStatus(url(1))
	assert.Equal(t, rfc9211.StatusHit, status.Status)
	assert.Equal(t, 1, status.TimeToLive)

	clk.Advance(time.Second)
	_, status = c.LookupStatus(url(1))
	assert.Equal(t, rfc9211.StatusFwd, status.Status)
	assert.Equal(t, rfc9211.FwdReasonStale, status.FwdReason)
	// stale entries stay until replaced or evicted
	assert.Equal(t, 1, c.Len())
}

func TestNotStored(t *testing.T) {
	c, _ := newTestCache(0)
	for name, res := range map[string]message.Result{
		"no cache-control": cacheable(t, url(1)),
		"no-store":         cacheable(t, url(1), "Cache-Control", "no-store, max-age=60"),
		"no max-age":       cacheable(t, url(1), "Cache-Control", "public"),
		"zero max-age":     cacheable(t, url(1), "Cache-Control", "max-age=0"),
		"aged out":         cacheable(t, url(1), "Cache-Control", "max-age=60", "Age", "60"),
	} {
		_, ok := c.Insert(url(1), res)
		assert.False(t, ok, name)
	}
	assert.Equal(t, 0, c.Len())
	_, ok := c.Lookup(url(1))
	assert.False(t, ok)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(3)
	for i := 1; i <= 3; i++ {
		c.Insert(url(i), cacheable(t, url(i), "Cache-Control", "max-age=60"))
	}
	assert.Equal(t, []string{url(3), url(2), url(1)}, c.Keys())

	_, ok := c.Lookup(url(1))
	require.True(t, ok)
	assert.Equal(t, []string{url(1), url(3), url(2)}, c.Keys())

	c.Insert(url(4), cacheable(t, url(4), "Cache-Control", "max-age=60"))
	assert.Equal(t, []string{url(4), url(1), url(3)}, c.Keys())
	_, ok = c.Lookup(url(2))
	assert.False(t, ok)
}

func TestCapacityTen(t *testing.T) {
	c, _ := newTestCache(0)
	for i := 0; i < 25; i++ {
		c.Insert(url(i), cacheable(t, url(i), "Cache-Control", "max-age=60"))
		assert.LessOrEqual(t, c.Len(), DefaultCapacity)
	}
	keys := c.Keys()
	require.Len(t, keys, 10)
	assert.Equal(t, url(24), keys[0])
	assert.Equal(t, url(15), keys[9])
}

func TestReplaceExisting(t *testing.T) {
	c, clk := newTestCache(2)
	c.Insert(url(1), cacheable(t, url(1), "Cache-Control", "max-age=10"))
	c.Insert(url(2), cacheable(t, url(2), "Cache-Control", "max-age=10"))

	clk.Advance(20 * time.Second)
	_, ok := c.Lookup(url(1))
	require.False(t, ok)

	replacement := cacheable(t, url(1), "Cache-Control", "max-age=100")
	replacement.Response.Body = []byte("new")
	c.Insert(url(1), replacement)
	assert.Equal(t, []string{url(1), url(2)}, c.Keys())
	assert.Equal(t, 2, c.Len())

	res, ok := c.Lookup(url(1))
	require.True(t, ok)
	assert.Equal(t, "new", string(res.Response.Body))
}

func TestStaleLookupKeepsOrder(t *testing.T) {
	c, clk := newTestCache(0)
	c.Insert(url(1), cacheable(t, url(1), "Cache-Control", "max-age=5"))
	c.Insert(url(2), cacheable(t, url(2), "Cache-Control", "max-age=500"))
	clk.Advance(10 * time.Second)

	_, ok := c.Lookup(url(1))
	assert.False(t, ok)
	assert.Equal(t, []string{url(2), url(1)}, c.Keys())
}

func TestEntries(t *testing.T) {
	c, clk := newTestCache(0)
	c.Insert(url(1), cacheable(t, url(1), "Cache-Control", "max-age=5"))
	c.Insert(url(2), cacheable(t, url(2), "Cache-Control", "max-age=500"))
	clk.Advance(10 * time.Second)

	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, url(2), entries[0].Key)
	assert.True(t, entries[0].Fresh)
	assert.Equal(t, url(1), entries[1].Key)
	assert.False(t, entries[1].Fresh)
	assert.Equal(t, 200, entries[1].StatusCode)
	assert.Equal(t, len(url(1)), entries[1].Size)
	assert.Equal(t, 0, c.Stats().Accesses)
}

func TestArenaReusesSlots(t *testing.T) {
	c, _ := newTestCache(2)
	for i := 0; i < 50; i++ {
		c.Insert(url(i), cacheable(t, url(i), "Cache-Control", "max-age=60"))
	}
	assert.LessOrEqual(t, len(c.items.arena), 2)
	assert.Equal(t, []string{url(49), url(48)}, c.Keys())
}

func TestCachedResultIsIsolated(t *testing.T) {
	c, _ := newTestCache(0)
	inserted := cacheable(t, url(1), "Cache-Control", "max-age=60", "X-Test", "original")
	_, ok := c.Insert(url(1), inserted)
	require.True(t, ok)
	inserted.Response.Header.Set("X-Test", "changed after insert")

	res, ok := c.Lookup(url(1))
	require.True(t, ok)
	assert.Equal(t, "original", res.Response.Header.Get("X-Test"))
	res.Response.Header.Set("X-Test", "changed after lookup")
	res.Response.Body[0] = 'X'
	res.Request.Header.Set("Host", "elsewhere")

	again, ok := c.Lookup(url(1))
	require.True(t, ok)
	assert.Equal(t, "original", again.Response.Header.Get("X-Test"))
	assert.Equal(t, url(1), string(again.Response.Body))
	assert.Equal(t, "example.test", again.Request.Header.Get("Host"))
}
