// Package webfetch fetches resources named by locator strings for a
// rendering pipeline. Network resources are fetched over one-shot HTTP/1.1
// connections, redirects are followed and fresh responses are cached.
package webfetch

import (
	"context"
	"sync"
	"time"

	"github.com/always-cache/webfetch/cache"
	"github.com/always-cache/webfetch/history"
	"github.com/always-cache/webfetch/pkg/locator"
	"github.com/always-cache/webfetch/pkg/message"
	"github.com/always-cache/webfetch/pkg/redirect"
	decoder "github.com/always-cache/webfetch/pkg/response-decoder"
	serializer "github.com/always-cache/webfetch/pkg/response-serializer"
	responsetransformer "github.com/always-cache/webfetch/pkg/response-transformer"
	"github.com/always-cache/webfetch/pkg/transport"
	"github.com/always-cache/webfetch/rfc9211"

	"github.com/rs/zerolog"
)

type Config struct {
	// Cache for fresh responses. A cache with the default capacity is
	// created if nil.
	Cache *cache.Cache
	// User-Agent header value. message.DefaultUserAgent if empty.
	UserAgent string
	// Maximum number of redirects followed per fetch. redirect.DefaultMaxHops if zero.
	MaxRedirects int
	Transport    transport.Config
	// Rules applied to responses before they are cached.
	Rules responsetransformer.Rules
	// Optional fetch log.
	History *history.Log
	// Logger to use. Nothing is logged if nil.
	Logger *zerolog.Logger
}

type Fetcher struct {
	// guards cache
	mu        sync.Mutex
	cache     *cache.Cache
	dialer    *transport.Dialer
	resolver  redirect.Resolver
	rules     responsetransformer.Rules
	history   *history.Log
	userAgent string
	log       zerolog.Logger
}

func New(config Config) *Fetcher {
	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}
	if config.Cache == nil {
		config.Cache = cache.New(cache.DefaultCapacity)
	}
	if config.UserAgent == "" {
		config.UserAgent = message.DefaultUserAgent
	}
	if config.Transport.Logger == nil {
		config.Transport.Logger = &logger
	}

	f := &Fetcher{
		cache:     config.Cache,
		dialer:    transport.New(config.Transport),
		rules:     config.Rules,
		history:   config.History,
		userAgent: config.UserAgent,
		log:       logger,
	}
	f.resolver = redirect.Resolver{
		Fetch:   f.httpGet,
		MaxHops: config.MaxRedirects,
		Logger:  &f.log,
	}
	return f
}

// Fetch returns the response for the resource named by raw.
func (f *Fetcher) Fetch(ctx context.Context, raw string) (*message.Response, error) {
	result, _, err := f.FetchResult(ctx, raw)
	if err != nil {
		return nil, err
	}
	return result.Response, nil
}

// FetchBody returns the body of the resource named by raw as text.
func (f *Fetcher) FetchBody(ctx context.Context, raw string) (string, error) {
	res, err := f.Fetch(ctx, raw)
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}

// FetchResult fetches raw and reports how the cache took part.
//
// The cache is consulted with raw as given, before it is parsed. Network
// results are stored under raw even when they were reached through
// redirects, so later fetches of raw skip the redirect chain too.
// Filesystem resources are read on every fetch and never cached.
func (f *Fetcher) FetchResult(ctx context.Context, raw string) (message.Result, rfc9211.CacheStatus, error) {
	log := f.log.With().Str("url", raw).Logger()

	f.mu.Lock()
	cached, status := f.cache.LookupStatus(raw)
	f.mu.Unlock()
	if status.Status == rfc9211.StatusHit {
		log.Debug().Str("cache-status", status.String()).Msg("Serving from cache")
		f.record(raw, cached, status)
		return cached, status, nil
	}

	loc, err := locator.Parse(raw)
	if err != nil {
		return message.Result{}, status, err
	}

	var result message.Result
	switch loc := loc.(type) {
	case locator.Local:
		result, err = f.readLocal(loc)
		if err != nil {
			return message.Result{}, status, err
		}
		status.Forward(rfc9211.FwdReasonBypass)

	case locator.Network:
		result, err = f.httpGet(ctx, loc)
		if err != nil {
			log.Error().Err(err).Msg("Fetch failed")
			return message.Result{}, status, err
		}
		result, err = f.resolver.Resolve(ctx, result)
		if err != nil {
			log.Error().Err(err).Msg("Following redirects failed")
			return message.Result{}, status, err
		}
		result = f.rules.Apply(result, log)

		f.mu.Lock()
		expiresAt, stored := f.cache.Insert(raw, result)
		if stored {
			status.Stored = true
			status.TimeToLive = int(f.cache.TimeToLive(expiresAt).Round(time.Second).Seconds())
		}
		stats := f.cache.Stats()
		f.mu.Unlock()
		log.Trace().
			Int("accesses", stats.Accesses).
			Int("hits", stats.Hits).
			Int("entries", stats.Len).
			Msg("Cache stats")
	}

	log.Debug().Str("cache-status", status.String()).Msg("Fetched")
	f.record(raw, result, status)
	return result, status, nil
}

// httpGet performs a single GET on a fresh connection.
func (f *Fetcher) httpGet(ctx context.Context, loc locator.Network) (message.Result, error) {
	req := message.NewGetRequest(loc, f.userAgent)
	f.log.Debug().Str("target", loc.String()).Msg("Sending request")

	conn, err := f.dialer.Open(ctx, loc)
	if err != nil {
		return message.Result{}, err
	}
	defer conn.Close()

	if err := conn.WriteAll(req.Bytes()); err != nil {
		return message.Result{}, err
	}
	res, err := decoder.Decode(conn.Reader())
	if err != nil {
		return message.Result{}, err
	}
	f.log.Debug().Str("target", loc.String()).Str("status", res.StatusLine()).Msg("Received response")
	return message.Result{Request: req, Response: res}, nil
}

func (f *Fetcher) readLocal(loc locator.Local) (message.Result, error) {
	body, err := transport.ReadLocal(loc)
	if err != nil {
		return message.Result{}, err
	}
	return message.Result{
		Request:  message.NewGetRequest(loc, f.userAgent),
		Response: message.NewLocalResponse(body),
	}, nil
}

func (f *Fetcher) record(raw string, result message.Result, status rfc9211.CacheStatus) {
	if f.history == nil {
		return
	}
	rec := history.Record{
		URL:         raw,
		Scheme:      string(result.Request.Scheme()),
		StatusCode:  result.Response.StatusCode,
		CacheStatus: status.String(),
		Response:    serializer.ResponseToBytes(result.Response),
	}
	if result.IsNetwork() {
		rec.Request = result.Request.Bytes()
	}
	if _, err := f.history.Record(rec); err != nil {
		f.log.Error().Err(err).Str("url", raw).Msg("Could not record fetch")
	}
}

// Stats returns the cache counters.
func (f *Fetcher) Stats() cache.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache.Stats()
}

// CacheEntries returns a snapshot of the cache, most recently used first.
func (f *Fetcher) CacheEntries() []cache.EntryInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache.Entries()
}

// History returns the fetch log, which may be nil.
func (f *Fetcher) History() *history.Log {
	return f.history
}
