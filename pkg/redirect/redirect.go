// Package redirect follows HTTP redirects with a bounded number of hops.
package redirect

import (
	"context"

	"github.com/always-cache/webfetch/pkg/locator"
	"github.com/always-cache/webfetch/pkg/message"

	"github.com/rs/zerolog"
)

const DefaultMaxHops = 10

// FetchFunc performs a single GET for loc on a fresh connection.
type FetchFunc func(ctx context.Context, loc locator.Network) (message.Result, error)

type Resolver struct {
	Fetch FetchFunc
	// Maximum number of redirects followed. DefaultMaxHops if zero.
	MaxHops int
	Logger  *zerolog.Logger
}

// Resolve follows redirects starting from initial until a non-redirect
// response is reached or the hop budget is spent. Running out of hops is
// not an error: the last result reached is returned as is.
// Filesystem results are returned unchanged.
func (r Resolver) Resolve(ctx context.Context, initial message.Result) (message.Result, error) {
	log := zerolog.Nop()
	if r.Logger != nil {
		log = *r.Logger
	}
	maxHops := r.MaxHops
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}

	current := initial
	for hops := 0; ; hops++ {
		from, ok := current.Request.Target.(locator.Network)
		if !ok {
			return current, nil
		}
		location, ok := current.Response.Header.Lookup("Location")
		if !current.Response.IsRedirect() || !ok {
			return current, nil
		}
		if hops >= maxHops {
			log.Debug().Int("hops", hops).Str("location", location).Msg("Redirect limit reached, returning last response")
			return current, nil
		}

		next, err := from.Resolve(location)
		if err != nil {
			return message.Result{}, err
		}
		nextNet, ok := next.(locator.Network)
		if !ok {
			log.Debug().Str("location", location).Msg("Not following redirect to local file")
			return current, nil
		}

		log.Debug().
			Int("status", current.Response.StatusCode).
			Str("from", from.String()).
			Str("to", nextNet.String()).
			Msg("Following redirect")
		if current, err = r.Fetch(ctx, nextNet); err != nil {
			return message.Result{}, err
		}
	}
}
