// Package responsetransformer rewrites caching headers of fetched
// responses according to configured rules before they reach the cache.
package responsetransformer

import (
	"net/http"
	"strings"

	"github.com/always-cache/webfetch/pkg/locator"
	"github.com/always-cache/webfetch/pkg/message"

	"github.com/rs/zerolog"
)

type Rules []Rule

type Rule struct {
	// Host limits the rule to one host name. Empty matches any host.
	Host     string            `yaml:"host"`
	Prefix   string            `yaml:"prefix"`
	Path     string            `yaml:"path"`
	Default  string            `yaml:"default"`
	Override string            `yaml:"override"`
	Headers  map[string]string `yaml:"headers"`
}

// Apply returns result with the first matching rule applied to a copy of
// its response. Results that are not successful network fetches, or that
// no rule matches, are returned unchanged.
func (r Rules) Apply(result message.Result, log zerolog.Logger) message.Result {
	// only apply rules for successes
	if !result.IsNetwork() || result.Response == nil || result.Response.StatusCode != http.StatusOK {
		return result
	}
	loc := result.Request.Target.(locator.Network)
	rule := r.find(loc, log)
	if rule == nil {
		return result
	}
	res := *result.Response
	res.Header = res.Header.Clone()
	applyRuleToResponse(*rule, &res, log)
	result.Response = &res
	return result
}

func applyRuleToResponse(rule Rule, res *message.Response, log zerolog.Logger) {
	if rule.Override != "" {
		log.Trace().Msg("Overriding Cache-Control header")
		res.Header.Set("Cache-Control", rule.Override)
	} else if _, ok := res.Header.Lookup("Cache-Control"); rule.Default != "" && !ok {
		log.Trace().Msg("Applying default Cache-Control header")
		res.Header.Set("Cache-Control", rule.Default)
	}
	for name, value := range rule.Headers {
		log.Trace().Msgf("Setting header %s", name)
		res.Header.Set(name, value)
	}
}

func (r Rules) find(loc locator.Network, log zerolog.Logger) *Rule {
	log.Trace().Msgf("Finding rule for %s%s", loc.Host, loc.Path)
	for _, rule := range r {
		if rule.Host != "" && !strings.EqualFold(rule.Host, loc.Host) {
			continue
		}
		if rule.Path != "" && rule.Path != loc.Path {
			continue
		}
		if rule.Prefix != "" && !strings.HasPrefix(loc.Path, rule.Prefix) {
			continue
		}
		log.Trace().Msgf("Matched rule %+v", rule)
		return &rule
	}
	return nil
}
