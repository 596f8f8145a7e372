package webfetch

import (
	"github.com/always-cache/webfetch/pkg/locator"
	decoder "github.com/always-cache/webfetch/pkg/response-decoder"
	"github.com/always-cache/webfetch/pkg/transport"
)

// Errors returned by Fetch, matched with errors.Is.
var (
	ErrInvalidLocator = locator.ErrInvalidLocator
	ErrConnection     = transport.ErrConnection
	ErrTLS            = transport.ErrTLS
	ErrLocalAccess    = transport.ErrLocalAccess
	ErrProtocol       = decoder.ErrProtocol
)
