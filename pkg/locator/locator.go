// Package locator turns user supplied address strings into structured
// references to network or filesystem resources.
package locator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidLocator is returned when a locator has an unsupported scheme,
// a missing host, a port that is not a number, or whitespace or control
// bytes in its host or path.
var ErrInvalidLocator = errors.New("invalid locator")

const schemeSeparator = "://"

type Scheme string

const (
	HTTP  Scheme = "http"
	HTTPS Scheme = "https"
	File  Scheme = "file"
)

// DefaultPort returns the port used when a network locator does not name one.
func (s Scheme) DefaultPort() int {
	if s == HTTPS {
		return 443
	}
	return 80
}

// Locator is either a Network or a Local reference.
// Consumers are expected to switch over the two concrete types.
type Locator interface {
	Scheme() Scheme
	// Original is the exact string the locator was parsed from.
	Original() string
	String() string
	isLocator()
}

// Network references a resource reachable over HTTP or HTTPS.
type Network struct {
	scheme   Scheme
	Host     string
	Port     int
	Path     string
	original string
}

func (n Network) Scheme() Scheme { return n.scheme }
func (n Network) Original() string { return n.original }
func (Network) isLocator() {}

// Address returns the host:port pair to dial.
func (n Network) Address() string {
	return n.Host + ":" + strconv.Itoa(n.Port)
}

// String re-serializes the locator. The port is left out when it is the
// default for the scheme.
func (n Network) String() string {
	host := n.Host
	if n.Port != n.scheme.DefaultPort() {
		host = n.Address()
	}
	return string(n.scheme) + schemeSeparator + host + n.Path
}

// Resolve returns the locator a redirect Location points to.
// Locations starting with "/" keep the scheme, host and port of n;
// anything else is parsed as an absolute locator.
func (n Network) Resolve(location string) (Locator, error) {
	if strings.HasPrefix(location, "/") {
		if err := checkWireSafe("path", location); err != nil {
			return nil, err
		}
		return Network{
			scheme:   n.scheme,
			Host:     n.Host,
			Port:     n.Port,
			Path:     location,
			original: n.withPath(location),
		}, nil
	}
	return Parse(location)
}

func (n Network) withPath(path string) string {
	return Network{scheme: n.scheme, Host: n.Host, Port: n.Port, Path: path}.String()
}

// Local references a file or directory on the local filesystem.
type Local struct {
	Path     string
	original string
}

func (Local) Scheme() Scheme { return File }
func (l Local) Original() string { return l.original }
func (l Local) String() string { return string(File) + schemeSeparator + l.Path }
func (Local) isLocator() {}

// Parse parses raw into a Locator.
//
// A missing scheme defaults to http, so "example.org" and "://example.org"
// both resolve to http://example.org/.
func Parse(raw string) (Locator, error) {
	normalized := raw
	if scheme, _, found := strings.Cut(raw, schemeSeparator); !found {
		normalized = string(HTTP) + schemeSeparator + raw
	} else if scheme == "" {
		normalized = string(HTTP) + raw
	}

	schemeStr, rest, _ := strings.Cut(normalized, schemeSeparator)
	scheme, err := parseScheme(schemeStr)
	if err != nil {
		return nil, err
	}

	if scheme == File {
		return Local{Path: rest, original: raw}, nil
	}
	n, err := parseNetwork(scheme, rest, raw)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func parseScheme(s string) (Scheme, error) {
	switch scheme := Scheme(strings.ToLower(s)); scheme {
	case HTTP, HTTPS, File:
		return scheme, nil
	}
	return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocator, s)
}

func parseNetwork(scheme Scheme, rest, raw string) (Network, error) {
	hostPort, path, found := strings.Cut(rest, "/")
	path = "/" + path
	if !found {
		path = "/"
	}

	n := Network{
		scheme:   scheme,
		Host:     hostPort,
		Port:     scheme.DefaultPort(),
		Path:     path,
		original: raw,
	}
	if err := checkWireSafe("host", hostPort); err != nil {
		return Network{}, err
	}
	if err := checkWireSafe("path", path); err != nil {
		return Network{}, err
	}
	if host, portStr, found := strings.Cut(hostPort, ":"); found {
		port, err := strconv.Atoi(portStr)
		if err != nil || !isDigits(portStr) || port < 1 || port > 65535 {
			return Network{}, fmt.Errorf("%w: invalid port %q", ErrInvalidLocator, portStr)
		}
		n.Host = host
		n.Port = port
	}
	if n.Host == "" {
		return Network{}, fmt.Errorf("%w: missing host in %q", ErrInvalidLocator, raw)
	}
	return n, nil
}

// checkWireSafe rejects bytes that would end or split the request line:
// spaces, control characters and DEL.
func checkWireSafe(what, s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] <= 0x20 || s[i] == 0x7f {
			return fmt.Errorf("%w: invalid byte %q in %s %q", ErrInvalidLocator, s[i], what, s)
		}
	}
	return nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
