// Package message holds the request and response values exchanged by the
// fetcher. Both are treated as immutable once constructed.
package message

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/always-cache/webfetch/pkg/locator"
	"golang.org/x/text/encoding/unicode"
)

const MethodGet = "GET"

// DefaultUserAgent is sent when no other user agent is configured.
const DefaultUserAgent = "Awesome Browser"

// Header is a case-insensitive header mapping. Keys are stored lower-cased.
type Header map[string]string

// Get returns the value for name, or "" if it is not present.
func (h Header) Get(name string) string {
	return h[strings.ToLower(name)]
}

// Lookup returns the value for name and whether it was present.
func (h Header) Lookup(name string) (string, bool) {
	v, ok := h[strings.ToLower(name)]
	return v, ok
}

// Set replaces any existing value for name.
func (h Header) Set(name, value string) {
	h[strings.ToLower(name)] = value
}

func (h Header) Del(name string) {
	delete(h, strings.ToLower(name))
}

// Clone returns a copy of h.
func (h Header) Clone() Header {
	c := make(Header, len(h))
	for k, v := range h {
		c[k] = v
	}
	return c
}

// requestHeaderOrder is the wire order of the request headers.
// No other headers are ever written.
var requestHeaderOrder = []string{"Host", "Connection", "User-Agent", "Accept-Encoding"}

type Request struct {
	Method string
	Target locator.Locator
	Header Header
}

// NewGetRequest returns the GET request sent for target.
// Only network targets carry headers.
func NewGetRequest(target locator.Locator, userAgent string) *Request {
	req := &Request{
		Method: MethodGet,
		Target: target,
		Header: Header{},
	}
	if n, ok := target.(locator.Network); ok {
		if userAgent == "" {
			userAgent = DefaultUserAgent
		}
		req.Header.Set("Host", n.Host)
		req.Header.Set("Connection", "close")
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept-Encoding", "gzip")
	}
	return req
}

func (r *Request) Scheme() locator.Scheme {
	return r.Target.Scheme()
}

// Host returns the target host, or "" for filesystem requests.
func (r *Request) Host() string {
	if n, ok := r.Target.(locator.Network); ok {
		return n.Host
	}
	return ""
}

// Original returns the locator string the request target was parsed from.
func (r *Request) Original() string {
	return r.Target.Original()
}

// Write writes the HTTP/1.1 representation of r to w.
func (r *Request) Write(w io.Writer) error {
	n, ok := r.Target.(locator.Network)
	if !ok {
		return fmt.Errorf("cannot write %s request for %s", r.Method, r.Target)
	}
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "%s %s HTTP/1.1\r\n", r.Method, n.Path)
	for _, name := range requestHeaderOrder {
		if v, ok := r.Header.Lookup(name); ok {
			fmt.Fprintf(buf, "%s: %s\r\n", name, v)
		}
	}
	buf.WriteString("\r\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// Bytes returns the wire representation of r.
func (r *Request) Bytes() []byte {
	buf := &bytes.Buffer{}
	if err := r.Write(buf); err != nil {
		return nil
	}
	return buf.Bytes()
}

// Response is a fully decoded response. Body never holds chunk framing
// or compressed bytes.
type Response struct {
	Proto      string
	StatusCode int
	Reason     string
	Header     Header
	Body       []byte
	// Local is set for filesystem responses, which have no status or headers.
	Local bool
}

// NewLocalResponse wraps the contents of a file or directory listing.
func NewLocalResponse(body []byte) *Response {
	return &Response{
		Header: Header{},
		Body:   body,
		Local:  true,
	}
}

// StatusLine returns e.g. "HTTP/1.1 200 OK".
func (r *Response) StatusLine() string {
	if r.Local {
		return ""
	}
	line := fmt.Sprintf("%s %d", r.Proto, r.StatusCode)
	if r.Reason != "" {
		line += " " + r.Reason
	}
	return line
}

// IsRedirect reports whether the status code is in the 3xx range.
func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// Text returns the body decoded as UTF-8. A leading byte order mark is
// dropped and invalid sequences become U+FFFD.
func (r *Response) Text() string {
	text, err := unicode.UTF8BOM.NewDecoder().Bytes(r.Body)
	if err != nil {
		return strings.ToValidUTF8(string(r.Body), "�")
	}
	return string(text)
}

// Result pairs a request with the response it produced.
type Result struct {
	Request  *Request
	Response *Response
}

// Clone returns a copy of r that shares no mutable state with it.
func (r Result) Clone() Result {
	if r.Request != nil {
		req := *r.Request
		req.Header = req.Header.Clone()
		r.Request = &req
	}
	if r.Response != nil {
		res := *r.Response
		res.Header = res.Header.Clone()
		res.Body = bytes.Clone(res.Body)
		r.Response = &res
	}
	return r
}

// IsNetwork reports whether the result came from an HTTP or HTTPS fetch.
func (r Result) IsNetwork() bool {
	if r.Request == nil {
		return false
	}
	_, ok := r.Request.Target.(locator.Network)
	return ok
}
