// Package decoder reads HTTP/1.1 responses off a byte stream into fully
// materialized message.Response values.
package decoder

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/always-cache/webfetch/pkg/message"
)

// ErrProtocol is returned for malformed or unsupported responses.
var ErrProtocol = errors.New("protocol error")

// Decode reads a complete response from r.
//
// Chunked transfer-coding is removed first and gzip content-coding after
// that, so the returned body is always the plain payload.
func Decode(r *bufio.Reader) (*message.Response, error) {
	res, err := readHead(r)
	if err != nil {
		return nil, err
	}

	raw, err := readBody(r, res.Header)
	if err != nil {
		return nil, err
	}

	res.Body, err = decodeContent(raw, res.Header)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func readHead(r *bufio.Reader) (*message.Response, error) {
	statusLine, err := readLine(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading status line: %v", ErrProtocol, err)
	}
	res, err := parseStatusLine(statusLine)
	if err != nil {
		return nil, err
	}

	for {
		line, err := readLine(r)
		if err != nil {
			return nil, fmt.Errorf("%w: unterminated header block: %v", ErrProtocol, err)
		}
		if line == "" {
			break
		}
		name, value, found := strings.Cut(line, ":")
		if !found || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: malformed header line %q", ErrProtocol, line)
		}
		// last duplicate wins
		res.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return res, nil
}

// parseStatusLine parses e.g. "HTTP/1.1 200 OK". The reason phrase may be
// missing or contain spaces.
func parseStatusLine(line string) (*message.Response, error) {
	proto, rest, found := strings.Cut(line, " ")
	if !found || !strings.HasPrefix(proto, "HTTP/") {
		return nil, fmt.Errorf("%w: malformed status line %q", ErrProtocol, line)
	}
	codeStr, reason, _ := strings.Cut(rest, " ")
	code, err := strconv.Atoi(codeStr)
	if err != nil || len(codeStr) != 3 {
		return nil, fmt.Errorf("%w: malformed status code in %q", ErrProtocol, line)
	}
	return &message.Response{
		Proto:      proto,
		StatusCode: code,
		Reason:     strings.TrimSpace(reason),
		Header:     message.Header{},
	}, nil
}

func readBody(r *bufio.Reader, header message.Header) ([]byte, error) {
	te, ok := header.Lookup("Transfer-Encoding")
	if !ok || strings.EqualFold(te, "identity") {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading body: %v", ErrProtocol, err)
		}
		return b, nil
	}
	if !strings.EqualFold(te, "chunked") {
		return nil, fmt.Errorf("%w: unsupported transfer-encoding %q", ErrProtocol, te)
	}
	return dechunk(r)
}

// dechunk reassembles a chunked body. Trailer fields after the last chunk
// are read and dropped.
func dechunk(r *bufio.Reader) ([]byte, error) {
	body := &bytes.Buffer{}
	for {
		line, err := readLine(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading chunk size: %v", ErrProtocol, err)
		}
		sizeStr, _, _ := strings.Cut(line, ";")
		size, err := strconv.ParseUint(strings.TrimSpace(sizeStr), 16, 63)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid chunk size %q", ErrProtocol, line)
		}
		if size == 0 {
			break
		}
		if _, err := io.CopyN(body, r, int64(size)); err != nil {
			return nil, fmt.Errorf("%w: short chunk: %v", ErrProtocol, err)
		}
		if line, err := readLine(r); err != nil || line != "" {
			return nil, fmt.Errorf("%w: missing chunk terminator", ErrProtocol)
		}
	}
	for {
		line, err := readLine(r)
		if err == io.EOF && line == "" {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading trailer: %v", ErrProtocol, err)
		}
		if line == "" {
			break
		}
	}
	return body.Bytes(), nil
}

func decodeContent(raw []byte, header message.Header) ([]byte, error) {
	ce, ok := header.Lookup("Content-Encoding")
	// bodiless responses such as redirects may still name a coding
	if !ok || ce == "" || strings.EqualFold(ce, "identity") || len(raw) == 0 {
		return raw, nil
	}
	if !strings.EqualFold(ce, "gzip") && !strings.EqualFold(ce, "x-gzip") {
		return nil, fmt.Errorf("%w: unsupported content-encoding %q", ErrProtocol, ce)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", ErrProtocol, err)
	}
	defer zr.Close()
	b, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", ErrProtocol, err)
	}
	return b, nil
}

// readLine reads a line terminated by LF, stripping the terminator and an
// optional preceding CR. A line cut off by the end of the stream is
// reported as io.ErrUnexpectedEOF.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r"), io.ErrUnexpectedEOF
		}
		return line, err
	}
	return strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"), nil
}
