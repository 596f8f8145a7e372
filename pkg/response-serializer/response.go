// Package serializer converts decoded responses back into HTTP/1.1 bytes
// for storage, and reads them back with the response decoder.
package serializer

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/always-cache/webfetch/pkg/message"
	decoder "github.com/always-cache/webfetch/pkg/response-decoder"
)

// encodingHeaders describe the wire framing of the original response.
// Stored bodies are already decoded, so they are dropped.
var encodingHeaders = []string{"Transfer-Encoding", "Content-Encoding", "Content-Length"}

// BytesToResponse reads a response written by ResponseToBytes.
func BytesToResponse(b []byte) (*message.Response, error) {
	return decoder.Decode(bufio.NewReader(bytes.NewReader(b)))
}

// ResponseToBytes returns the HTTP/1.1 representation of res with its
// decoded body. Headers are written in sorted order. Filesystem responses
// have no head, so only the body is returned for them.
func ResponseToBytes(res *message.Response) []byte {
	if res.Local {
		return append([]byte(nil), res.Body...)
	}
	header := res.Header.Clone()
	for _, name := range encodingHeaders {
		header.Del(name)
	}
	header.Set("Content-Length", strconv.Itoa(len(res.Body)))

	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := &bytes.Buffer{}
	proto := res.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	fmt.Fprintf(buf, "%s %03d", proto, res.StatusCode)
	if res.Reason != "" {
		fmt.Fprintf(buf, " %s", res.Reason)
	}
	buf.WriteString("\r\n")
	for _, name := range names {
		fmt.Fprintf(buf, "%s: %s\r\n", http.CanonicalHeaderKey(name), header[name])
	}
	buf.WriteString("\r\n")
	buf.Write(res.Body)
	return buf.Bytes()
}
