package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/always-cache/webfetch/pkg/locator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func network(t *testing.T, raw string) locator.Network {
	t.Helper()
	loc, err := locator.Parse(raw)
	require.NoError(t, err)
	return loc.(locator.Network)
}

func TestOpenWriteRead(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		// read until the client half-closes
		b, _ := io.ReadAll(c)
		received <- string(b)
		io.WriteString(c, "HTTP/1.1 200 OK\r\n\r\nbody")
	}()

	d := New(Config{DialTimeout: time.Second, IOTimeout: 5 * time.Second})
	conn, err := d.Open(context.Background(), network(t, "http://"+ln.Addr().String()+"/"))
	require.NoError(t, err)
	require.NoError(t, conn.WriteAll([]byte("ping")))
	conn.conn.(*net.TCPConn).CloseWrite()

	assert.Equal(t, "ping", <-received)
	line, err := conn.Reader().ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", line)
	require.NoError(t, conn.Close())
}

func TestOpenRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = New(Config{}).Open(context.Background(), network(t, "http://"+addr+"/"))
	assert.ErrorIs(t, err, ErrConnection)
}

func TestOpenTLSUntrusted(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "https://")
	_, err := New(Config{}).Open(context.Background(), network(t, "https://"+addr+"/"))
	assert.ErrorIs(t, err, ErrTLS)
}

func TestOpenTLSTrusted(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	// the test certificate is issued for example.com and 127.0.0.1
	addr := strings.TrimPrefix(srv.URL, "https://")
	conn, err := New(Config{TLSConfig: srv.Client().Transport.(*http.Transport).TLSClientConfig}).
		Open(context.Background(), network(t, "https://"+addr+"/"))
	require.NoError(t, err)
	conn.Close()
}

func TestReadLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	b, err := ReadLocal(localLocator(t, path))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}

func TestReadLocalDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), nil, 0644))

	b, err := ReadLocal(localLocator(t, dir+"/"))
	require.NoError(t, err)
	assert.Equal(t, "a\nb", string(b))
}

func TestReadLocalMissing(t *testing.T) {
	_, err := ReadLocal(localLocator(t, filepath.Join(t.TempDir(), "missing")))
	assert.ErrorIs(t, err, ErrLocalAccess)
}

func localLocator(t *testing.T, path string) locator.Local {
	t.Helper()
	loc, err := locator.Parse("file://" + path)
	require.NoError(t, err)
	return loc.(locator.Local)
}

// shortWriter accepts at most max bytes per Write and fails once failAfter
// bytes have been written.
type shortWriter struct {
	net.Conn
	max       int
	failAfter int
	written   []byte
	calls     int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	w.calls++
	if w.failAfter >= 0 && len(w.written) >= w.failAfter {
		return 0, errors.New("connection reset by peer")
	}
	n := len(p)
	if n > w.max {
		n = w.max
	}
	w.written = append(w.written, p[:n]...)
	return n, nil
}

func TestWriteAllRetriesShortWrites(t *testing.T) {
	w := &shortWriter{max: 3, failAfter: -1}
	c := &Conn{conn: w}

	msg := []byte("GET / HTTP/1.1\r\nHost: example.test\r\n\r\n")
	require.NoError(t, c.WriteAll(msg))
	assert.Equal(t, msg, w.written)
	assert.Equal(t, (len(msg)+2)/3, w.calls)
}

func TestWriteAllFailsOnError(t *testing.T) {
	w := &shortWriter{max: 4, failAfter: 8}
	c := &Conn{conn: w}

	err := c.WriteAll([]byte("0123456789abcdef"))
	assert.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, "01234567", string(w.written))
	// no retry after the failed write
	assert.Equal(t, 3, w.calls)
}

func TestWriteAllFailsWithoutProgress(t *testing.T) {
	w := &shortWriter{max: 0, failAfter: -1}
	err := (&Conn{conn: w}).WriteAll([]byte("x"))
	assert.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, 1, w.calls)
}
