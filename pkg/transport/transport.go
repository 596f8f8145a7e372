// Package transport opens one-shot byte streams to network hosts and reads
// local files.
package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/always-cache/webfetch/pkg/locator"

	"github.com/rs/zerolog"
)

var (
	// ErrConnection covers DNS, connect, write and read failures.
	ErrConnection = errors.New("connection error")
	// ErrTLS is returned when the TLS handshake fails.
	ErrTLS = errors.New("tls error")
)

type Config struct {
	// Maximum time to establish the TCP connection. Zero means no limit.
	DialTimeout time.Duration `yaml:"dialTimeout"`
	// Deadline for the whole exchange once connected, including the TLS
	// handshake. Zero means no limit.
	IOTimeout time.Duration `yaml:"ioTimeout"`
	// TLS configuration for https. ServerName is always set to the target host.
	TLSConfig *tls.Config `yaml:"-"`
	// Logger to use. Nothing is logged if nil.
	Logger *zerolog.Logger `yaml:"-"`
}

type Dialer struct {
	dialer    net.Dialer
	ioTimeout time.Duration
	tlsConfig *tls.Config
	log       zerolog.Logger
}

func New(config Config) *Dialer {
	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}
	return &Dialer{
		dialer:    net.Dialer{Timeout: config.DialTimeout},
		ioTimeout: config.IOTimeout,
		tlsConfig: config.TLSConfig,
		log:       logger,
	}
}

// Open connects to the host of loc. For https the TLS handshake is completed
// before Open returns.
func (d *Dialer) Open(ctx context.Context, loc locator.Network) (*Conn, error) {
	log := d.log.With().Str("addr", loc.Address()).Logger()
	log.Trace().Msg("Dialing")

	raw, err := d.dialer.DialContext(ctx, "tcp", loc.Address())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if d.ioTimeout > 0 {
		raw.SetDeadline(time.Now().Add(d.ioTimeout))
	}

	conn := raw
	if loc.Scheme() == locator.HTTPS {
		tlsConn := tls.Client(raw, d.clientTLSConfig(loc.Host))
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, fmt.Errorf("%w: %v", ErrTLS, err)
		}
		log.Trace().Msg("TLS handshake complete")
		conn = tlsConn
	}

	return &Conn{conn: conn, r: bufio.NewReader(conn)}, nil
}

func (d *Dialer) clientTLSConfig(host string) *tls.Config {
	var config *tls.Config
	if d.tlsConfig != nil {
		config = d.tlsConfig.Clone()
	} else {
		config = &tls.Config{}
	}
	config.ServerName = host
	return config
}

// Conn is a single request/response exchange with a host.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader
}

// WriteAll writes all of p, retrying partial writes. A write that fails or
// makes no progress ends the exchange.
func (c *Conn) WriteAll(p []byte) error {
	for len(p) > 0 {
		n, err := c.conn.Write(p)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrConnection, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: peer accepted no bytes", ErrConnection)
		}
		p = p[n:]
	}
	return nil
}

// Reader returns the response stream. Status line and headers are read
// line by line from it, the body as the remainder.
func (c *Conn) Reader() *bufio.Reader {
	return c.r
}

type closeWriter interface {
	CloseWrite() error
}

// Close half-closes the write side and then closes the connection.
func (c *Conn) Close() error {
	if cw, ok := c.conn.(closeWriter); ok {
		cw.CloseWrite()
	}
	return c.conn.Close()
}
