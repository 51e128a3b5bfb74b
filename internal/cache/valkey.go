package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// ValkeyProvider implements Provider backed by a Valkey/Redis-compatible
// server speaking RESP. Connections are dialed per call; the episode cache
// traffic is too light to justify pooling.
type ValkeyProvider struct {
	cfg ValkeyConfig
}

// ValkeyConfig holds connection parameters for the Valkey server.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	TLS          bool
}

// NewValkeyProvider creates a Provider using the supplied configuration.
// It pings the target to fail fast on bad credentials or connectivity.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}

	provider := &ValkeyProvider{cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := provider.ping(ctx); err != nil {
		return nil, err
	}
	return provider, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := p.withConn(ctx, func(conn *respConn) error {
		if err := conn.send("GET", key); err != nil {
			return err
		}
		data, isNil, err := conn.receive()
		if err != nil {
			return err
		}
		if isNil {
			return ErrCacheMiss
		}
		payload = data
		return nil
	})
	return payload, err
}

// Set stores bytes with the provided TTL.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.withConn(ctx, func(conn *respConn) error {
		args := []string{key, string(value)}
		if ttl > 0 {
			args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
		}
		if err := conn.send("SET", args...); err != nil {
			return err
		}
		data, _, err := conn.receive()
		if err != nil {
			return err
		}
		if !strings.EqualFold(string(data), "OK") {
			return fmt.Errorf("unexpected SET response: %s", data)
		}
		return nil
	})
}

// Del removes a key from the cache.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	return p.withConn(ctx, func(conn *respConn) error {
		if err := conn.send("DEL", key); err != nil {
			return err
		}
		_, _, err := conn.receive()
		return err
	})
}

// Close closes the underlying client (no-op, connections are per-call).
func (p *ValkeyProvider) Close() error { return nil }

func (p *ValkeyProvider) ping(ctx context.Context) error {
	return p.withConn(ctx, func(conn *respConn) error {
		if err := conn.send("PING"); err != nil {
			return err
		}
		data, _, err := conn.receive()
		if err != nil {
			return err
		}
		if !strings.EqualFold(string(data), "PONG") {
			return fmt.Errorf("unexpected PING response: %s", data)
		}
		return nil
	})
}

func (p *ValkeyProvider) withConn(ctx context.Context, fn func(*respConn) error) error {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := p.dial(ctx)
		if err == nil {
			err = p.bootstrap(conn)
			if err == nil {
				err = fn(conn)
			}
			conn.close()
		}
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) || attempt == p.cfg.MaxRetries-1 {
			return err
		}
		time.Sleep(time.Duration(1<<attempt) * 25 * time.Millisecond)
	}
	return lastErr
}

func (p *ValkeyProvider) dial(ctx context.Context) (*respConn, error) {
	dialer := net.Dialer{Timeout: p.cfg.DialTimeout}
	var (
		conn net.Conn
		err  error
	)
	if p.cfg.TLS {
		host := p.cfg.Addr
		if h, _, splitErr := net.SplitHostPort(p.cfg.Addr); splitErr == nil {
			host = h
		}
		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
		conn, err = tls.DialWithDialer(&dialer, "tcp", p.cfg.Addr, tlsCfg)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", p.cfg.Addr)
	}
	if err != nil {
		return nil, err
	}
	return &respConn{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		writer:       bufio.NewWriter(conn),
		readTimeout:  p.cfg.ReadTimeout,
		writeTimeout: p.cfg.WriteTimeout,
	}, nil
}

func (p *ValkeyProvider) bootstrap(conn *respConn) error {
	if p.cfg.Password != "" {
		args := []string{p.cfg.Password}
		if p.cfg.Username != "" {
			args = []string{p.cfg.Username, p.cfg.Password}
		}
		if err := conn.send("AUTH", args...); err != nil {
			return err
		}
		data, _, err := conn.receive()
		if err != nil {
			return err
		}
		if !strings.EqualFold(string(data), "OK") {
			return fmt.Errorf("auth failed: %s", data)
		}
	}
	if p.cfg.DB > 0 {
		if err := conn.send("SELECT", strconv.Itoa(p.cfg.DB)); err != nil {
			return err
		}
		data, _, err := conn.receive()
		if err != nil {
			return err
		}
		if !strings.EqualFold(string(data), "OK") {
			return fmt.Errorf("select failed: %s", data)
		}
	}
	return nil
}

// respConn wraps a network connection with the RESP framing the provider
// needs: arrays of bulk strings out, simple/bulk/integer/nil replies in.
type respConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	writer       *bufio.Writer
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *respConn) close() {
	_ = c.conn.Close()
}

func (c *respConn) send(command string, args ...string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	parts := append([]string{command}, args...)
	if _, err := fmt.Fprintf(c.writer, "*%d\r\n", len(parts)); err != nil {
		return err
	}
	for _, part := range parts {
		if _, err := fmt.Fprintf(c.writer, "$%d\r\n%s\r\n", len(part), part); err != nil {
			return err
		}
	}
	return c.writer.Flush()
}

// receive reads one reply. isNil reports a RESP null bulk string.
func (c *respConn) receive() (data []byte, isNil bool, err error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return nil, false, err
	}
	prefix, err := c.reader.ReadByte()
	if err != nil {
		return nil, false, err
	}
	switch prefix {
	case '+', ':':
		line, err := c.readLine()
		return line, false, err
	case '-':
		line, err := c.readLine()
		if err != nil {
			return nil, false, err
		}
		return nil, false, errors.New(string(line))
	case '$':
		line, err := c.readLine()
		if err != nil {
			return nil, false, err
		}
		size, err := strconv.Atoi(string(line))
		if err != nil {
			return nil, false, err
		}
		if size < 0 {
			return nil, true, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(c.reader, buf); err != nil {
			return nil, false, err
		}
		if buf[size] != '\r' || buf[size+1] != '\n' {
			return nil, false, errors.New("invalid bulk string termination")
		}
		return buf[:size], false, nil
	default:
		return nil, false, fmt.Errorf("unexpected RESP prefix %q", prefix)
	}
}

func (c *respConn) readLine() ([]byte, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func retryable(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
