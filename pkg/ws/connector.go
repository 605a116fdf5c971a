package ws

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const maxRejectBody = 1024

// ConnectorConfig configures a Connector.
//
// HandshakeTimeout bounds the whole connect: TCP dial, TLS handshake, the
// upgrade request and the server's 101 response. Zero means no limit other
// than the caller's context.
type ConnectorConfig struct {
	HandshakeTimeout time.Duration
	// TLS is used for wss endpoints. nil means the system roots.
	TLS    *tls.Config
	Logger *slog.Logger
}

// DefaultConnectorConfig returns a 45 second handshake timeout, system TLS
// roots and slog.Default().
func DefaultConnectorConfig() ConnectorConfig {
	return ConnectorConfig{
		HandshakeTimeout: 45 * time.Second,
		Logger:           slog.Default(),
	}
}

// Connector dials endpoints and performs the upgrade handshake itself,
// sending the request headers exactly as built.
type Connector struct {
	cfg    ConnectorConfig
	dialer net.Dialer
	logger *slog.Logger
}

// NewConnector returns a Connector for cfg. A Connector holds no
// connections and is safe for concurrent use.
func NewConnector(cfg ConnectorConfig) *Connector {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Connector{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Dial opens the transport for req and upgrades it. The returned socket is
// open; on error nothing stays open.
func (c *Connector) Dial(ctx context.Context, req *UpgradeRequest) (*Socket, error) {
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}

	conn, err := c.dialTransport(ctx, req)
	if err != nil {
		return nil, classifyDialError(ctx, err)
	}

	br, resp, err := c.upgrade(ctx, conn, req)
	if err != nil {
		conn.Close()
		return nil, err
	}

	c.logger.Debug("handshake completed",
		"url", req.Redacted(),
		"status", resp.Status,
		"headers", resp.Header,
	)

	return newSocket(conn, br, resp, c.logger), nil
}

func (c *Connector) dialTransport(ctx context.Context, req *UpgradeRequest) (net.Conn, error) {
	host := req.URL.Hostname()
	port := req.URL.Port()

	switch req.URL.Scheme {
	case "ws":
		if port == "" {
			port = "80"
		}

		return c.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))

	case "wss":
		if port == "" {
			port = "443"
		}

		cfg := &tls.Config{MinVersion: tls.VersionTLS12}
		if c.cfg.TLS != nil {
			cfg = c.cfg.TLS.Clone()
		}

		if cfg.ServerName == "" {
			cfg.ServerName = host
		}

		d := tls.Dialer{NetDialer: &c.dialer, Config: cfg}

		return d.DialContext(ctx, "tcp", net.JoinHostPort(host, port))

	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, req.URL.Scheme)
	}
}

func (c *Connector) upgrade(
	ctx context.Context,
	conn net.Conn,
	req *UpgradeRequest,
) (*bufio.Reader, HandshakeResponse, error) {
	deadline, _ := ctx.Deadline()
	_ = conn.SetDeadline(deadline)

	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(aLongTimeAgo)
		close(fired)
	})
	defer func() {
		if !stop() {
			<-fired
		}
	}()

	httpReq := req.httpRequest(ctx)
	if err := httpReq.Write(conn); err != nil {
		return nil, HandshakeResponse{}, classifyDialError(ctx, err)
	}

	br := bufio.NewReader(conn)

	resp, err := http.ReadResponse(br, httpReq)
	if err != nil {
		return nil, HandshakeResponse{}, classifyDialError(ctx, err)
	}

	hr := HandshakeResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
	}

	if reason := checkUpgradeResponse(resp, req.Key); reason != "" {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxRejectBody))
		resp.Body.Close()

		return nil, hr, &HandshakeError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Header:     resp.Header,
			Body:       strings.TrimSpace(string(body)),
			Reason:     reason,
		}
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, hr, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	return br, hr, nil
}

func checkUpgradeResponse(resp *http.Response, key string) string {
	switch {
	case resp.StatusCode != http.StatusSwitchingProtocols:
		return "server did not switch protocols"
	case !headerContainsToken(resp.Header, "Upgrade", "websocket"):
		return "missing upgrade header"
	case !headerContainsToken(resp.Header, "Connection", "upgrade"):
		return "missing connection header"
	case resp.Header.Get("Sec-WebSocket-Accept") != computeAcceptKey(key):
		return "accept key mismatch"
	}

	return ""
}

func headerContainsToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, p := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(p), token) {
				return true
			}
		}
	}

	return false
}

func classifyDialError(ctx context.Context, err error) error {
	if errors.Is(err, ErrInvalidEndpoint) {
		return err
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: %w", ErrNetwork, ctx.Err())
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
