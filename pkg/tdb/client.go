package tdb

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/LLIEPJIOK/tdb-client/pkg/ws"
)

type Config struct {
	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
	TLS              *tls.Config
	Logger           *slog.Logger
	Metrics          *Metrics
}

func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 45 * time.Second,
		RequestTimeout:   30 * time.Second,
		Logger:           slog.Default(),
	}
}

// Client is the entry point for callers: it owns the registry and exposes
// connect, query and disconnect by connection id.
type Client struct {
	cfg        Config
	connector  *ws.Connector
	registry   *Registry
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	registry := NewRegistry(cfg.Logger, cfg.Metrics)

	return &Client{
		cfg: cfg,
		connector: ws.NewConnector(ws.ConnectorConfig{
			HandshakeTimeout: cfg.HandshakeTimeout,
			TLS:              cfg.TLS,
			Logger:           cfg.Logger,
		}),
		registry:   registry,
		dispatcher: NewDispatcher(registry, cfg.RequestTimeout, cfg.Logger, cfg.Metrics),
		logger:     cfg.Logger,
	}
}

// Connect establishes a connection and registers it as id, replacing and
// closing a connection already registered under that id. Nothing is
// registered on failure.
func (c *Client) Connect(ctx context.Context, id string, params ws.ConnectionParameters) (err error) {
	defer func() { c.cfg.Metrics.observeConnect(err) }()

	req, err := ws.BuildHandshake(params)
	if err != nil {
		return err
	}

	c.logger.Info("connecting", "id", id, "url", req.Redacted(), "db", params.DBName)

	sock, err := c.connector.Dial(ctx, req)
	if err != nil {
		c.logger.Warn("connect failed", "id", id, "error", err)
		return err
	}

	c.registry.Insert(id, sock)
	c.logger.Info("connected", "id", id, "remote_addr", sock.RemoteAddr())

	return nil
}

func (c *Client) Query(ctx context.Context, id string, req ws.Request) (*ws.Response, error) {
	return c.dispatcher.Dispatch(ctx, id, req)
}

// Disconnect removes id and closes its connection gracefully.
func (c *Client) Disconnect(id string) error {
	sock, ok := c.registry.Remove(id)
	if !ok {
		return fmt.Errorf("%w: %s", ws.ErrNotConnected, id)
	}

	c.logger.Info("disconnecting", "id", id)

	return sock.Close()
}

func (c *Client) Connections() []string {
	return c.registry.IDs()
}

// Close closes every registered connection.
func (c *Client) Close(ctx context.Context) error {
	return c.registry.Close(ctx)
}
