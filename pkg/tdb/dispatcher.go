package tdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LLIEPJIOK/tdb-client/pkg/ws"
)

// Dispatcher sends requests over registered connections.
type Dispatcher struct {
	registry       *Registry
	requestTimeout time.Duration
	logger         *slog.Logger
	metrics        *Metrics
}

func NewDispatcher(registry *Registry, requestTimeout time.Duration, logger *slog.Logger, metrics *Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		registry:       registry,
		requestTimeout: requestTimeout,
		logger:         logger,
		metrics:        metrics,
	}
}

// Dispatch sends req over the connection registered as id and returns the
// decoded response. A connection that fails mid-exchange is closed and
// removed from the registry; the error then wraps ws.ErrConnectionLost.
func (d *Dispatcher) Dispatch(ctx context.Context, id string, req ws.Request) (resp *ws.Response, err error) {
	start := time.Now()
	defer func() { d.metrics.observeDispatch(start, err) }()

	sock, ok := d.registry.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ws.ErrNotConnected, id)
	}

	payload, err := ws.EncodeRequest(&req)
	if err != nil {
		return nil, err
	}

	if d.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.requestTimeout)
		defer cancel()
	}

	data, err := sock.Exchange(ctx, payload)
	if err != nil {
		if !sock.Closed() && !errors.Is(err, ws.ErrConnectionClosed) {
			// never got the exchange slot, the socket is untouched
			return nil, err
		}

		if d.registry.RemoveIf(id, sock) {
			d.logger.Warn("connection lost, removed from registry", "id", id, "error", err)
		}

		_ = sock.Close()

		return nil, fmt.Errorf("%w: %s: %w", ws.ErrConnectionLost, id, err)
	}

	resp, err = ws.DecodeResponse(data)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("request dispatched",
		"id", id,
		"action", req.Action,
		"table", req.Table,
		"duration", time.Since(start),
	)

	return resp, nil
}
