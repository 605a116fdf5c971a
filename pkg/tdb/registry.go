// Package tdb keeps named connections to TDB servers and dispatches
// requests over them. Client is the entry point; Registry and Dispatcher
// can be used on their own with any Socket implementation.
package tdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Socket is what the registry stores. *ws.Socket implements it.
type Socket interface {
	// Exchange sends one frame and returns the single reply frame. It
	// serializes callers itself.
	Exchange(ctx context.Context, payload []byte) ([]byte, error)
	Closed() bool
	Close() error
}

// Registry maps connection ids to open sockets. The lock only guards the
// map; socket I/O and closing happen outside of it.
type Registry struct {
	mu      sync.Mutex
	sockets map[string]Socket
	logger  *slog.Logger
	metrics *Metrics
}

func NewRegistry(logger *slog.Logger, metrics *Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		sockets: make(map[string]Socket),
		logger:  logger,
		metrics: metrics,
	}
}

// Insert stores socket under id. A socket previously stored under the same
// id is closed after the swap.
func (r *Registry) Insert(id string, socket Socket) {
	r.mu.Lock()
	prev, replaced := r.sockets[id]
	r.sockets[id] = socket
	r.metrics.setOpen(len(r.sockets))
	r.mu.Unlock()

	if replaced && prev != socket {
		r.logger.Info("replacing connection", "id", id)

		if err := prev.Close(); err != nil {
			r.logger.Warn("failed to close replaced connection", "id", id, "error", err)
		}
	}
}

func (r *Registry) Lookup(id string) (Socket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sockets[id]

	return s, ok
}

// Remove deletes id and returns its socket. Closing it is up to the caller.
func (r *Registry) Remove(id string) (Socket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sockets[id]
	if ok {
		delete(r.sockets, id)
		r.metrics.setOpen(len(r.sockets))
	}

	return s, ok
}

// RemoveIf deletes id only while it still maps to socket.
func (r *Registry) RemoveIf(id string, socket Socket) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sockets[id]; !ok || s != socket {
		return false
	}

	delete(r.sockets, id)
	r.metrics.setOpen(len(r.sockets))

	return true
}

func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sockets))
	for id := range r.sockets {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	slices.Sort(ids)

	return ids
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sockets)
}

// maxConcurrentCloses bounds the goroutines Close starts; each graceful
// close may wait up to a second for an in-flight exchange.
const maxConcurrentCloses = 32

// Close empties the registry and closes every socket concurrently, at most
// maxConcurrentCloses at a time. Errors of individual sockets are joined.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	sockets := r.sockets
	r.sockets = make(map[string]Socket)
	r.metrics.setOpen(0)
	r.mu.Unlock()

	// each goroutine writes only its own slot
	errs := make([]error, len(sockets))
	done := make(chan struct{})

	go func() {
		defer close(done)

		var g errgroup.Group
		g.SetLimit(maxConcurrentCloses)

		i := 0
		for id, s := range sockets {
			slot := &errs[i]
			i++

			g.Go(func() error {
				if err := s.Close(); err != nil {
					*slot = fmt.Errorf("close %s: %w", id, err)
				}

				return nil
			})
		}

		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return errors.Join(errs...)
}
