package tdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLIEPJIOK/tdb-client/pkg/ws"
)

func newTestDispatcher(m *Metrics) (*Registry, *Dispatcher) {
	r := NewRegistry(nil, m)
	return r, NewDispatcher(r, time.Second, nil, m)
}

func TestDispatch_NotConnected(t *testing.T) {
	_, d := newTestDispatcher(nil)

	_, err := d.Dispatch(context.Background(), "missing", ws.Request{Action: ws.ActionSelect})
	assert.ErrorIs(t, err, ws.ErrNotConnected)
}

func TestDispatch_Echo(t *testing.T) {
	r, d := newTestDispatcher(nil)
	r.Insert("c1", echoSocket())

	resp, err := d.Dispatch(context.Background(), "c1", ws.Request{
		Action: ws.ActionInsert,
		Table:  "t",
		Data:   map[string]any{"x": 1},
	})
	require.NoError(t, err)

	var echoed ws.Request
	require.NoError(t, resp.Unmarshal(&echoed))
	assert.Equal(t, ws.ActionInsert, echoed.Action)
	assert.Equal(t, "t", echoed.Table)
	assert.Equal(t, map[string]any{"x": 1.0}, echoed.Data)
}

func TestDispatch_SerializationFailureDoesNoIO(t *testing.T) {
	r, d := newTestDispatcher(nil)
	s := echoSocket()
	r.Insert("c1", s)

	_, err := d.Dispatch(context.Background(), "c1", ws.Request{
		Action: ws.ActionInsert,
		Data:   map[string]any{"ch": make(chan int)},
	})
	assert.ErrorIs(t, err, ws.ErrSerialization)
	assert.Equal(t, int32(0), s.exchanges.Load())

	_, ok := r.Lookup("c1")
	assert.True(t, ok)
}

func TestDispatch_BadResponseKeepsConnection(t *testing.T) {
	r, d := newTestDispatcher(nil)
	r.Insert("c1", newMockSocket(func(context.Context, []byte) ([]byte, error) {
		return []byte("not json"), nil
	}))

	_, err := d.Dispatch(context.Background(), "c1", ws.Request{Action: ws.ActionSelect})
	assert.ErrorIs(t, err, ws.ErrSerialization)

	_, ok := r.Lookup("c1")
	assert.True(t, ok)
}

func TestDispatch_ConnectionLostEvicts(t *testing.T) {
	r, d := newTestDispatcher(nil)

	var s *mockSocket
	s = newMockSocket(func(context.Context, []byte) ([]byte, error) {
		s.closed.Store(true)
		return nil, errors.Join(ws.ErrConnectionClosed, errors.New("read: EOF"))
	})
	r.Insert("c1", s)

	_, err := d.Dispatch(context.Background(), "c1", ws.Request{Action: ws.ActionSelect})
	assert.ErrorIs(t, err, ws.ErrConnectionLost)

	_, ok := r.Lookup("c1")
	assert.False(t, ok)

	_, err = d.Dispatch(context.Background(), "c1", ws.Request{Action: ws.ActionSelect})
	assert.ErrorIs(t, err, ws.ErrNotConnected)
}

func TestDispatch_EvictionKeepsReplacement(t *testing.T) {
	r, d := newTestDispatcher(nil)
	replacement := echoSocket()

	var s *mockSocket
	s = newMockSocket(func(context.Context, []byte) ([]byte, error) {
		// a concurrent connect replaces the socket mid-exchange
		r.Insert("c1", replacement)
		return nil, ws.ErrConnectionClosed
	})
	r.Insert("c1", s)

	_, err := d.Dispatch(context.Background(), "c1", ws.Request{Action: ws.ActionSelect})
	assert.ErrorIs(t, err, ws.ErrConnectionLost)

	got, ok := r.Lookup("c1")
	require.True(t, ok)
	assert.Same(t, replacement, got)
}

func TestDispatch_AbandonedWaitKeepsConnection(t *testing.T) {
	r, d := newTestDispatcher(nil)
	r.Insert("c1", newMockSocket(func(ctx context.Context, _ []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.Dispatch(ctx, "c1", ws.Request{Action: ws.ActionSelect})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ws.ErrConnectionLost)

	_, ok := r.Lookup("c1")
	assert.True(t, ok)
}

func TestDispatch_RequestTimeoutApplies(t *testing.T) {
	r := NewRegistry(nil, nil)
	d := NewDispatcher(r, 30*time.Millisecond, nil, nil)

	var deadline time.Time
	r.Insert("c1", newMockSocket(func(ctx context.Context, payload []byte) ([]byte, error) {
		deadline, _ = ctx.Deadline()
		return payload, nil
	}))

	_, err := d.Dispatch(context.Background(), "c1", ws.Request{Action: ws.ActionSelect})
	require.NoError(t, err)
	assert.False(t, deadline.IsZero())
	assert.WithinDuration(t, time.Now(), deadline, time.Second)
}

func TestDispatch_IndependentConnections(t *testing.T) {
	r, d := newTestDispatcher(nil)

	entered := make(chan struct{})
	release := make(chan struct{})

	r.Insert("slow", newMockSocket(func(_ context.Context, payload []byte) ([]byte, error) {
		close(entered)
		<-release
		return payload, nil
	}))
	r.Insert("fast", echoSocket())

	slowDone := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(context.Background(), "slow", ws.Request{Action: ws.ActionSelect})
		slowDone <- err
	}()

	<-entered

	fastDone := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(context.Background(), "fast", ws.Request{Action: ws.ActionSelect})
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("dispatch on an unrelated connection was blocked")
	}

	select {
	case <-slowDone:
		t.Fatal("slow dispatch finished before release")
	default:
	}

	close(release)
	require.NoError(t, <-slowDone)
}

func TestDispatch_Metrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	r, d := newTestDispatcher(m)
	r.Insert("c1", echoSocket())

	_, err := d.Dispatch(context.Background(), "c1", ws.Request{Action: ws.ActionSelect})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), "missing", ws.Request{Action: ws.ActionSelect})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("not_connected")))
}
