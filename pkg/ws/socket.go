package ws

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

const closeGracePeriod = time.Second

// aLongTimeAgo is used as a deadline to abort blocked I/O immediately.
var aLongTimeAgo = time.Unix(1, 0)

// HandshakeResponse is what the server answered to the upgrade request.
type HandshakeResponse struct {
	StatusCode int
	Status     string
	Header     http.Header
}

// Socket is an upgraded client connection. It admits one request/response
// exchange at a time; Close may be called concurrently with an exchange.
type Socket struct {
	conn      net.Conn
	rw        io.ReadWriter
	response  HandshakeResponse
	slot      chan struct{}
	writeMu   sync.Mutex
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	logger    *slog.Logger
}

// readWriter reads through the buffered reader left over from the
// handshake so that frames sent right after the 101 response are not lost.
type readWriter struct {
	io.Reader
	io.Writer
}

func newSocket(conn net.Conn, br *bufio.Reader, resp HandshakeResponse, logger *slog.Logger) *Socket {
	if logger == nil {
		logger = slog.Default()
	}

	return &Socket{
		conn:     conn,
		rw:       readWriter{Reader: br, Writer: conn},
		response: resp,
		slot:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// HandshakeResponse returns the status and headers of the server's 101
// response, for diagnostics.
func (s *Socket) HandshakeResponse() HandshakeResponse {
	return s.response
}

// RemoteAddr returns the address of the server end of the connection.
func (s *Socket) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Exchange sends payload as one text frame and waits for exactly one data
// frame in reply.
//
// If ctx ends while waiting for the exchange slot, ctx.Err() is returned and
// the socket is left intact. If ctx ends or any I/O fails once the frame
// exchange has started, the socket is closed and the returned error wraps
// ErrConnectionClosed.
func (s *Socket) Exchange(ctx context.Context, payload []byte) ([]byte, error) {
	select {
	case s.slot <- struct{}{}:
	case <-s.done:
		return nil, ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.slot }()

	if s.closed.Load() {
		return nil, ErrConnectionClosed
	}

	// zero deadline when ctx has none, which also clears a previous one
	deadline, _ := ctx.Deadline()
	_ = s.conn.SetDeadline(deadline)

	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetDeadline(aLongTimeAgo)
		close(fired)
	})
	defer func() {
		if !stop() {
			<-fired
		}
	}()

	if err := s.write(payload); err != nil {
		s.abort()
		return nil, s.ioError(ctx, "write", err)
	}

	data, _, err := wsutil.ReadServerData(s.rw)
	if err != nil {
		s.abort()
		return nil, s.ioError(ctx, "read", err)
	}

	return data, nil
}

func (s *Socket) write(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return wsutil.WriteClientMessage(s.conn, ws.OpText, payload)
}

func (s *Socket) ioError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}

	return fmt.Errorf("%w: %s: %w", ErrConnectionClosed, op, err)
}

// abort drops the connection without a close frame. Used when the framing
// state is unknown.
func (s *Socket) abort() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		s.closeErr = s.conn.Close()
	})
}

// Closed reports whether the socket can no longer be used.
func (s *Socket) Closed() bool {
	return s.closed.Load()
}

// Done is closed once the socket is closed.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

// Close sends a normal closure frame and closes the connection. An exchange
// still in flight after closeGracePeriod is cut off.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)

		timer := time.NewTimer(closeGracePeriod)
		defer timer.Stop()

		select {
		case s.slot <- struct{}{}:
			s.writeMu.Lock()
			_ = s.conn.SetWriteDeadline(time.Now().Add(closeGracePeriod))
			body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "client closing")
			frame := ws.MaskFrameInPlace(ws.NewCloseFrame(body))
			if err := ws.WriteFrame(s.conn, frame); err != nil {
				s.logger.Debug("failed to send close frame", "error", err)
			}
			s.writeMu.Unlock()
		case <-timer.C:
			s.logger.Warn("closing socket with exchange in flight", "remote_addr", s.conn.RemoteAddr())
		}

		s.closeErr = s.conn.Close()
	})

	return s.closeErr
}
