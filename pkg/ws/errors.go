package ws

import (
	"errors"
	"fmt"
	"net/http"
)

// Errors returned by this package are wrapped so that errors.Is matches both
// the category below and the underlying cause.
var (
	// ErrInvalidEndpoint means the URL is not a usable ws:// or wss:// endpoint.
	ErrInvalidEndpoint   = errors.New("invalid endpoint")
	// ErrNetwork means the transport failed while dialing or upgrading.
	ErrNetwork           = errors.New("network error")
	// ErrHandshakeRejected means the server answered the upgrade with anything but a
	// valid 101. The concrete error is a *HandshakeError.
	ErrHandshakeRejected = errors.New("handshake rejected")
	// ErrTimeout means the handshake did not finish within the deadline.
	ErrTimeout           = errors.New("connect timeout")
	// ErrNotConnected means no connection is registered under the id.
	ErrNotConnected      = errors.New("not connected")
	// ErrConnectionLost means the connection failed during a request and was dropped.
	ErrConnectionLost    = errors.New("connection lost")
	// ErrSerialization means a request could not be encoded or a response decoded.
	ErrSerialization     = errors.New("serialization failure")
	// ErrConnectionClosed means the socket is closed; returned by Socket.Exchange.
	ErrConnectionClosed  = errors.New("connection closed")
	// ErrUnauthorized is what an Authorizer returns to reject an upgrade.
	ErrUnauthorized      = errors.New("unauthorized")
)

// HandshakeError describes an upgrade the server declined.
type HandshakeError struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       string
	Reason     string
}

func (e *HandshakeError) Error() string {
	msg := fmt.Sprintf("%s: status %s", ErrHandshakeRejected, e.Status)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	if e.Body != "" {
		msg += ": " + e.Body
	}

	return msg
}

// Unwrap makes errors.Is(err, ErrHandshakeRejected) hold.
func (e *HandshakeError) Unwrap() error {
	return ErrHandshakeRejected
}
