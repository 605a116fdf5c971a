package ws

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// HeaderAuthorization carries "{username}:{password}" in plain text, not HTTP
// basic auth. HeaderWebSocketKey carries the per-handshake nonce.
const (
	websocketGUID    = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	websocketVersion = "13"

	HeaderAuthorization = "Authorization"
	HeaderWebSocketKey  = "Sec-WebSocket-Key"
)

// ConnectionParameters are the inputs of a single connect call.
type ConnectionParameters struct {
	URL      string
	DBName   string
	Schema   string
	Username string
	Password string
}

// UpgradeRequest is a fully built websocket upgrade request. Building it
// performs no I/O.
type UpgradeRequest struct {
	Method string
	URL    *url.URL
	Proto  string
	Header http.Header
	// Key is the Sec-WebSocket-Key nonce sent with the request.
	Key string
}

// BuildHandshake constructs the upgrade request for params: db and schema
// become query parameters of the endpoint, the credentials go to the
// authorization header as "{username}:{password}".
func BuildHandshake(params ConnectionParameters) (*UpgradeRequest, error) {
	u, err := ParseEndpoint(params.URL)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	q.Set("db", params.DBName)
	q.Set("schema", params.Schema)
	u.RawQuery = q.Encode()

	key, err := newChallengeKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate handshake key: %w", err)
	}

	h := make(http.Header)
	h.Set(HeaderAuthorization, params.Username+":"+params.Password)
	h.Set(HeaderWebSocketKey, key)
	h.Set("Upgrade", "websocket")
	h.Set("Connection", "Upgrade")
	h.Set("Sec-WebSocket-Version", websocketVersion)

	return &UpgradeRequest{
		Method: http.MethodGet,
		URL:    u,
		Proto:  "HTTP/1.1",
		Header: h,
		Key:    key,
	}, nil
}

// ParseEndpoint validates a ws:// or wss:// endpoint: the scheme must be ws
// or wss, the host must be present and an explicit port must fit in 16 bits.
func ParseEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}

	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, raw)
	}

	if port := u.Port(); port != "" {
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			return nil, fmt.Errorf("%w: invalid port %q", ErrInvalidEndpoint, port)
		}
	}

	return u, nil
}

func (r *UpgradeRequest) httpRequest(ctx context.Context) *http.Request {
	req := &http.Request{
		Method:     r.Method,
		URL:        r.URL,
		Proto:      r.Proto,
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     r.Header.Clone(),
		Host:       r.URL.Host,
	}

	return req.WithContext(ctx)
}

// Redacted renders the target URL for logs, without user info and without
// the schema text.
func (r *UpgradeRequest) Redacted() string {
	u := *r.URL
	u.User = nil

	q := u.Query()
	q.Del("schema")
	u.RawQuery = q.Encode()

	return u.String()
}

func newChallengeKey() (string, error) {
	p := make([]byte, 16)
	if _, err := rand.Read(p); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(p), nil
}

func computeAcceptKey(challengeKey string) string {
	h := sha1.New()
	h.Write([]byte(challengeKey + websocketGUID))

	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
