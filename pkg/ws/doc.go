// Package ws implements the websocket transport of a TDB client:
//   - building the authenticated upgrade request (BuildHandshake)
//   - dialing and upgrading by hand so every header is sent as built (Connector)
//   - one request/response exchange at a time per socket (Socket)
//   - a TDB-compatible server for development and tests (Server)
//
// # Connecting
//
//	req, err := ws.BuildHandshake(ws.ConnectionParameters{
//	    URL:      "ws://localhost:7085",
//	    DBName:   "shop",
//	    Schema:   schemaText,
//	    Username: "alice",
//	    Password: "secret",
//	})
//	sock, err := ws.NewConnector(ws.DefaultConnectorConfig()).Dial(ctx, req)
//	defer sock.Close()
//
// # Handshake
//
// The request carries the credentials as a plain header, not HTTP basic auth:
//
//	GET /?db=shop&schema=... HTTP/1.1
//	Authorization: alice:secret
//	Sec-WebSocket-Key: <16 random bytes, base64>
//
// The server must answer 101 with "Upgrade: websocket", "Connection: Upgrade"
// and a Sec-WebSocket-Accept matching the nonce. Anything else fails with a
// *HandshakeError carrying the status and headers plus up to 1 KiB of the body.
//
// # Messages
//
// Requests are JSON text frames, one response frame per request:
//
//	{"action": "insert", "table": "users", "data": {"name": "bob"}}
//
// The response is any JSON value. Numbers are decoded as json.Number. A body
// of the form {"error": "..."} is reported by Response.ServerError.
//
// # Exchanges
//
// A Socket admits one Exchange at a time; later callers wait their turn:
//
//	payload, _ := ws.EncodeRequest(&ws.Request{Action: ws.ActionSelect, Table: "users"})
//	data, err := sock.Exchange(ctx, payload)
//	resp, err := ws.DecodeResponse(data)
//
// A caller whose context ends while waiting gets ctx.Err() and the socket
// stays usable. Once the frame is written, cancellation or any I/O error
// closes the socket and the error wraps ErrConnectionClosed.
//
// # Errors
//
// Connect failures wrap ErrInvalidEndpoint, ErrNetwork, ErrTimeout or
// ErrHandshakeRejected; codec failures wrap ErrSerialization. Test with
// errors.Is; the underlying cause stays in the chain.
//
// # TLS
//
// wss endpoints use ConnectorConfig.TLS, or the system roots when it is nil.
// TLSConfigFromEnv reads base64 PEM material from TDB_TLS_CA, TDB_TLS_CERT
// and TDB_TLS_KEY:
//
//	material, err := ws.TLSConfigFromEnv()
//	cfg := ws.DefaultConnectorConfig()
//	cfg.TLS, err = material.Build()
//
// # Server
//
// Server speaks the same protocol for development and tests:
//
//	cfg := ws.DefaultServerConfig()
//	cfg.Authorize = ws.StaticCredentials("alice", "secret")
//	server := ws.NewServer(cfg)
//	server.HandleDefault(ws.EchoHandler)
//	http.ListenAndServe(":7085", server)
package ws
