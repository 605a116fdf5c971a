package ws

import (
	"bytes"
	"encoding/json"
)

// Action names the operation a request asks the server to perform.
type Action string

// Actions understood by TDB servers. Any other non-empty action is sent
// unchanged.
const (
	ActionInsert Action = "insert"
	ActionSelect Action = "select"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Request is the envelope sent over a registered connection.
type Request struct {
	Action Action         `json:"action"`
	Table  string         `json:"table"`
	Data   map[string]any `json:"data"`
}

// Response is a single response frame.
type Response struct {
	Raw   json.RawMessage
	Value any
}

// Unmarshal decodes the raw response JSON into v.
func (r *Response) Unmarshal(v any) error {
	return json.Unmarshal(r.Raw, v)
}

// String returns the response JSON as received.
func (r *Response) String() string {
	return string(r.Raw)
}

// Indent returns the response JSON indented for display.
func (r *Response) Indent() string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.Raw, "", "  "); err != nil {
		return string(r.Raw)
	}

	return buf.String()
}
