package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// EncodeRequest renders req as one JSON text frame.
func EncodeRequest(req *Request) ([]byte, error) {
	if req.Action == "" {
		return nil, fmt.Errorf("%w: empty action", ErrSerialization)
	}

	wire := *req
	if wire.Data == nil {
		wire.Data = map[string]any{}
	}

	data, err := json.Marshal(&wire)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	return data, nil
}

// DecodeRequest is the server side counterpart of EncodeRequest.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	if req.Action == "" {
		return nil, fmt.Errorf("%w: empty action", ErrSerialization)
	}

	return &req, nil
}

// DecodeResponse parses a response frame. Numbers are kept as json.Number.
func DecodeResponse(data []byte) (*Response, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrSerialization)
	}

	var v any

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after response", ErrSerialization)
	}

	return &Response{
		Raw:   json.RawMessage(bytes.Clone(data)),
		Value: v,
	}, nil
}

type errorBody struct {
	Error string `json:"error"`
}

func encodeError(err error) []byte {
	data, mErr := json.Marshal(errorBody{Error: err.Error()})
	if mErr != nil {
		return []byte(`{"error":"internal error"}`)
	}

	return data
}

// ServerError extracts an {"error": "..."} body, if the response is one.
func (r *Response) ServerError() error {
	m, ok := r.Value.(map[string]any)
	if !ok || len(m) != 1 {
		return nil
	}

	msg, ok := m["error"].(string)
	if !ok {
		return nil
	}

	return errors.New(msg)
}
