// Package rpc provides the line-delimited JSON-RPC framing spoken by the
// daemon and the websocket gateway.
package rpc

import (
	"bytes"
	"encoding/json"
)

// Request is one decoded client request. ID is nil when the client did not
// send a non-negative integer id; such requests get no response.
type Request struct {
	ID     *uint64
	Method string
	Params Params
}

// Response answers a request. Exactly one of Result and Error is set.
type Response struct {
	ID     uint64        `json:"id"`
	Result any           `json:"result,omitempty"`
	Error  *ErrorPayload `json:"error,omitempty"`
}

// ErrorPayload carries a request failure.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Notification is a server push without an id.
type Notification struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

// ParseRequest decodes a request line. Method defaults to "" and params to
// null.
func ParseRequest(data []byte) (*Request, error) {
	var raw struct {
		ID     json.RawMessage `json:"id"`
		Method json.RawMessage `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	req := &Request{}
	var id uint64
	if len(raw.ID) > 0 && json.Unmarshal(raw.ID, &id) == nil {
		req.ID = &id
	}
	_ = json.Unmarshal(raw.Method, &req.Method)

	if len(raw.Params) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw.Params))
		dec.UseNumber()
		var value any
		if err := dec.Decode(&value); err == nil {
			req.Params = Params{value: value}
		}
	}
	return req, nil
}

// NewResult builds a success response.
func NewResult(id uint64, result any) *Response {
	if result == nil {
		result = struct{}{}
	}
	return &Response{ID: id, Result: result}
}

// NewError builds an error response.
func NewError(id uint64, message string) *Response {
	return &Response{ID: id, Error: &ErrorPayload{Message: message}}
}

// EncodeNotification renders a notification frame. params may be a
// json.RawMessage that is embedded unchanged.
func EncodeNotification(method string, params any) ([]byte, error) {
	return json.Marshal(Notification{Method: method, Params: params})
}
