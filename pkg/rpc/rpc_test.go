package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantID     *uint64
		wantMethod string
	}{
		{name: "full", line: `{"id":7,"method":"ping","params":{}}`, wantID: ptr(7), wantMethod: "ping"},
		{name: "no id", line: `{"method":"ping"}`, wantMethod: "ping"},
		{name: "string id", line: `{"id":"7","method":"ping"}`, wantMethod: "ping"},
		{name: "negative id", line: `{"id":-1,"method":"ping"}`, wantMethod: "ping"},
		{name: "fractional id", line: `{"id":1.5,"method":"ping"}`, wantMethod: "ping"},
		{name: "missing method", line: `{"id":3}`, wantID: ptr(3)},
		{name: "non-string method", line: `{"id":3,"method":5}`, wantID: ptr(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, req.ID)
			assert.Equal(t, tt.wantMethod, req.Method)
		})
	}
}

func TestParseRequest_Invalid(t *testing.T) {
	_, err := ParseRequest([]byte(`{not json`))
	assert.Error(t, err)
}

func TestParams(t *testing.T) {
	req, err := ParseRequest([]byte(`{"id":1,"method":"x","params":{
		"workspaceId":"ws","limit":25,"big":5000000000,"neg":-2,
		"images":["a",3,"b"],"requestId":18446744073709551615,
		"target":{"type":"custom","instructions":"look"},"nothing":null}}`))
	require.NoError(t, err)
	p := req.Params

	s, err := p.String("workspaceId")
	require.NoError(t, err)
	assert.Equal(t, "ws", s)

	_, err = p.String("threadId")
	assert.EqualError(t, err, "missing `threadId`")
	_, err = p.String("limit")
	assert.EqualError(t, err, "missing `limit`")

	require.NotNil(t, p.OptionalUint32("limit"))
	assert.Equal(t, 25, *p.OptionalUint32("limit"))
	assert.Nil(t, p.OptionalUint32("big"))
	assert.Nil(t, p.OptionalUint32("neg"))
	assert.Nil(t, p.OptionalUint32("workspaceId"))

	id, err := p.Uint64("requestId")
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), id)
	_, err = p.Uint64("neg")
	assert.EqualError(t, err, "missing neg")

	assert.Equal(t, []string{"a", "b"}, p.StringArray("images"))
	assert.Nil(t, p.StringArray("absent"))

	_, ok := p.Value("nothing")
	assert.False(t, ok)

	var target struct {
		Type         string `json:"type"`
		Instructions string `json:"instructions"`
	}
	require.NoError(t, p.Decode("target", &target))
	assert.Equal(t, "custom", target.Type)
	assert.Equal(t, "look", target.Instructions)

	first, err := NewParams(map[string]any{"codex_bin": "/bin/c"}).FirstString("claude_bin", "codex_bin")
	require.NoError(t, err)
	assert.Equal(t, "/bin/c", first)
}

func TestParams_NotAnObject(t *testing.T) {
	p := NewParams("secret")
	_, err := p.String("workspaceId")
	assert.EqualError(t, err, "missing `workspaceId`")
	assert.Nil(t, p.OptionalString("workspaceId"))
	assert.Equal(t, "secret", p.AuthToken())
	assert.Equal(t, "tok", NewParams(map[string]any{"token": "tok"}).AuthToken())
	assert.Empty(t, NewParams(nil).AuthToken())
}

func TestDispatcher(t *testing.T) {
	d := NewDispatcher()
	d.RegisterFunc(MethodPing, func(_ context.Context, _ Params) (any, error) {
		return map[string]bool{"ok": true}, nil
	})
	assert.True(t, d.HasHandler(MethodPing))
	assert.Equal(t, []string{MethodPing}, d.Methods())

	result, err := d.Dispatch(context.Background(), MethodPing, Params{})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"ok": true}, result)

	_, err = d.Dispatch(context.Background(), "nope", Params{})
	assert.EqualError(t, err, "unknown method: nope")
	assert.True(t, errors.Is(err, ErrUnknownMethod))
}

func TestResponseEncoding(t *testing.T) {
	data, err := json.Marshal(NewResult(4, map[string]bool{"ok": true}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":4,"result":{"ok":true}}`, string(data))

	data, err = json.Marshal(NewError(4, "boom"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":4,"error":{"message":"boom"}}`, string(data))

	frame, err := EncodeNotification(MethodAppServerEvent, json.RawMessage(`{"workspace_id":"w"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"app-server-event","params":{"workspace_id":"w"}}`, string(frame))
}

func ptr(v uint64) *uint64 {
	return &v
}
