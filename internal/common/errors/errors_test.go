package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"foreign", errors.New("boom"), "boom"},
		{"unauthorized", Unauthorized(), "unauthorized"},
		{"invalid token", InvalidToken(), "invalid token"},
		{"missing param", MissingParam("workspaceId"), "missing `workspaceId`"},
		{"not found", NotFound("session not found"), "session not found"},
		{"process io with cause", ProcessIO("failed to write to claude stdin", errors.New("broken pipe")), "failed to write to claude stdin: broken pipe"},
		{"process io message only", ProcessIO("Claude CLI failed to run", nil), "Claude CLI failed to run"},
		{"wrapped app error", fmt.Errorf("outer: %w", NotFound("workspace not found")), "workspace not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestKindOfAndWrap(t *testing.T) {
	base := Timeout("timed out", nil)
	wrapped := Wrap(base, "version probe")

	assert.Equal(t, KindTimeout, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindTimeout))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Nil(t, Wrap(nil, "ignored"))
	assert.True(t, IsNotFound(fmt.Errorf("ctx: %w", NotFound("x"))))
}
