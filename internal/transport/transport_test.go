package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
	}{
		{"no connection", NoConnection(errors.New("dial refused")), true},
		{"timeout", Timeout(context.DeadlineExceeded), true},
		{"server 500", ServerError(500), true},
		{"server 502", ServerError(502), true},
		{"server 429", ServerError(429), true},
		{"server 400", ServerError(400), false},
		{"server 404", ServerError(404), false},
		{"server 499", ServerError(499), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.Retryable())
		})
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NoConnection(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection")

	srv := ServerError(503)
	assert.Contains(t, srv.Error(), "503")
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"deadline exceeded", context.DeadlineExceeded, ErrTimeout},
		{"wrapped deadline", fmt.Errorf("do: %w", context.DeadlineExceeded), ErrTimeout},
		{"net timeout", &fakeNetError{timeout: true}, ErrTimeout},
		{"net non-timeout", &fakeNetError{}, ErrNoConnection},
		{"plain error", errors.New("dns failure"), ErrNoConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.kind, got.Kind)
			assert.True(t, got.Retryable())
		})
	}

	assert.Nil(t, ClassifyError(nil))
}

type fakeNetError struct {
	timeout bool
}

func (e *fakeNetError) Error() string   { return "fake net error" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return false }
