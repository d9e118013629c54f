package errno

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrnoIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("sign: %w", ErrDeviceTimeout.WithMessage("scan budget exhausted"))

	assert.True(t, errors.Is(wrapped, ErrDeviceTimeout))
	assert.False(t, errors.Is(wrapped, ErrDeviceDisconnected))
	assert.True(t, IsRetryable(wrapped))
}

func TestErrnoWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := ErrNetwork.Wrap(cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, "Network unavailable: dial tcp: connection refused", err.Error())

	// 原始哨兵不应被修改
	assert.Equal(t, "Network unavailable", ErrNetwork.Error())
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"nil", nil, 0},
		{"errno", ErrMalformedAddress, 20102},
		{"wrapped errno", fmt.Errorf("encode: %w", ErrMalformedAddress), 20102},
		{"plain", errors.New("boom"), InternalServerError.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := Decode(tt.err)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}
