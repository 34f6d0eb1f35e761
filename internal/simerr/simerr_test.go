package simerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	errDebt := New(ErrInvalidState, "debt is not active")

	tests := []struct {
		name string
		err  error
		want error
		code string
	}{
		{"direct sentinel", ErrNotFound, ErrNotFound, "NOT_FOUND"},
		{"specialized", errDebt, ErrInvalidState, "INVALID_STATE"},
		{"wrapped", fmt.Errorf("repay: %w", errDebt), ErrInvalidState, "INVALID_STATE"},
		{"insufficient", New(ErrInsufficientResource, "broke"), ErrInsufficientResource, "INSUFFICIENT_RESOURCE"},
		{"unclassified", errors.New("boom"), nil, "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
			assert.Equal(t, tt.code, KindName(tt.err))
		})
	}
}

func TestNewKeepsMessage(t *testing.T) {
	err := New(ErrNotFound, "agent not found")
	assert.Equal(t, "agent not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrInvalidState))
}
