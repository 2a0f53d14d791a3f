package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError_Error(t *testing.T) {
	err := NewStreamNotFoundError("K")
	assert.Equal(t, "STREAM_NOT_FOUND: synchronized draw for undeclared stream (key=K)", err.Error())

	term := NewSessionTerminatedError(err)
	assert.Contains(t, term.Error(), "SESSION_TERMINATED")
	assert.Contains(t, term.Error(), "key=K")
	assert.ErrorIs(t, term, err)
}

func TestIsContractViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"stream not found", NewStreamNotFoundError("K"), true},
		{"unsynced mint", NewUnsyncedMintError(), true},
		{"terminated", NewSessionTerminatedError(NewUnsyncedMintError()), true},
		{"no session", NewNoSessionError("op"), false},
		{"wrapped", fmt.Errorf("outer: %w", NewUnsyncedMintError()), true},
		{"plain", errors.New("plain"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsContractViolation(tt.err))
		})
	}
}

func TestHasCode_WalksCause(t *testing.T) {
	err := fmt.Errorf("tick: %w", NewSessionTerminatedError(NewStreamNotFoundError("K")))
	assert.True(t, IsSessionTerminated(err))
	assert.True(t, IsStreamNotFound(err))
	assert.False(t, IsNoSession(err))
}
