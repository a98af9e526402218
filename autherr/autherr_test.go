package autherr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageWrapsAndPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Storage("audit.append", cause)

	assert.True(t, IsStorage(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "audit.append")
	assert.Nil(t, Storage("noop", nil))
}

func TestStorageKeepsClassifiedErrors(t *testing.T) {
	err := Storage("identity.update", fmt.Errorf("update: %w", ErrStaleAccount))
	assert.True(t, IsConflict(err))
	assert.ErrorIs(t, err, ErrStaleAccount)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindSystem, KindOf(errors.New("boom")))
	assert.Equal(t, KindValidation, KindOf(Validation("login", "email required")))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("wrapped: %w", ErrSessionNotFound)))
}

func TestSentinelMatchIgnoresWrappingOp(t *testing.T) {
	err := &Error{Kind: KindNotFound, Op: "identity.find", Message: "account not found"}
	assert.False(t, errors.Is(err, ErrAccountNotFound), "op-tagged errors are distinct from sentinels")
	assert.True(t, errors.Is(fmt.Errorf("x: %w", ErrAccountNotFound), ErrAccountNotFound))
}
