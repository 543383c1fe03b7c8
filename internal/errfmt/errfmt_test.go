package errfmt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatNil(t *testing.T) {
	assert.Equal(t, "", Format(nil))
}

func TestFormatPlainError(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, "boom", Format(err))
}

func TestFormatCallbackErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("underlying failure")
	err := &CallbackError{Cause: cause, Traceback: "stack:1"}
	assert.Equal(t, "underlying failure\nstack:1", Format(err))
}

func TestCallbackErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying failure")
	err := &CallbackError{Cause: cause}
	assert.ErrorIs(t, err, cause)
}

func TestWithMessage(t *testing.T) {
	assert.Equal(t, "base", WithMessage("base", ""))
	assert.Equal(t, "base: extra", WithMessage("base", "extra"))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a b c", Join("a", "b", "c"))
}
