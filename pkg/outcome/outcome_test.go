package outcome

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSuccess(t *testing.T) {
	assert.True(t, Duration(1.5).IsSuccess())
	assert.False(t, Timeout().IsSuccess())
	assert.False(t, Errorf("boom").IsSuccess())
}

func TestFromError(t *testing.T) {
	o := FromError(errors.New("element not found"))
	require.Equal(t, KindError, o.Kind)
	assert.Equal(t, "element not found", o.Message)

	o = FromError(nil)
	assert.Equal(t, KindError, o.Kind)
	assert.NotEmpty(t, o.Message)
}

func TestString(t *testing.T) {
	assert.Equal(t, "1.50s", Duration(1.5).String())
	assert.Equal(t, "timeout", Timeout().String())
	assert.Equal(t, "error: boom", Errorf("boom").String())
}

func TestIsFatal(t *testing.T) {
	err := Fatal("rate limited by identity provider")
	assert.True(t, IsFatal(err))
	assert.True(t, IsFatal(fmt.Errorf("login: %w", err)))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.False(t, IsFatal(nil))
}

func TestFatalityMessage(t *testing.T) {
	err := Fatal("throttled after %d tries", 2)
	assert.Equal(t, "fatal: throttled after 2 tries", err.Error())
}
