package memguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChargeUnderLimit(t *testing.T) {
	g := NewMemGuard()
	require.NoError(t, g.Charge(1024))
	assert.Equal(t, int64(1024), g.Used())
}

func TestChargeOverLimitFails(t *testing.T) {
	g := NewMemGuard()
	require.NoError(t, g.Charge(MemoryLimitBytes))
	err := g.Charge(1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory limit exceeded")
}

func TestChargeAccumulates(t *testing.T) {
	g := NewMemGuard()
	require.NoError(t, g.Charge(100))
	require.NoError(t, g.Charge(200))
	assert.Equal(t, int64(300), g.Used())
}
