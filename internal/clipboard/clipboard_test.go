package clipboard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_ReadWrite(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("original")

	text, err := m.ReadText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "original", text)

	require.NoError(t, m.WriteText(ctx, "a@example.com"))
	require.NoError(t, m.WriteText(ctx, "b@example.com"))

	text, err = m.ReadText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", text)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, m.Writes())
}

func TestMemory_Fail(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("denied")
	m := NewMemory("")
	m.Fail = boom

	_, err := m.ReadText(ctx)
	var cerr *ClipboardError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "read", cerr.Op)
	assert.ErrorIs(t, err, boom)

	err = m.WriteText(ctx, "x")
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "write", cerr.Op)
	assert.Contains(t, err.Error(), "clipboard write failed")
}

func TestSystem_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var s System
	_, err := s.ReadText(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.WriteText(ctx, "x"), context.Canceled)
}
