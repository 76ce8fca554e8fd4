package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLifecycle(t *testing.T) {
	r := New(zaptest.NewLogger(t))

	id := r.Register("sweep")
	e, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, e.Status)

	require.NoError(t, r.Start(id))
	e, _ = r.Get(id)
	assert.Equal(t, StatusRunning, e.Status)
	assert.False(t, e.StartedAt.IsZero())

	require.NoError(t, r.Complete(id))
	e, _ = r.Get(id)
	assert.Equal(t, StatusComplete, e.Status)
	assert.False(t, e.FinishedAt.IsZero())
}

func TestFailCapturesCause(t *testing.T) {
	r := New(zaptest.NewLogger(t))
	id := r.Register("sweep")
	require.NoError(t, r.Start(id))

	require.NoError(t, r.Fail(id, errors.New("redis unavailable")))
	e, _ := r.Get(id)
	assert.Equal(t, StatusFailed, e.Status)
	assert.Equal(t, "redis unavailable", e.Error)
}

func TestUnknownID(t *testing.T) {
	r := New(zaptest.NewLogger(t))
	_, err := r.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.Start("nope"), ErrNotFound)
}

func TestListOrdersByCreation(t *testing.T) {
	r := New(zaptest.NewLogger(t))
	first := r.Register("a")
	second := r.Register("b")

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].ID)
	assert.Equal(t, second, list[1].ID)
}
