package waiter

import (
	"errors"
	"testing"

	"github.com/dozm/waiter/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recoverError(fn func()) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = asError(p)
		}
	}()
	fn()
	return nil
}

func TestDeferred_RoundTrip(t *testing.T) {
	d := NewDeferred[string]()

	err := recoverError(func() { d.Get() })
	var ue *errorx.UninitializedDeferredError
	require.True(t, errors.As(err, &ue))

	_, ok := d.TryGet()
	assert.False(t, ok)
	assert.False(t, d.IsInitialized())

	d.Init("v")
	assert.Equal(t, "v", d.Get())
	assert.True(t, d.IsInitialized())

	err = recoverError(func() { d.Init("w") })
	var ae *errorx.DeferredAlreadyInitializedError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "v", d.Get())

	require.Error(t, d.TryInit("x"))
}

func TestDeferred_ZeroValueUsable(t *testing.T) {
	var d Deferred[int]
	d.Init(0)
	v, ok := d.TryGet()
	assert.True(t, ok)
	assert.Equal(t, 0, v)
	assert.Equal(t, "Deferred[int](initialized)", d.String())
}

func TestDeferred_InitAny(t *testing.T) {
	d := NewDeferred[ticker]()
	require.NoError(t, d.initAny(nil))
	v, ok := d.TryGet()
	assert.True(t, ok)
	assert.Nil(t, v)

	s := NewDeferred[*clock]()
	var te *errorx.TypeIdentityError
	require.True(t, errors.As(s.initAny("clock"), &te))
	assert.False(t, s.IsInitialized())
}
