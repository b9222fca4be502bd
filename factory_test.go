package waiter

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dozm/waiter/config"
	"github.com/stretchr/testify/require"
)

type readWriter struct {
	io.Reader
	io.Writer
}

func addReadWriter(cb ContainerBuilder) {
	Constructor[*readWriter](cb, func(r io.Reader, w io.Writer) *readWriter {
		return &readWriter{Reader: r, Writer: w}
	})
	Provides[io.ReadWriter, *readWriter](cb)
	Constructor[io.Reader](cb, func(s *config.Store) *strings.Reader {
		v, _, _ := s.GetString("input")
		return strings.NewReader(v)
	})
	Constructor[io.Writer](cb, func() *strings.Builder { return &strings.Builder{} })
}

func TestConstructor_ResolvesParameters(t *testing.T) {
	b := newBuilder(map[string]any{"input": "hello"})
	addReadWriter(b)
	c := b.MustBuild()

	rw := Get[io.ReadWriter](c)
	data, err := io.ReadAll(rw)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	_, err = rw.Write([]byte("out"))
	require.NoError(t, err)
	require.Equal(t, "out", Get[io.Writer](c).(*strings.Builder).String())
}

func TestConstructor_ReturnsError(t *testing.T) {
	b := newBuilder(nil)
	Constructor[*counter](b, func() (*counter, error) { return nil, errors.New("unavailable") })
	Constructor[string](b, func() (string, error) { return "ok", nil })
	c := b.MustBuild()

	_, err := TryGet[*counter](c)
	require.ErrorContains(t, err, "unavailable")
	require.Equal(t, "ok", Get[string](c))
}

func TestConstructor_DependenciesValidated(t *testing.T) {
	b := newBuilder(nil)
	Constructor[*readWriter](b, func(r io.Reader, w io.Writer) *readWriter {
		return &readWriter{Reader: r, Writer: w}
	})

	_, err := b.Build()
	require.Error(t, err)
}

func TestComponent_Instance(t *testing.T) {
	sb := &strings.Builder{}
	b := newBuilder(nil)
	Instance[io.Writer](b, sb)
	Instance(b, 3)
	c := b.MustBuild()

	require.Same(t, sb, Get[io.Writer](c))
	require.Equal(t, 3, Get[int](c))
	// an instance is the same value for fresh requests
	require.Same(t, sb, Create[io.Writer](c))
}
