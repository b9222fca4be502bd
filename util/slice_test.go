package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReversed(t *testing.T) {
	s := []int{1, 2, 3}
	require.Equal(t, []int{3, 2, 1}, Reversed(s))
	require.Equal(t, []int{1, 2, 3}, s)
	require.Empty(t, Reversed[int](nil))
}

func TestClipSlice(t *testing.T) {
	s := make([]int, 2, 10)
	c := ClipSlice(s)
	require.Equal(t, 2, cap(c))
}

func TestDedupe(t *testing.T) {
	require.Equal(t, []string{"dev", "default"}, Dedupe([]string{"dev", "default", "dev"}))
}
