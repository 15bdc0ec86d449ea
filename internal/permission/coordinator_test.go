package permission

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveUnknownIDFails(t *testing.T) {
	c := NewCoordinator()
	require.False(t, c.Resolve("perm-1", true))
}

func TestResolveKnownIDOnce(t *testing.T) {
	c := NewCoordinator()
	id, wait := c.Register()

	require.True(t, c.Resolve(id, true))
	require.True(t, <-wait)

	require.False(t, c.Resolve(id, false), "a second resolve of the same id must fail")
}

func TestIDsAreMonotonic(t *testing.T) {
	c := NewCoordinator()
	first, _ := c.Register()
	second, _ := c.Register()
	require.Equal(t, "perm-1", first)
	require.Equal(t, "perm-2", second)
}
