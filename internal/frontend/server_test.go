package frontend

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRemovePIDFileIfOwnedOnlyRemovesOwnPID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boss-engine.pid")

	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("%d\n", 999999999)), 0644))
	removePIDFileIfOwned(path)
	_, err := os.Stat(path)
	require.NoError(t, err, "a pid file naming another process must not be removed")

	require.NoError(t, writePIDFile(path))
	removePIDFileIfOwned(path)
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "a pid file naming this process must be removed")
}

func TestRemoveStaleSocketRemovesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boss-engine.sock")

	require.NoError(t, os.WriteFile(path, []byte{}, 0644))
	require.NoError(t, removeStaleSocket(path))
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, removeStaleSocket(path), "missing socket path is not an error")
}
