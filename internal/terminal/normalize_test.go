package terminal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCommandStructuredArgsWin(t *testing.T) {
	args := []string{"x.java"}
	program, gotArgs, mode := normalizeCommand("javac", &args)
	require.Equal(t, "javac", program)
	require.Equal(t, []string{"x.java"}, gotArgs)
	require.Equal(t, "structured", mode)
}

func TestNormalizeCommandSplitsShellWords(t *testing.T) {
	program, args, mode := normalizeCommand("javac /tmp/x.java", nil)
	require.Equal(t, "javac", program)
	require.Equal(t, []string{"/tmp/x.java"}, args)
	require.Equal(t, "shlex", mode)
}

func TestNormalizeCommandUsesShellForOperators(t *testing.T) {
	program, args, mode := normalizeCommand("cd /tmp && ls", nil)
	require.Equal(t, "/bin/bash", program)
	require.Equal(t, []string{"-lc", "cd /tmp && ls"}, args)
	require.Equal(t, "shell", mode)
}
