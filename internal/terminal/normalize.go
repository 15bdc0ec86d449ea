package terminal

import (
	"strings"

	"github.com/google/shlex"
)

var shellTokens = [...]string{"&&", "||", "|", ";", "$(", "`", ">", "<"}

// normalizeCommand resolves the launch vector for terminal/create. The
// precedence is normative: structured args win outright, then shell
// operators force a shell, then POSIX word-splitting, then a bare
// command with no args at all.
func normalizeCommand(rawCommand string, requestArgs *[]string) (program string, args []string, mode string) {
	if requestArgs != nil {
		return rawCommand, *requestArgs, "structured"
	}

	if commandUsesShellOperators(rawCommand) {
		return "/bin/bash", []string{"-lc", rawCommand}, "shell"
	}

	if parts, err := shlex.Split(rawCommand); err == nil && len(parts) > 0 {
		return parts[0], parts[1:], "shlex"
	}

	return rawCommand, nil, "raw"
}

func commandUsesShellOperators(command string) bool {
	for _, token := range shellTokens {
		if strings.Contains(command, token) {
			return true
		}
	}
	return false
}
