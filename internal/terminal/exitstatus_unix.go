//go:build unix

package terminal

import (
	"os"
	"syscall"
)

func mapExitStatus(state *os.ProcessState, waitErr error) *ExitStatus {
	if state == nil {
		return &ExitStatus{}
	}

	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		name := ws.Signal().String()
		return &ExitStatus{Signal: &name}
	}

	code := state.ExitCode()
	return &ExitStatus{ExitCode: &code}
}
