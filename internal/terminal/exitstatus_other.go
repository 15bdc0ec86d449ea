//go:build !unix

package terminal

import "os"

func mapExitStatus(state *os.ProcessState, waitErr error) *ExitStatus {
	if state == nil {
		return &ExitStatus{}
	}

	code := state.ExitCode()
	return &ExitStatus{ExitCode: &code}
}
