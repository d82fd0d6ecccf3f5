//go:build windows

package runner

import "os/exec"

func configureCommandProcess(cmd *exec.Cmd) {}

// terminateProcess has no graceful variant on windows.
func terminateProcess(cmd *exec.Cmd) {
	killProcess(cmd)
}

func killProcess(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
