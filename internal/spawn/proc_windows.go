//go:build windows

package spawn

import "os/exec"

// Windows has no process groups in the POSIX sense; the immediate child is
// killed and grandchildren are left to the OS.
func setProcessGroup(cmd *exec.Cmd) {}

func killTree(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
