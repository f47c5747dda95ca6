//go:build !windows

package browser

import "syscall"

// killProcessGroup kills a process and all its children by sending SIGKILL
// to the process group (negative PID).
func killProcessGroup(pid int) {
	// Best-effort; launcher.Kill already ran
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
