//go:build unix

package procgroup

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Set puts cmd in its own process group so Kill can deliver SIGKILL to it
// and any grandchildren it may have spawned, rather than just the direct
// child.
func Set(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// Kill sends SIGKILL to the whole process group rooted at cmd's pid.
func Kill(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
}
