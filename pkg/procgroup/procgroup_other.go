//go:build !unix

package procgroup

import "os/exec"

func Set(cmd *exec.Cmd) {}

func Kill(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
