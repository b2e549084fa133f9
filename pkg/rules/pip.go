package rules

import (
	"os"
	"os/exec"

	"github.com/replicate/pyrepack/pkg/procgroup"
	"github.com/replicate/pyrepack/pkg/repackerr"
)

// pipInstall runs "<python> -m pip --disable-pip-version-check install
// --target <tmp> <package>" into a scoped temp directory, returning the
// directory so the caller can scan it. The directory is the caller's to
// remove; every exit path in resolvePipInstallSimple
// removes it, matching "temp directory is cleaned on every exit path".
// The child runs in its own process group, exactly like the bytecode
// compiler driver, so a pip resolve that hangs or spawns its own build
// children can be reaped as a unit rather than leaking orphans.
func pipInstall(pythonExe, pkg string) (tmpDir string, cleanup func(), err error) {
	tmpDir, err = os.MkdirTemp("", "pyrepack-pip-")
	if err != nil {
		return "", nil, repackerr.NewIoError("mkdtemp", "", err)
	}
	cleanup = func() { os.RemoveAll(tmpDir) }

	cmd := exec.Command(pythonExe, "-m", "pip", "--disable-pip-version-check", "install", "--target", tmpDir, pkg)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	procgroup.Set(cmd)

	runErr := cmd.Run()
	procgroup.Kill(cmd)
	if runErr != nil {
		cleanup()
		return "", nil, &repackerr.SubprocessError{Command: cmd.Args, Err: runErr}
	}

	return tmpDir, cleanup, nil
}
