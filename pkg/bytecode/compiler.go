// Package bytecode drives the distribution's own Python interpreter as a
// long-lived child process to compile source to bytecode: spawned once
// per build, fed every staged request in a single batch, and reaped on
// every exit path via scoped acquisition.
package bytecode

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/replicate/pyrepack/pkg/procgroup"
	"github.com/replicate/pyrepack/pkg/repackerr"
)

//go:embed driver.py.tmpl
var driverSource []byte

// Request is one staged (name, source, optimize) triple to compile.
type Request struct {
	Name          string
	Source        []byte
	OptimizeLevel int
}

// Result pairs a request's name with its compiled bytecode.
type Result struct {
	Name     string
	Bytecode []byte
}

// CompileError is the BytecodeCompileError taxonomy entry: it reports
// any failure to obtain bytecode for a named request, whether the driver
// itself reported a SyntaxError-style message during compile(), or the
// driver child exited or its pipe failed before every request was
// answered. Callers (pkg/stage, pkg/frozenimport) see one error type for
// "this named module's bytecode never arrived," regardless of which of
// those two failure modes produced it.
type CompileError struct {
	Name    string
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("failed to compile %s: %s", e.Name, e.Message)
}

func (e *CompileError) RepackError() {}

// Compiler owns the long-lived driver child. The zero value is not
// usable; construct with New.
type Compiler struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	scratch string // temp dir holding the extracted driver script
	mu      sync.Mutex
	closed  bool

	// OnProgress, if set, is called after every response is read during
	// CompileBatch with the count of requests completed so far and the
	// batch total, so a caller (pkg/engine) can drive a progress bar over
	// what is typically the longest-running step of a cold build.
	OnProgress func(done, total int)
}

// New spawns pythonExe running the embedded driver script, piping its
// stdin/stdout. The caller must call Close exactly once, on every exit
// path, to guarantee the child is reaped.
func New(pythonExe string) (*Compiler, error) {
	scratch, err := os.MkdirTemp("", "pyrepack-bytecode-")
	if err != nil {
		return nil, repackerr.NewIoError("mkdtemp", "", err)
	}

	scriptPath := filepath.Join(scratch, "driver.py")
	if err := os.WriteFile(scriptPath, driverSource, 0o644); err != nil {
		os.RemoveAll(scratch)
		return nil, repackerr.NewIoError("write", scriptPath, err)
	}

	cmd := exec.Command(pythonExe, scriptPath)
	procgroup.Set(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.RemoveAll(scratch)
		return nil, &repackerr.SubprocessError{Command: cmd.Args, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		os.RemoveAll(scratch)
		return nil, &repackerr.SubprocessError{Command: cmd.Args, Err: err}
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		os.RemoveAll(scratch)
		return nil, &repackerr.SubprocessError{Command: cmd.Args, Err: err}
	}

	return &Compiler{cmd: cmd, stdin: stdin, stdout: stdout, scratch: scratch}, nil
}

// Close terminates the driver child and removes its scratch directory.
// Safe to call more than once.
func (c *Compiler) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.stdin.Close()
	procgroup.Kill(c.cmd)
	err := c.cmd.Wait()
	os.RemoveAll(c.scratch)
	return err
}

// CompileBatch sends every request in order and returns one Result per
// request in the same order, or a CompileError naming the first request
// that failed. This is the only entry point: the driver is never asked
// to compile speculatively, only the final, already-filtered request set
// (see pkg/stage), since bytecode generation is the most expensive step
// in a cold build.
func (c *Compiler) CompileBatch(requests []Request) ([]Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("bytecode compiler already closed")
	}

	for _, req := range requests {
		if err := writeFrame(c.stdin, req); err != nil {
			return nil, &CompileError{Name: req.Name, Message: fmt.Sprintf("writing request: %v", err)}
		}
	}

	results := make([]Result, 0, len(requests))
	for _, req := range requests {
		ok, payload, err := readFrame(c.stdout)
		if err != nil {
			return nil, &CompileError{Name: req.Name, Message: fmt.Sprintf("driver exited before returning a result: %v", err)}
		}
		if !ok {
			return nil, &CompileError{Name: req.Name, Message: string(payload)}
		}
		results = append(results, Result{Name: req.Name, Bytecode: payload})

		if c.OnProgress != nil {
			c.OnProgress(len(results), len(requests))
		}
	}

	return results, nil
}

func writeFrame(w io.Writer, req Request) error {
	if err := writeU32(w, uint32(len(req.Name))); err != nil {
		return err
	}
	if err := writeU32(w, uint32(req.OptimizeLevel)); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(req.Source))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, req.Name); err != nil {
		return err
	}
	if _, err := w.Write(req.Source); err != nil {
		return err
	}
	return nil
}

func readFrame(r io.Reader) (ok bool, payload []byte, err error) {
	okWord, err := readU32(r)
	if err != nil {
		return false, nil, err
	}
	payloadLen, err := readU32(r)
	if err != nil {
		return false, nil, err
	}
	payload = make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return false, nil, err
	}
	return okWord == 1, payload, nil
}

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
