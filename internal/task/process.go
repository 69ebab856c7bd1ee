package task

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/distr1/button/internal/res"
	"golang.org/x/xerrors"
)

// devNull is the portable sentinel meaning "discard this stream", matching
// the button.json convention (§6): a string field holding "/dev/null" means
// discard regardless of host OS.
const devNull = "/dev/null"

// Process holds the parameters needed to spawn a child process, shared by
// the command and batch-script task variants.
type Process struct {
	Program string
	Args    []string
	Cwd     string // relative to root; empty means root itself
	Env     map[string]string
	Stdin   string // path, or "" for an empty stream
	Stdout  string // path; "" merges into the piped log; devNull discards
	Stderr  string // path; "" merges into the piped log; devNull discards
}

// KnownInputs reports the inputs deducible from the process parameters
// alone: the program itself, the stdin file (if not devNull), and the
// working directory.
func (p Process) KnownInputs() []res.Resource {
	var out []res.Resource
	out = append(out, res.File(p.Program))
	if p.Stdin != "" && p.Stdin != devNull {
		out = append(out, res.File(p.Stdin))
	}
	if p.Cwd != "" {
		out = append(out, res.Dir(p.Cwd))
	}
	if p.Stdout != "" && p.Stdout != devNull {
		if dir := filepath.Dir(p.Stdout); dir != "." {
			out = append(out, res.Dir(dir))
		}
	}
	if p.Stderr != "" && p.Stderr != devNull {
		if dir := filepath.Dir(p.Stderr); dir != "." {
			out = append(out, res.Dir(dir))
		}
	}
	return out
}

// KnownOutputs reports the outputs deducible from the process parameters
// alone: redirected stdout/stderr files.
func (p Process) KnownOutputs() []res.Resource {
	var out []res.Resource
	if p.Stdout != "" && p.Stdout != devNull {
		out = append(out, res.File(p.Stdout))
	}
	if p.Stderr != "" && p.Stderr != devNull {
		out = append(out, res.File(p.Stderr))
	}
	return out
}

// spawnResult carries the merged stdout+stderr reader (when not redirected
// to files) alongside the running command.
type spawnResult struct {
	cmd    *exec.Cmd
	reader io.ReadCloser // nil if both streams were redirected to files

	done     chan error // result of the single cmd.Wait() call
	waitOnce sync.Once
	waitErr  error
}

func (p Process) spawn(root string, argv []string) (*spawnResult, error) {
	program := p.Program
	if !filepath.IsAbs(program) {
		if resolved, err := exec.LookPath(program); err == nil {
			program = resolved
		}
	}

	cmd := exec.Command(program, argv...)
	cmd.Dir = root
	if p.Cwd != "" {
		cmd.Dir = filepath.Join(root, p.Cwd)
	}

	cmd.Env = os.Environ()
	for k, v := range p.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	if p.Stdin != "" && p.Stdin != devNull {
		f, err := os.Open(filepath.Join(root, p.Stdin))
		if err != nil {
			return nil, xerrors.Errorf("task: open stdin %s: %w", p.Stdin, err)
		}
		cmd.Stdin = f
	}

	var pipeReader io.ReadCloser
	needsPipe := false

	if p.Stdout == devNull {
		cmd.Stdout = nil
	} else if p.Stdout != "" {
		f, err := os.Create(filepath.Join(root, p.Stdout))
		if err != nil {
			return nil, xerrors.Errorf("task: create stdout %s: %w", p.Stdout, err)
		}
		cmd.Stdout = f
	} else {
		needsPipe = true
	}

	if p.Stderr == devNull {
		cmd.Stderr = nil
	} else if p.Stderr != "" {
		f, err := os.Create(filepath.Join(root, p.Stderr))
		if err != nil {
			return nil, xerrors.Errorf("task: create stderr %s: %w", p.Stderr, err)
		}
		cmd.Stderr = f
	} else {
		needsPipe = true
	}

	if needsPipe {
		r, w := io.Pipe()
		if p.Stdout == "" {
			cmd.Stdout = w
		}
		if p.Stderr == "" {
			cmd.Stderr = w
		}
		pipeReader = &pipeCloser{r, w}
	}

	if err := cmd.Start(); err != nil {
		return nil, xerrors.Errorf("task: spawn %s: %w", DisplayCommand(p.Program, p.Args), err)
	}

	// cmd.Wait() may only be called once; a single goroutine owns it and
	// fans the result out through done. When output is piped, that
	// goroutine also closes the write end so readers observe EOF.
	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		if pc, ok := pipeReader.(*pipeCloser); ok {
			pc.w.Close()
		}
		done <- err
	}()

	return &spawnResult{cmd: cmd, reader: pipeReader, done: done}, nil
}

// pipeCloser bundles the read/write ends of the merged-output pipe so the
// caller only sees a single io.ReadCloser.
type pipeCloser struct {
	*io.PipeReader
	w *io.PipeWriter
}

// wait blocks for process exit, returning the *exec.ExitError (or spawn-time
// error) if any. Safe to call any number of times.
func (s *spawnResult) wait() error {
	s.waitOnce.Do(func() { s.waitErr = <-s.done })
	return s.waitErr
}
