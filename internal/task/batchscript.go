package task

import (
	"io"
	"os"
	"runtime"

	"github.com/distr1/button/internal/res"
	"golang.org/x/xerrors"
)

// BatchScript writes Contents to a temporary script file and executes it
// with the platform shell (cmd.exe /C on Windows, /bin/sh -e elsewhere),
// deleting the script once the process exits. No input/output detection is
// applied — batch scripts are treated as opaque, like DetectNone commands.
type BatchScript struct {
	Contents string
	Cwd      string
	Env      map[string]string
	Display  string
}

func (b BatchScript) Kind() Kind { return KindBatchScript }

func (b BatchScript) KnownInputs() []res.Resource {
	if b.Cwd != "" {
		return []res.Resource{res.Dir(b.Cwd)}
	}
	return nil
}

func (b BatchScript) KnownOutputs() []res.Resource { return nil }

func (b BatchScript) String() string {
	if b.Display != "" {
		return b.Display
	}
	return "batch-script"
}

func (b BatchScript) Key() string {
	return "batch-script\x1f" + b.Contents + "\x1f" + b.Cwd + "\x1f" + envKey(b.Env)
}

func (b BatchScript) Execute(root string, log io.Writer) (Detected, error) {
	ext := ".sh"
	if runtime.GOOS == "windows" {
		ext = ".bat"
	}
	f, err := os.CreateTemp("", "button-script-*"+ext)
	if err != nil {
		return Detected{}, xerrors.Errorf("task: batch-script temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(b.Contents); err != nil {
		f.Close()
		return Detected{}, xerrors.Errorf("task: batch-script write: %w", err)
	}
	f.Close()
	if runtime.GOOS != "windows" {
		if err := os.Chmod(path, 0755); err != nil {
			return Detected{}, xerrors.Errorf("task: batch-script chmod: %w", err)
		}
	}

	var p Process
	if runtime.GOOS == "windows" {
		p = Process{Program: "cmd.exe", Args: []string{"/C", path}, Cwd: b.Cwd, Env: b.Env}
	} else {
		p = Process{Program: "/bin/sh", Args: []string{"-e", path}, Cwd: b.Cwd, Env: b.Env}
	}
	return runPlain(p, root, log)
}
