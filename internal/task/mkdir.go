package task

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/distr1/button/internal/res"
	"golang.org/x/xerrors"
)

// Mkdir creates Path (and any missing parents) relative to the project
// root. Succeeding when the directory already exists matches the
// idempotent semantics the rest of the engine expects of a task re-run.
type Mkdir struct {
	Path string
}

func (m Mkdir) Kind() Kind { return KindMkdir }

func (m Mkdir) KnownInputs() []res.Resource { return nil }

func (m Mkdir) KnownOutputs() []res.Resource {
	return []res.Resource{res.Dir(m.Path)}
}

func (m Mkdir) String() string { return fmt.Sprintf("makedir %s", m.Path) }

func (m Mkdir) Key() string { return "makedir\x1f" + m.Path }

func (m Mkdir) Execute(root string, log io.Writer) (Detected, error) {
	abs := filepath.Join(root, m.Path)
	if err := os.MkdirAll(abs, 0755); err != nil {
		return Detected{}, xerrors.Errorf("task: makedir %s: %w", m.Path, err)
	}
	fmt.Fprintf(log, "mkdir -p %s\n", m.Path)
	return Detected{}, nil
}
