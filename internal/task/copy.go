package task

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/distr1/button/internal/res"
	"golang.org/x/xerrors"
)

// Copy copies From to To, both relative to the project root, preserving
// the source file's mode bits.
type Copy struct {
	From string
	To   string
}

func (c Copy) Kind() Kind { return KindCopy }

func (c Copy) KnownInputs() []res.Resource { return []res.Resource{res.File(c.From)} }

func (c Copy) KnownOutputs() []res.Resource { return []res.Resource{res.File(c.To)} }

func (c Copy) String() string { return fmt.Sprintf("copy %s %s", c.From, c.To) }

func (c Copy) Key() string { return "copy\x1f" + c.From + "\x1f" + c.To }

func (c Copy) Execute(root string, log io.Writer) (Detected, error) {
	src := filepath.Join(root, c.From)
	dst := filepath.Join(root, c.To)

	in, err := os.Open(src)
	if err != nil {
		return Detected{}, xerrors.Errorf("task: copy %s: %w", c.From, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return Detected{}, xerrors.Errorf("task: copy %s: %w", c.From, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return Detected{}, xerrors.Errorf("task: copy %s: %w", c.To, err)
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return Detected{}, xerrors.Errorf("task: copy %s: %w", c.To, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return Detected{}, xerrors.Errorf("task: copy %s -> %s: %w", c.From, c.To, err)
	}
	fmt.Fprintf(log, "copy %s -> %s\n", c.From, c.To)
	return Detected{}, nil
}
