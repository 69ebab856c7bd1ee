// Package buttonenv locates a project's button directory and raises
// resource limits that a highly parallel build can exhaust, the way the
// teacher's cmd/distri bumps RLIMIT_NOFILE before a fuse-mounted build.
package buttonenv

import (
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

// DirName is the per-project directory button's durable state lives
// under, analogous to .git.
const DirName = ".button"

// StateFileName is the persisted build graph/fingerprint snapshot.
const StateFileName = "state"

// LogFileName is the durable binary event log of the most recent build.
const LogFileName = "log"

// RulesFileName is the default rules document name — the file a project
// root is recognized by, canonically button.json.
const RulesFileName = "button.json"

// Project describes the directories and files one button invocation
// operates on.
type Project struct {
	Root      string // the directory button.json paths are relative to
	Dir       string // Root/.button
	StatePath string // Dir/state
	LogPath   string // Dir/log
	RulesPath string // Root/button.json
}

// Find walks up from dir (os.Getwd() if empty) looking for a button.json,
// the way git walks up looking for .git. The first directory containing
// one is the project root.
func Find(dir string) (*Project, error) {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return nil, xerrors.Errorf("buttonenv: getwd: %w", err)
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, xerrors.Errorf("buttonenv: %w", err)
	}
	for {
		candidate := filepath.Join(abs, RulesFileName)
		if _, err := os.Stat(candidate); err == nil {
			return newProject(abs), nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return nil, xerrors.Errorf("buttonenv: no %s found in %s or any parent directory", RulesFileName, dir)
		}
		abs = parent
	}
}

func newProject(root string) *Project {
	d := filepath.Join(root, DirName)
	return &Project{
		Root:      root,
		Dir:       d,
		StatePath: filepath.Join(d, StateFileName),
		LogPath:   filepath.Join(d, LogFileName),
		RulesPath: filepath.Join(root, RulesFileName),
	}
}

// EnsureDir creates Dir if it does not already exist.
func (p *Project) EnsureDir() error {
	if err := os.MkdirAll(p.Dir, 0755); err != nil {
		return xerrors.Errorf("buttonenv: mkdir %s: %w", p.Dir, err)
	}
	return nil
}

