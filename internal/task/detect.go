package task

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/distr1/button/internal/res"
	"golang.org/x/xerrors"
)

// DetectMode selects the input/output discovery strategy applied to a
// command task's invocation.
type DetectMode uint8

const (
	// DetectAuto picks cl/clang/none based on the program's basename.
	DetectAuto DetectMode = iota
	DetectCL
	DetectClang
	DetectNone
)

func (m DetectMode) String() string {
	switch m {
	case DetectCL:
		return "cl"
	case DetectClang:
		return "clang"
	case DetectNone:
		return "none"
	default:
		return "auto"
	}
}

// ParseDetectMode maps a button.json `detect` string to a DetectMode.
func ParseDetectMode(s string) (DetectMode, error) {
	switch s {
	case "", "auto":
		return DetectAuto, nil
	case "cl":
		return DetectCL, nil
	case "clang":
		return DetectClang, nil
	case "none":
		return DetectNone, nil
	default:
		return 0, xerrors.Errorf("task: unknown detect mode %q", s)
	}
}

func resolveAuto(program string) DetectMode {
	base := strings.ToLower(filepath.Base(program))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	switch base {
	case "cl":
		return DetectCL
	case "clang", "clang++", "gcc", "g++", "cc", "c++":
		return DetectClang
	default:
		return DetectNone
	}
}

const includePrefix = "Note: including file: "

// runDetected spawns the process (after mutating argv/env per the chosen
// detection strategy), tees its merged output to log, and returns the
// detected resources.
func runDetected(mode DetectMode, p Process, root string, log io.Writer) (Detected, error) {
	if mode == DetectAuto {
		mode = resolveAuto(p.Program)
	}

	switch mode {
	case DetectCL:
		return runCL(p, root, log)
	case DetectClang:
		return runClang(p, root, log)
	default:
		return runPlain(p, root, log)
	}
}

func runPlain(p Process, root string, log io.Writer) (Detected, error) {
	argv, cleanup, err := prepareArgs(p.Args)
	if err != nil {
		return Detected{}, err
	}
	defer cleanup()

	sp, err := p.spawn(root, argv)
	if err != nil {
		return Detected{}, err
	}
	if sp.reader != nil {
		io.Copy(log, sp.reader)
	}
	if err := sp.wait(); err != nil {
		return Detected{}, xerrors.Errorf("task: %s: %w", DisplayCommand(p.Program, p.Args), err)
	}
	return Detected{}, nil
}

func runCL(p Process, root string, log io.Writer) (Detected, error) {
	args := append(append([]string{}, p.Args...), "/showIncludes")
	argv, cleanup, err := prepareArgs(args)
	if err != nil {
		return Detected{}, err
	}
	defer cleanup()

	sp, err := p.spawn(root, argv)
	if err != nil {
		return Detected{}, err
	}

	var detected Detected
	if sp.reader != nil {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return Detected{}, err
		}
		scanner := bufio.NewScanner(io.TeeReader(sp.reader, log))
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, includePrefix) {
				continue
			}
			include := strings.TrimSpace(strings.TrimPrefix(line, includePrefix))
			abs, err := filepath.Abs(include)
			if err != nil {
				continue
			}
			rel, err := filepath.Rel(absRoot, abs)
			if err != nil || strings.HasPrefix(rel, "..") {
				continue // outside the project root: a system dependency
			}
			if strings.EqualFold(filepath.Ext(rel), ".tlh") {
				// .tlh is generated by #import, not read by it.
				detected.Outputs = append(detected.Outputs, res.File(rel))
			} else {
				detected.Inputs = append(detected.Inputs, res.File(rel))
			}
		}
	}
	if err := sp.wait(); err != nil {
		return Detected{}, xerrors.Errorf("task: %s: %w", DisplayCommand(p.Program, p.Args), err)
	}
	return detected, nil
}

func runClang(p Process, root string, log io.Writer) (Detected, error) {
	depfile, err := os.CreateTemp("", "button-depfile-*.d")
	if err != nil {
		return Detected{}, xerrors.Errorf("task: depfile: %w", err)
	}
	depPath := depfile.Name()
	depfile.Close()
	defer os.Remove(depPath)

	args := append(append([]string{}, p.Args...), "-MMD", "-MF", depPath)
	argv, cleanup, err := prepareArgs(args)
	if err != nil {
		return Detected{}, err
	}
	defer cleanup()

	sp, err := p.spawn(root, argv)
	if err != nil {
		return Detected{}, err
	}
	if sp.reader != nil {
		io.Copy(log, sp.reader)
	}
	if err := sp.wait(); err != nil {
		return Detected{}, xerrors.Errorf("task: %s: %w", DisplayCommand(p.Program, p.Args), err)
	}

	prereqs, err := parseMakeDepfile(depPath)
	if err != nil {
		return Detected{}, xerrors.Errorf("task: parse depfile: %w", err)
	}
	var detected Detected
	for _, pr := range prereqs {
		detected.Inputs = append(detected.Inputs, res.File(pr))
	}
	return detected, nil
}

// parseMakeDepfile parses a Makefile-format dependency file as produced by
// `-MMD -MF`: "target: prereq1 prereq2 \\\n  prereq3 ...". Only the
// prerequisites are returned.
func parseMakeDepfile(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	s := strings.ReplaceAll(string(b), "\\\n", " ")
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return nil, nil
	}
	fields := strings.Fields(s[colon+1:])
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, filepath.Clean(f))
	}
	return out, nil
}
