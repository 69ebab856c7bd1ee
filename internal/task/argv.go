package task

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"golang.org/x/xerrors"
)

// argLimit is the platform-specific ceiling on a serialized argument vector
// before a response file must be substituted.
func argLimit() int {
	if runtime.GOOS == "windows" {
		return 32 * 1024
	}
	return 128 * 1024
}

func serializedLen(args []string) int {
	n := 0
	for _, a := range args {
		n += len(a) + 1 // + separator/NUL
	}
	return n
}

// responseFile writes args to a temp file and returns a single "@path"
// argument plus a cleanup function. Callers must invoke cleanup once the
// child process has exited.
func responseFile(args []string) (arg string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "button-args-*")
	if err != nil {
		return "", nil, xerrors.Errorf("task: response file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(strings.Join(args, "\n")); err != nil {
		os.Remove(f.Name())
		return "", nil, xerrors.Errorf("task: response file write: %w", err)
	}
	return "@" + f.Name(), func() { os.Remove(f.Name()) }, nil
}

// prepareArgs returns the argv to actually exec: either args unchanged, or
// args collapsed behind a response file when the serialized length would
// exceed the platform limit. The returned cleanup must be called after the
// process exits, even when it is a no-op.
func prepareArgs(args []string) (argv []string, cleanup func(), err error) {
	if serializedLen(args) <= argLimit() {
		return args, func() {}, nil
	}
	rf, cleanup, err := responseFile(args)
	if err != nil {
		return nil, nil, err
	}
	return []string{rf}, cleanup, nil
}

func quoteArg(a string) string {
	if strings.ContainsAny(a, " \t\"") {
		return fmt.Sprintf("%q", a)
	}
	return a
}

// DisplayCommand renders a program+args the way a shell user would type it,
// quoting arguments that contain whitespace.
func DisplayCommand(program string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteArg(program))
	for _, a := range args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}
