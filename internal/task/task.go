// Package task implements the task model: a tagged union of executable
// steps (external command, batch script, download, mkdir, copy), each
// declaring its a-priori known inputs/outputs and producing a Detected
// record of discovered resources on success.
package task

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/distr1/button/internal/res"
)

// envKey renders an env map deterministically (sorted by key) so Key()
// output is stable regardless of Go's randomized map iteration order.
func envKey(env map[string]string) string {
	if len(env) == 0 {
		return ""
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+env[k])
	}
	return strings.Join(parts, "\x00")
}

func processKey(p Process) string {
	return fmt.Sprintf("%s\x1f%s\x1f%s\x1f%s\x1f%s\x1f%s\x1f%s",
		p.Program, strings.Join(p.Args, "\x00"), p.Cwd, envKey(p.Env), p.Stdin, p.Stdout, p.Stderr)
}

// Kind discriminates the closed set of task variants.
type Kind uint8

const (
	KindCommand Kind = iota
	KindBatchScript
	KindDownload
	KindMkdir
	KindCopy
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindBatchScript:
		return "batch-script"
	case KindDownload:
		return "download"
	case KindMkdir:
		return "makedir"
	case KindCopy:
		return "copy"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Detected is the set of resources a task reports having touched, beyond
// its statically known_inputs/known_outputs, discovered only by running it
// (e.g. parsed from a C compiler's depfile).
type Detected struct {
	Inputs  []res.Resource
	Outputs []res.Resource
}

// Task is the behavior every task variant must implement. Build graph node
// identity comes from Key, not Go equality; Less gives a total order for
// sorted output.
type Task interface {
	Kind() Kind
	// KnownInputs/KnownOutputs are deducible a priori from the task's own
	// parameters (e.g. the program path, redirected stdio files).
	KnownInputs() []res.Resource
	KnownOutputs() []res.Resource
	// Execute runs the task, forwarding combined stdout/stderr to log, and
	// returns the resources it actually touched.
	Execute(root string, log io.Writer) (Detected, error)
	// String renders a human display form (either a configured `display`
	// label or the full invocation).
	String() string
	// Key returns a canonical string encoding every field that makes two
	// task values "the same task" for graph node identity. Task variants
	// hold maps/slices (env, args) and so are not Go-comparable; Key gives
	// the build graph a stable, value-based identity without relying on
	// ==.
	Key() string
}

// Less imposes a total order across task variants: by Kind first, then by
// string form. Two tasks with equal Kind and String compare equal here even
// when their Keys differ (e.g. two commands sharing a Display label).
func Less(a, b Task) bool {
	if a.Kind() != b.Kind() {
		return a.Kind() < b.Kind()
	}
	return a.String() < b.String()
}
