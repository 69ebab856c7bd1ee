package task

import (
	"fmt"
	"io"
	"strings"

	"github.com/distr1/button/internal/res"
)

// List runs its tasks in sequence and is the task stored on every build
// graph Task node, even a rule with a single task — this keeps the graph
// construction code in internal/buildgraph uniform regardless of how many
// tasks a rule declares.
type List []Task

func (l List) Kind() Kind { return KindList }

func (l List) KnownInputs() []res.Resource {
	var out []res.Resource
	for _, t := range l {
		out = append(out, t.KnownInputs()...)
	}
	return out
}

func (l List) KnownOutputs() []res.Resource {
	var out []res.Resource
	for _, t := range l {
		out = append(out, t.KnownOutputs()...)
	}
	return out
}

func (l List) String() string {
	if len(l) == 1 {
		return l[0].String()
	}
	return fmt.Sprintf("list of %d tasks", len(l))
}

func (l List) Key() string {
	parts := make([]string, len(l))
	for i, t := range l {
		parts[i] = t.Key()
	}
	return "list\x1f" + strings.Join(parts, "\x1e")
}

// Execute runs every task in order, stopping at the first error.
func (l List) Execute(root string, log io.Writer) (Detected, error) {
	var detected Detected
	for _, t := range l {
		d, err := t.Execute(root, log)
		detected.Inputs = append(detected.Inputs, d.Inputs...)
		detected.Outputs = append(detected.Outputs, d.Outputs...)
		if err != nil {
			return detected, err
		}
	}
	return detected, nil
}
