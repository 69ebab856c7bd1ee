package buildgraph

import (
	"bytes"
	"strings"
	"testing"

	"github.com/distr1/button/internal/res"
	"github.com/distr1/button/internal/task"
)

func TestWriteDOTIncludesEveryNodeAndEdge(t *testing.T) {
	rules := []Rule{
		{
			Inputs:  []res.Resource{res.File("foo.c")},
			Outputs: []res.Resource{res.File("foo.o")},
			Tasks:   []task.Task{cmd("gcc", "-c", "foo.c", "-o", "foo.o")},
		},
	}
	g, err := Build(rules)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteDOT(&buf, g); err != nil {
		t.Fatalf("WriteDOT: %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "digraph button {") {
		t.Errorf("missing digraph header: %q", out)
	}
	if !strings.Contains(out, "foo.c") || !strings.Contains(out, "foo.o") {
		t.Errorf("missing resource labels: %q", out)
	}
	if strings.Count(out, "->") != 2 {
		t.Errorf("got %d edges, want 2: %q", strings.Count(out, "->"), out)
	}
}

func TestWriteDOTMarksImplicitEdgesDashed(t *testing.T) {
	g, err := Build(nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	r := g.AddResource(res.File("dep.h"))
	tk := g.AddTask(cmd("gcc"))
	if err := AddImplicitEdge(g, r, tk, Implicit); err != nil {
		t.Fatalf("AddImplicitEdge: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteDOT(&buf, g); err != nil {
		t.Fatalf("WriteDOT: %v", err)
	}
	if !strings.Contains(buf.String(), "style=dashed") {
		t.Errorf("expected a dashed implicit edge, got %q", buf.String())
	}
}
