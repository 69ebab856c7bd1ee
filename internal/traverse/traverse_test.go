package traverse

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/distr1/button/internal/buildgraph"
	"github.com/distr1/button/internal/event"
	"github.com/distr1/button/internal/res"
	"github.com/distr1/button/internal/task"
)

func mustWrite(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

func copyGraph(t *testing.T) *buildgraph.Graph {
	t.Helper()
	g, err := buildgraph.Build([]buildgraph.Rule{
		{
			Inputs:  []res.Resource{res.File("in.txt")},
			Outputs: []res.Resource{res.File("out.txt")},
			Tasks:   []task.Task{task.Copy{From: "in.txt", To: "out.txt"}},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestForwardTraversalRunsCopyAndFingerprints(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "in.txt"), "hello")

	g := copyGraph(t)
	bus := event.NewBus()
	defer bus.Close()

	result, err := Run(context.Background(), g, root, nil, nil, 2, bus, Forward)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Failed) != 0 {
		t.Fatalf("unexpected failures: %v", result.Failed)
	}

	out, err := os.ReadFile(filepath.Join(root, "out.txt"))
	if err != nil {
		t.Fatalf("ReadFile(out.txt): %v", err)
	}
	if string(out) != "hello" {
		t.Errorf("out.txt = %q, want %q", out, "hello")
	}

	if len(result.Fingerprints) != 2 {
		t.Errorf("want 2 fingerprints recorded, got %d", len(result.Fingerprints))
	}
	for _, fp := range result.Fingerprints {
		if fp.Missing {
			t.Errorf("fingerprint unexpectedly missing: %+v", fp)
		}
	}
}

func TestForwardTraversalSkipsUnchangedTask(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "in.txt"), "hello")

	g := copyGraph(t)
	bus := event.NewBus()
	defer bus.Close()

	first, err := Run(context.Background(), g, root, nil, nil, 2, bus, Forward)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// Mutate out.txt out-of-band; a correct early-cutoff implementation
	// must not overwrite it on a second run where in.txt is unchanged.
	mustWrite(t, filepath.Join(root, "out.txt"), "sentinel")

	g2 := copyGraph(t)
	if _, err := Run(context.Background(), g2, root, first.Fingerprints, nil, 2, bus, Forward); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "out.txt"))
	if err != nil {
		t.Fatalf("ReadFile(out.txt): %v", err)
	}
	if string(got) != "sentinel" {
		t.Errorf("out.txt = %q, want sentinel to be preserved (task should not have rerun)", got)
	}
}

func TestForwardTraversalMissingSourceIsChecksumError(t *testing.T) {
	root := t.TempDir() // in.txt deliberately absent

	g := copyGraph(t)
	bus := event.NewBus()
	defer bus.Close()

	if _, err := Run(context.Background(), g, root, nil, nil, 2, bus, Forward); err == nil {
		t.Fatal("expected an error for a missing source resource")
	}
}

func TestReverseTraversalDeletesDerivedOutputsOnly(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "in.txt"), "hello")

	g := copyGraph(t)
	bus := event.NewBus()
	defer bus.Close()
	if _, err := Run(context.Background(), g, root, nil, nil, 2, bus, Forward); err != nil {
		t.Fatalf("forward Run: %v", err)
	}

	g2 := copyGraph(t)
	if _, err := Run(context.Background(), g2, root, nil, nil, 2, bus, Reverse); err != nil {
		t.Fatalf("reverse Run: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "out.txt")); !os.IsNotExist(err) {
		t.Errorf("out.txt: want removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "in.txt")); err != nil {
		t.Errorf("in.txt: want preserved (it is a source, not a derived output), stat err = %v", err)
	}
}
