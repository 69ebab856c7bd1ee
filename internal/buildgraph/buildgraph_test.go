package buildgraph

import (
	"testing"

	"github.com/distr1/button/internal/res"
	"github.com/distr1/button/internal/task"
)

func cmd(program string, args ...string) task.Task {
	return task.Command{Process: task.Process{Program: program, Args: args}, Detect: task.DetectNone}
}

func TestThreeRuleCBuild(t *testing.T) {
	rules := []Rule{
		{
			Inputs:  []res.Resource{res.File("foo.c"), res.File("foo.h")},
			Outputs: []res.Resource{res.File("foo.o")},
			Tasks:   []task.Task{cmd("gcc", "-c", "foo.c", "-o", "foo.o")},
		},
		{
			Inputs:  []res.Resource{res.File("bar.c"), res.File("foo.h")},
			Outputs: []res.Resource{res.File("bar.o")},
			Tasks:   []task.Task{cmd("gcc", "-c", "bar.c", "-o", "bar.o")},
		},
		{
			Inputs:  []res.Resource{res.File("foo.o"), res.File("bar.o")},
			Outputs: []res.Resource{res.File("foobar")},
			Tasks:   []task.Task{cmd("gcc", "foo.o", "bar.o", "-o", "foobar")},
		},
	}

	g, err := Build(rules)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var resourceNodes, taskNodes int
	for _, idx := range g.Nodes() {
		n, _ := g.Node(idx)
		if n.Kind == NodeResource {
			resourceNodes++
		} else {
			taskNodes++
		}
	}
	if resourceNodes != 7 {
		t.Errorf("want 7 resource nodes (foo.c,foo.h,bar.c,foo.o,bar.o,foobar + shared foo.h), got %d", resourceNodes)
	}
	if taskNodes != 3 {
		t.Errorf("want 3 task nodes, got %d", taskNodes)
	}
	if cycles := g.g.Cycles(); len(cycles) != 0 {
		t.Errorf("want acyclic graph, got cycles %v", cycles)
	}
}

func TestRaceDetection(t *testing.T) {
	rules := []Rule{
		{
			Inputs:  []res.Resource{res.File("a.c")},
			Outputs: []res.Resource{res.File("bar.o")},
			Tasks:   []task.Task{cmd("gcc", "-c", "a.c", "-o", "bar.o")},
		},
		{
			Inputs:  []res.Resource{res.File("b.c")},
			Outputs: []res.Resource{res.File("bar.o")},
			Tasks:   []task.Task{cmd("gcc", "-c", "b.c", "-o", "bar.o")},
		},
	}

	_, err := Build(rules)
	if err == nil {
		t.Fatal("expected a races error")
	}
	racesErr, ok := err.(*RacesError)
	if !ok {
		t.Fatalf("expected *RacesError, got %T: %v", err, err)
	}
	if len(racesErr.Races) != 1 || racesErr.Races[0].Resource.Path != "bar.o" || racesErr.Races[0].Count != 2 {
		t.Fatalf("unexpected races: %+v", racesErr.Races)
	}
}

func TestCycleDetection(t *testing.T) {
	rules := []Rule{
		{
			Inputs:  []res.Resource{res.File("foo.c")},
			Outputs: []res.Resource{res.File("foo.c")}, // self-referential
			Tasks:   []task.Task{cmd("touch", "foo.c")},
		},
	}

	_, err := Build(rules)
	if err == nil {
		t.Fatal("expected a cycles error")
	}
	cyclesErr, ok := err.(*CyclesError)
	if !ok {
		t.Fatalf("expected *CyclesError, got %T: %v", err, err)
	}
	if len(cyclesErr.Cycles) != 1 {
		t.Fatalf("want 1 cycle, got %d: %v", len(cyclesErr.Cycles), cyclesErr.Cycles)
	}
	found := false
	for _, n := range cyclesErr.Cycles[0].Nodes {
		if n.Kind == NodeResource && n.Resource.Path == "foo.c" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected cycle to include foo.c, got %v", cyclesErr.Cycles[0])
	}
}

func TestAddImplicitEdgeRejectsNewRace(t *testing.T) {
	rules := []Rule{
		{
			Inputs:  []res.Resource{res.File("a.c")},
			Outputs: []res.Resource{res.File("a.o")},
			Tasks:   []task.Task{cmd("gcc", "-c", "a.c", "-o", "a.o")},
		},
		{
			Inputs:  nil,
			Outputs: []res.Resource{res.File("gen.h")},
			Tasks:   []task.Task{cmd("gen", "gen.h")},
		},
	}
	g, err := Build(rules)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	aTaskIdx, ok := g.g.LookupNode(taskKey(task.List{cmd("gcc", "-c", "a.c", "-o", "a.o")}))
	if !ok {
		t.Fatal("expected a.o task node present")
	}
	genHIdx, ok := g.g.LookupNode(resourceKey(res.File("gen.h")))
	if !ok {
		t.Fatal("expected gen.h resource node present")
	}
	// gen.h already has a producer (the "gen" task); adding a second
	// implicit producer edge must be rejected as a race.
	if err := AddImplicitEdge(g, aTaskIdx, genHIdx, Implicit); err == nil {
		t.Fatal("expected implicit edge introducing a race to be rejected")
	}
}
