package graph

import "testing"

type edgeKind uint8

const (
	kindA edgeKind = iota
	kindB
)

func TestAddNodeIdempotent(t *testing.T) {
	g := New[string, edgeKind]()
	i1 := g.AddNode("foo")
	i2 := g.AddNode("foo")
	if i1 != i2 {
		t.Fatalf("expected same index for equal values, got %v and %v", i1, i2)
	}
	if g.Len() != 1 {
		t.Fatalf("want 1 node, got %d", g.Len())
	}
}

func TestTarjanSCCDetectsCycle(t *testing.T) {
	g := New[string, edgeKind]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	c := g.AddNode("c")
	g.AddEdge(a, b, kindA)
	g.AddEdge(b, c, kindA)
	g.AddEdge(c, a, kindA)

	cycles := g.Cycles()
	if len(cycles) != 1 || len(cycles[0]) != 3 {
		t.Fatalf("expected one 3-node cycle, got %v", cycles)
	}
}

func TestSelfLoopIsCycle(t *testing.T) {
	g := New[string, edgeKind]()
	a := g.AddNode("a")
	g.AddEdge(a, a, kindA)
	cycles := g.Cycles()
	if len(cycles) != 1 || len(cycles[0]) != 1 {
		t.Fatalf("expected one self-loop cycle, got %v", cycles)
	}
}

func TestAcyclicGraphHasNoCycles(t *testing.T) {
	g := New[string, edgeKind]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	g.AddEdge(a, b, kindA)
	if cycles := g.Cycles(); len(cycles) != 0 {
		t.Fatalf("expected no cycles, got %v", cycles)
	}
}

func TestRootAndTerminalNodes(t *testing.T) {
	g := New[string, edgeKind]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	c := g.AddNode("c")
	g.AddEdge(a, b, kindA)
	g.AddEdge(b, c, kindA)

	roots := g.RootNodes()
	if len(roots) != 1 || roots[0] != a {
		t.Fatalf("want [a], got %v", roots)
	}
	terms := g.TerminalNodes()
	if len(terms) != 1 || terms[0] != c {
		t.Fatalf("want [c], got %v", terms)
	}
}

func TestDiffComparable(t *testing.T) {
	left := New[string, edgeKind]()
	a := left.AddNode("a")
	b := left.AddNode("b")
	left.AddEdge(a, b, kindA)

	right := New[string, edgeKind]()
	rb := right.AddNode("b")
	rc := right.AddNode("c")
	right.AddEdge(rb, rc, kindA)

	d := DiffComparable(left, right)
	if len(d.LeftOnlyNodes) != 1 || d.LeftOnlyNodes[0] != "a" {
		t.Fatalf("want left-only [a], got %v", d.LeftOnlyNodes)
	}
	if len(d.RightOnlyNodes) != 1 || d.RightOnlyNodes[0] != "c" {
		t.Fatalf("want right-only [c], got %v", d.RightOnlyNodes)
	}
	if len(d.LeftOnlyEdges) != 1 || len(d.RightOnlyEdges) != 1 {
		t.Fatalf("want one edge on each side, got %v / %v", d.LeftOnlyEdges, d.RightOnlyEdges)
	}
}

func TestRemoveNodeDropsIncidentEdges(t *testing.T) {
	g := New[string, edgeKind]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	g.AddEdge(a, b, kindA)
	g.RemoveNode(b)
	if len(g.Outgoing(a)) != 0 {
		t.Fatalf("expected no outgoing edges after removing target, got %v", g.Outgoing(a))
	}
	if g.ContainsNodeIndex(b) {
		t.Fatal("expected b to be gone")
	}
}

func TestDFSVisitsReachableOnce(t *testing.T) {
	g := New[string, edgeKind]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	c := g.AddNode("c")
	d := g.AddNode("d") // unreachable from a
	g.AddEdge(a, b, kindA)
	g.AddEdge(a, c, kindA)
	g.AddEdge(b, c, kindA)

	visited := map[NodeIndex]int{}
	g.DFS([]NodeIndex{a}, func(n NodeIndex) bool {
		visited[n]++
		return true
	})
	if visited[a] != 1 || visited[b] != 1 || visited[c] != 1 {
		t.Fatalf("expected each reachable node visited exactly once: %v", visited)
	}
	if _, ok := visited[d]; ok {
		t.Fatalf("unreachable node %v should not be visited", d)
	}
}
