// Package buildgraph specializes internal/graph with the bipartite
// Resource|Task node kinds and Explicit|Implicit edge kinds the build
// engine requires, and enforces the static-validity invariants §3
// mandates: bipartiteness, acyclicity, and at-most-one producer per
// resource.
package buildgraph

import (
	"fmt"
	"sort"

	"github.com/distr1/button/internal/graph"
	"github.com/distr1/button/internal/res"
	"github.com/distr1/button/internal/task"
)

// NodeKind discriminates the two node variants of a bipartite build graph.
type NodeKind uint8

const (
	NodeResource NodeKind = iota
	NodeTask
)

// EdgeKind discriminates edges declared in rules from edges installed
// after a task reports resources it actually touched.
type EdgeKind uint8

const (
	Explicit EdgeKind = iota
	Implicit
)

func (k EdgeKind) String() string {
	if k == Implicit {
		return "implicit"
	}
	return "explicit"
}

// Node is the tagged union of the two node variants. Exactly one of
// Resource/Task is meaningful, selected by Kind.
type Node struct {
	Kind     NodeKind
	Resource res.Resource
	Task     task.Task
}

func (n Node) String() string {
	if n.Kind == NodeResource {
		return n.Resource.String()
	}
	return n.Task.String()
}

func resourceKey(r res.Resource) string { return "r\x1e" + r.Kind.String() + "\x1e" + r.Path }
func taskKey(t task.Task) string        { return "t\x1e" + t.Key() }

// NodeIndex is a stable handle to a node within one Graph instance.
type NodeIndex = graph.NodeIndex

// EdgeIndex identifies an edge by its endpoints.
type EdgeIndex = graph.EdgeIndex

// Graph is the bipartite build graph.
type Graph struct {
	g        *graph.Graph[string, EdgeKind]
	nodes    map[string]Node
	testKeys map[string]bool // task node keys belonging to a Test rule
}

func newGraph() *Graph {
	return &Graph{g: graph.New[string, EdgeKind](), nodes: make(map[string]Node), testKeys: make(map[string]bool)}
}

// IsTest reports whether idx is a task node contributed by a rule marked
// Test.
func (bg *Graph) IsTest(idx NodeIndex) bool {
	n, ok := bg.Node(idx)
	if !ok || n.Kind != NodeTask {
		return false
	}
	return bg.testKeys[taskKey(n.Task)]
}

// TestNodes returns every task node index contributed by a Test rule.
func (bg *Graph) TestNodes() []NodeIndex {
	var out []NodeIndex
	for _, idx := range bg.Nodes() {
		if bg.IsTest(idx) {
			out = append(out, idx)
		}
	}
	return out
}

// AddResource inserts (or looks up) a Resource node.
func (bg *Graph) AddResource(r res.Resource) NodeIndex {
	key := resourceKey(r)
	idx := bg.g.AddNode(key)
	bg.nodes[key] = Node{Kind: NodeResource, Resource: r}
	return idx
}

// AddTask inserts (or looks up) a Task node.
func (bg *Graph) AddTask(t task.Task) NodeIndex {
	key := taskKey(t)
	idx := bg.g.AddNode(key)
	bg.nodes[key] = Node{Kind: NodeTask, Task: t}
	return idx
}

// AddEdge inserts an edge, which must run between a Resource and a Task
// node (in either direction). Bipartiteness is not re-validated here: Build,
// AddImplicitEdge and state's snapshot loader only ever connect a Resource
// to a Task.
func (bg *Graph) AddEdge(from, to NodeIndex, kind EdgeKind) {
	bg.g.AddEdge(from, to, kind)
}

// RemoveEdge deletes the edge identified by idx.
func (bg *Graph) RemoveEdge(idx EdgeIndex) { bg.g.RemoveEdge(idx) }

// RemoveNode deletes the node at idx and its incident edges.
func (bg *Graph) RemoveNode(idx NodeIndex) {
	if n, ok := bg.Node(idx); ok {
		delete(bg.nodes, keyOf(n))
	}
	bg.g.RemoveNode(idx)
}

func keyOf(n Node) string {
	if n.Kind == NodeResource {
		return resourceKey(n.Resource)
	}
	return taskKey(n.Task)
}

// Node returns the payload at idx.
func (bg *Graph) Node(idx NodeIndex) (Node, bool) {
	key, ok := bg.g.Node(idx)
	if !ok {
		return Node{}, false
	}
	n, ok := bg.nodes[key]
	return n, ok
}

// ContainsNodeIndex reports whether idx refers to a live node.
func (bg *Graph) ContainsNodeIndex(idx NodeIndex) bool { return bg.g.ContainsNodeIndex(idx) }

// Nodes returns every live node index.
func (bg *Graph) Nodes() []NodeIndex { return bg.g.Nodes() }

// Edges returns every live edge index.
func (bg *Graph) Edges() []EdgeIndex { return bg.g.Edges() }

// Outgoing/Incoming mirror internal/graph.
func (bg *Graph) Outgoing(idx NodeIndex) []EdgeIndex { return bg.g.Outgoing(idx) }
func (bg *Graph) Incoming(idx NodeIndex) []EdgeIndex { return bg.g.Incoming(idx) }

// RootNodes/TerminalNodes mirror internal/graph.
func (bg *Graph) RootNodes() []NodeIndex     { return bg.g.RootNodes() }
func (bg *Graph) TerminalNodes() []NodeIndex { return bg.g.TerminalNodes() }

// EdgeWeight returns the kind of the edge identified by idx.
func (bg *Graph) EdgeWeight(idx EdgeIndex) (EdgeKind, bool) { return bg.g.EdgeWeight(idx) }

// DFS mirrors internal/graph.
func (bg *Graph) DFS(roots []NodeIndex, visit func(NodeIndex) bool) { bg.g.DFS(roots, visit) }

// Len returns the number of live nodes.
func (bg *Graph) Len() int { return bg.g.Len() }

// Rule is the declarative unit button.json decodes into: a set of input
// resources, a set of output resources, and the ordered list of tasks run
// to produce the outputs from the inputs.
type Rule struct {
	Inputs  []res.Resource
	Outputs []res.Resource
	Tasks   []task.Task

	// Test marks a rule as a test: cmd/button test marks these rules' task
	// nodes pending, so they re-run even when nothing upstream changed.
	Test bool
}

// Race names a resource with more than one producing task.
type Race struct {
	Resource res.Resource
	Count    int
}

func (r Race) Error() string {
	return fmt.Sprintf("resource %s has %d producers", r.Resource, r.Count)
}

// RacesError aggregates every race found during construction.
type RacesError struct{ Races []Race }

func (e *RacesError) Error() string {
	return fmt.Sprintf("button: %d output race(s): %v", len(e.Races), e.Races)
}

// Cycle is one strongly connected component of size >= 2, or a self-loop,
// rendered as the ordered path of nodes forming it.
type Cycle struct{ Nodes []Node }

func (c Cycle) Error() string {
	parts := make([]string, len(c.Nodes))
	for i, n := range c.Nodes {
		parts[i] = n.String()
	}
	return fmt.Sprintf("cycle: %v", parts)
}

// CyclesError aggregates every cycle found during construction.
type CyclesError struct{ Cycles []Cycle }

func (e *CyclesError) Error() string {
	return fmt.Sprintf("button: %d cycle(s) found", len(e.Cycles))
}

// Build constructs a bipartite Graph from rules: a Task node per rule's
// task list, Explicit Resource->Task edges for each input, Explicit
// Task->Resource edges for each output. After every rule is loaded it runs
// the race check, then the cycle check (§4.2); neither may be skipped, and
// both accumulate every offending structure rather than failing fast.
func Build(rules []Rule) (*Graph, error) {
	bg := newGraph()

	for _, rule := range rules {
		// A rule's task list is a single multi-step unit of work; chain the
		// tasks into one composite Task node representing "run these in
		// order", so the bipartite invariant (every edge touches exactly one
		// Resource and one Task node) holds even for multi-task rules.
		t := task.List(rule.Tasks)
		taskIdx := bg.AddTask(t)
		if rule.Test {
			bg.testKeys[taskKey(t)] = true
		}

		for _, in := range rule.Inputs {
			resIdx := bg.AddResource(in)
			bg.AddEdge(resIdx, taskIdx, Explicit)
		}
		for _, out := range rule.Outputs {
			resIdx := bg.AddResource(out)
			bg.AddEdge(taskIdx, resIdx, Explicit)
		}
	}

	if err := checkRaces(bg); err != nil {
		return nil, err
	}
	if err := checkCycles(bg); err != nil {
		return nil, err
	}
	return bg, nil
}

func checkRaces(bg *Graph) error {
	var races []Race
	for _, idx := range bg.Nodes() {
		n, _ := bg.Node(idx)
		if n.Kind != NodeResource {
			continue
		}
		in := bg.Incoming(idx)
		if len(in) >= 2 {
			races = append(races, Race{Resource: n.Resource, Count: len(in)})
		}
	}
	if len(races) == 0 {
		return nil
	}
	sort.Slice(races, func(i, j int) bool { return res.Less(races[i].Resource, races[j].Resource) })
	return &RacesError{Races: races}
}

func checkCycles(bg *Graph) error {
	sccs := bg.g.Cycles()
	if len(sccs) == 0 {
		return nil
	}
	cycles := make([]Cycle, 0, len(sccs))
	for _, scc := range sccs {
		nodes := make([]Node, 0, len(scc))
		for _, idx := range scc {
			if n, ok := bg.Node(idx); ok {
				nodes = append(nodes, n)
			}
		}
		cycles = append(cycles, Cycle{Nodes: nodes})
	}
	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i].Error() < cycles[j].Error()
	})
	return &CyclesError{Cycles: cycles}
}

// AddImplicitEdge installs an Implicit edge discovered post-execution,
// re-validating both the race and cycle invariants against the would-be
// result first. It mutates nothing and returns InvalidEdgesError if the
// edge would introduce either.
func AddImplicitEdge(bg *Graph, from, to NodeIndex, kind EdgeKind) error {
	// Tentatively add, check, and roll back on failure — the graph is
	// small relative to a single task's post-execution bookkeeping, so
	// re-running the two whole-graph checks here is cheap enough not to
	// warrant an incremental variant.
	bg.AddEdge(from, to, kind)
	if err := checkRaces(bg); err != nil {
		bg.RemoveEdge(EdgeIndex{From: from, To: to})
		return &InvalidEdgesError{Edges: []InvalidEdge{{From: from, To: to, Cause: err}}}
	}
	if err := checkCycles(bg); err != nil {
		bg.RemoveEdge(EdgeIndex{From: from, To: to})
		return &InvalidEdgesError{Edges: []InvalidEdge{{From: from, To: to, Cause: err}}}
	}
	return nil
}

// InvalidEdge names one edge installation that was rejected.
type InvalidEdge struct {
	From, To NodeIndex
	Cause    error
}

// InvalidEdgesError aggregates every rejected implicit edge from a single
// task's detection record.
type InvalidEdgesError struct{ Edges []InvalidEdge }

func (e *InvalidEdgesError) Error() string {
	return fmt.Sprintf("button: %d invalid edge(s): %v", len(e.Edges), e.Edges)
}

func (e InvalidEdge) String() string {
	return fmt.Sprintf("%v->%v (%v)", e.From, e.To, e.Cause)
}
