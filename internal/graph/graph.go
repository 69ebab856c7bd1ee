// Package graph implements a generic directed graph primitive keyed by
// stable node indices, layered on top of gonum's graph/simple and
// graph/topo packages for SCC discovery and topological iteration — the
// same machinery the teacher's batch scheduler (internal/batch) already
// uses to order package builds.
//
// Node and edge identity is by value: adding an already-present value
// collapses onto the existing node/edge rather than creating a duplicate.
// Indices are stable within one Graph instance but not across instances;
// cross-graph correspondence (DiffComparable) uses value-equality lookups.
package graph

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// NodeIndex is a stable handle to a node within one Graph instance.
type NodeIndex int64

// EdgeIndex identifies an edge by its endpoints. Parallel edges between the
// same ordered pair are not supported — a second Add collapses onto the
// first (replacement semantics), matching AddEdge's contract below.
type EdgeIndex struct {
	From, To NodeIndex
}

// idNode is the minimal gonum graph.Node implementation backing every
// entry in the node table.
type idNode int64

func (n idNode) ID() int64 { return int64(n) }

// Graph is a generic directed graph over a comparable node-payload type N
// and an edge-payload type W.
type Graph[N comparable, W any] struct {
	g *simple.DirectedGraph

	byValue map[N]NodeIndex
	payload map[NodeIndex]N
	deleted map[NodeIndex]bool

	edgeWeight map[EdgeIndex]W

	nextID int64
}

// New returns an empty graph.
func New[N comparable, W any]() *Graph[N, W] {
	return &Graph[N, W]{
		g:          simple.NewDirectedGraph(),
		byValue:    make(map[N]NodeIndex),
		payload:    make(map[NodeIndex]N),
		deleted:    make(map[NodeIndex]bool),
		edgeWeight: make(map[EdgeIndex]W),
	}
}

// AddNode inserts n, or returns the index of the existing equal node.
func (g *Graph[N, W]) AddNode(n N) NodeIndex {
	if idx, ok := g.byValue[n]; ok {
		return idx
	}
	idx := NodeIndex(g.nextID)
	g.nextID++
	g.byValue[n] = idx
	g.payload[idx] = n
	g.g.AddNode(idNode(idx))
	return idx
}

// LookupNode returns the index of n, if present.
func (g *Graph[N, W]) LookupNode(n N) (NodeIndex, bool) {
	idx, ok := g.byValue[n]
	return idx, ok
}

// Node returns the payload stored at idx.
func (g *Graph[N, W]) Node(idx NodeIndex) (N, bool) {
	n, ok := g.payload[idx]
	return n, ok
}

// ContainsNodeIndex reports whether idx refers to a live node.
func (g *Graph[N, W]) ContainsNodeIndex(idx NodeIndex) bool {
	_, ok := g.payload[idx]
	return ok
}

// RemoveNode deletes the node at idx and every incident edge. Indices are
// never reused, so stale references outlive the removal as tombstones.
func (g *Graph[N, W]) RemoveNode(idx NodeIndex) {
	n, ok := g.payload[idx]
	if !ok {
		return
	}
	delete(g.byValue, n)
	delete(g.payload, idx)
	for key := range g.edgeWeight {
		if key.From == idx || key.To == idx {
			delete(g.edgeWeight, key)
		}
	}
	g.g.RemoveNode(int64(idx))
}

// AddEdge inserts an edge from->to with weight w, replacing any existing
// weight for that ordered pair and returning it (ok=false if none existed).
// gonum's simple graphs reject self edges, so a self-loop is recorded only
// in the edge-weight table: Cycles reports it, Outgoing/Incoming do not.
func (g *Graph[N, W]) AddEdge(from, to NodeIndex, w W) (old W, hadOld bool) {
	key := EdgeIndex{From: from, To: to}
	old, hadOld = g.edgeWeight[key]
	g.edgeWeight[key] = w
	if from != to {
		g.g.SetEdge(g.g.NewEdge(idNode(from), idNode(to)))
	}
	return old, hadOld
}

// RemoveEdge deletes the edge identified by idx, if present.
func (g *Graph[N, W]) RemoveEdge(idx EdgeIndex) {
	delete(g.edgeWeight, idx)
	g.g.RemoveEdge(int64(idx.From), int64(idx.To))
}

// ContainsEdgeIndex reports whether idx refers to a live edge.
func (g *Graph[N, W]) ContainsEdgeIndex(idx EdgeIndex) bool {
	_, ok := g.edgeWeight[idx]
	return ok
}

// EdgeWeight returns the payload of the edge identified by idx.
func (g *Graph[N, W]) EdgeWeight(idx EdgeIndex) (W, bool) {
	w, ok := g.edgeWeight[idx]
	return w, ok
}

// Nodes returns every live node index, in insertion order.
func (g *Graph[N, W]) Nodes() []NodeIndex {
	out := make([]NodeIndex, 0, len(g.payload))
	for idx := range g.payload {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Edges returns every live edge index, in a deterministic (sorted) order.
func (g *Graph[N, W]) Edges() []EdgeIndex {
	out := make([]EdgeIndex, 0, len(g.edgeWeight))
	for idx := range g.edgeWeight {
		out = append(out, idx)
	}
	sortEdges(out)
	return out
}

func sortEdges(es []EdgeIndex) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].From != es[j].From {
			return es[i].From < es[j].From
		}
		return es[i].To < es[j].To
	})
}

// Outgoing returns (neighbor, edge) pairs for every edge idx -> neighbor.
func (g *Graph[N, W]) Outgoing(idx NodeIndex) []EdgeIndex {
	it := g.g.From(int64(idx))
	var out []EdgeIndex
	for it.Next() {
		out = append(out, EdgeIndex{From: idx, To: NodeIndex(it.Node().ID())})
	}
	sortEdges(out)
	return out
}

// Incoming returns (neighbor, edge) pairs for every edge neighbor -> idx.
func (g *Graph[N, W]) Incoming(idx NodeIndex) []EdgeIndex {
	it := g.g.To(int64(idx))
	var out []EdgeIndex
	for it.Next() {
		out = append(out, EdgeIndex{From: NodeIndex(it.Node().ID()), To: idx})
	}
	sortEdges(out)
	return out
}

// RootNodes returns nodes with no incoming edges.
func (g *Graph[N, W]) RootNodes() []NodeIndex {
	var out []NodeIndex
	for _, idx := range g.Nodes() {
		if g.g.To(int64(idx)).Len() == 0 {
			out = append(out, idx)
		}
	}
	return out
}

// TerminalNodes returns nodes with no outgoing edges.
func (g *Graph[N, W]) TerminalNodes() []NodeIndex {
	var out []NodeIndex
	for _, idx := range g.Nodes() {
		if g.g.From(int64(idx)).Len() == 0 {
			out = append(out, idx)
		}
	}
	return out
}

// TarjanSCC returns every strongly connected component via gonum's
// topo.TarjanSCC, each emitted in the reverse-topological order gonum
// produces. Components of size >= 2, and single-node self-loops, are
// cycles.
func (g *Graph[N, W]) TarjanSCC() [][]NodeIndex {
	sccs := topo.TarjanSCC(g.g)
	out := make([][]NodeIndex, len(sccs))
	for i, scc := range sccs {
		comp := make([]NodeIndex, len(scc))
		for j, n := range scc {
			comp[j] = NodeIndex(n.ID())
		}
		out[i] = comp
	}
	return out
}

// hasSelfLoop reports whether idx has an edge to itself.
func (g *Graph[N, W]) hasSelfLoop(idx NodeIndex) bool {
	_, ok := g.edgeWeight[EdgeIndex{From: idx, To: idx}]
	return ok
}

// Cycles returns every SCC that constitutes a cycle: size >= 2, or a
// single node with a self-loop.
func (g *Graph[N, W]) Cycles() [][]NodeIndex {
	var out [][]NodeIndex
	for _, scc := range g.TarjanSCC() {
		if len(scc) >= 2 || (len(scc) == 1 && g.hasSelfLoop(scc[0])) {
			out = append(out, scc)
		}
	}
	return out
}

// DFS lazily walks nodes reachable from roots in depth-first order,
// invoking visit once per node the first time it is reached. Stops early
// if visit returns false.
func (g *Graph[N, W]) DFS(roots []NodeIndex, visit func(NodeIndex) bool) {
	seen := make(map[NodeIndex]bool)
	var stack []NodeIndex
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		if !visit(n) {
			return
		}
		out := g.Outgoing(n)
		for i := len(out) - 1; i >= 0; i-- {
			if !seen[out[i].To] {
				stack = append(stack, out[i].To)
			}
		}
	}
}

// Delta is the by-value set difference DiffComparable computes between a
// left and a right graph: nodes/edges unique to each side. Node values are compared with
// ==; edge identity is the pair of node *values* (not indices) plus weight,
// since indices are not meaningful across graph instances.
type Delta[N comparable, W comparable] struct {
	LeftOnlyNodes, RightOnlyNodes []N
	LeftOnlyEdges, RightOnlyEdges []ValueEdge[N, W]
}

// ValueEdge names an edge by the values of its endpoints rather than by
// index, for cross-graph comparison.
type ValueEdge[N comparable, W comparable] struct {
	From, To N
	Weight   W
}

// DiffComparable computes Diff for graphs whose edge weight type is itself
// comparable (required to deduplicate/compare edges by value).
func DiffComparable[N comparable, W comparable](left, right *Graph[N, W]) Delta[N, W] {
	var d Delta[N, W]

	rightNodes := make(map[N]bool, len(right.payload))
	for _, n := range right.payload {
		rightNodes[n] = true
	}
	for _, n := range left.payload {
		if !rightNodes[n] {
			d.LeftOnlyNodes = append(d.LeftOnlyNodes, n)
		}
	}
	leftNodes := make(map[N]bool, len(left.payload))
	for _, n := range left.payload {
		leftNodes[n] = true
	}
	for _, n := range right.payload {
		if !leftNodes[n] {
			d.RightOnlyNodes = append(d.RightOnlyNodes, n)
		}
	}

	leftEdges := valueEdges(left)
	rightEdges := valueEdges(right)
	rightSet := make(map[ValueEdge[N, W]]bool, len(rightEdges))
	for _, e := range rightEdges {
		rightSet[e] = true
	}
	for _, e := range leftEdges {
		if !rightSet[e] {
			d.LeftOnlyEdges = append(d.LeftOnlyEdges, e)
		}
	}
	leftSet := make(map[ValueEdge[N, W]]bool, len(leftEdges))
	for _, e := range leftEdges {
		leftSet[e] = true
	}
	for _, e := range rightEdges {
		if !leftSet[e] {
			d.RightOnlyEdges = append(d.RightOnlyEdges, e)
		}
	}

	sortNodes(d.LeftOnlyNodes)
	sortNodes(d.RightOnlyNodes)

	return d
}

// sortNodes is a no-op hook kept for symmetry; callers needing deterministic
// diagnostic order should sort with a domain-specific Less (see res.Less,
// task.Less) after calling DiffComparable.
func sortNodes[N comparable](_ []N) {}

func valueEdges[N comparable, W comparable](g *Graph[N, W]) []ValueEdge[N, W] {
	out := make([]ValueEdge[N, W], 0, len(g.edgeWeight))
	for idx, w := range g.edgeWeight {
		fromVal, ok1 := g.payload[idx.From]
		toVal, ok2 := g.payload[idx.To]
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, ValueEdge[N, W]{From: fromVal, To: toVal, Weight: w})
	}
	return out
}

// Len returns the number of live nodes.
func (g *Graph[N, W]) Len() int { return len(g.payload) }

var _ graph.Directed = (*simple.DirectedGraph)(nil) // documents the embedded contract
