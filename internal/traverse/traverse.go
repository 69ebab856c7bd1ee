// Package traverse implements the parallel topological traversal engine:
// a worker pool that walks the bipartite build graph from its roots,
// visiting Resource nodes to fingerprint them and Task nodes to execute
// them only when something feeding them actually changed, installing
// implicit edges a task's detected inputs/outputs reveal along the way.
//
// The scheduling loop is the teacher's internal/batch package generalized
// from "one node kind, one dependency relation" to the bipartite
// Resource/Task graph and from "always rebuild" to fingerprint-gated
// incremental rebuilds.
package traverse

import (
	"bytes"
	"context"
	"sync"

	"github.com/distr1/button/internal/buildgraph"
	"github.com/distr1/button/internal/event"
	"github.com/distr1/button/internal/res"
	"github.com/distr1/button/internal/task"
	"github.com/distr1/button/internal/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// Direction selects which way the traversal walks the graph: Forward to
// build (roots are source resources with no producer), Reverse to delete
// derived outputs in safe order (terminal nodes first).
type Direction uint8

const (
	Forward Direction = iota
	Reverse
)

// Result is what one traversal produces: the updated fingerprint table
// (the caller persists this into state.State.Fingerprints) and the set of
// node indices that failed, if any.
type Result struct {
	Fingerprints map[buildgraph.NodeIndex]res.Fingerprint
	Failed       []buildgraph.NodeIndex
}

type visitResult struct {
	idx   buildgraph.NodeIndex
	dirty bool
	err   error
}

// Run walks g in the given direction, starting root is the filesystem
// path resources are resolved relative to. fingerprints is the
// previously observed fingerprint table (read-only baseline); pending
// additionally forces the named nodes to be treated as dirty regardless
// of fingerprint comparison (newly added graph nodes, or a user-requested
// rebuild). workers bounds traversal concurrency. Every event is
// published to bus.
func Run(ctx context.Context, g *buildgraph.Graph, root string, fingerprints map[buildgraph.NodeIndex]res.Fingerprint, pending map[buildgraph.NodeIndex]bool, workers int, bus *event.Bus, dir Direction) (Result, error) {
	if workers < 1 {
		workers = 1
	}
	s := &scheduler{
		g:        g,
		root:     root,
		dir:      dir,
		workers:  workers,
		bus:      bus,
		baseline: fingerprints,
		pending:  pending,
		result:   make(map[buildgraph.NodeIndex]res.Fingerprint, len(fingerprints)),
		dirty:    make(map[buildgraph.NodeIndex]bool),
		failed:   make(map[buildgraph.NodeIndex]bool),
		indegree: make(map[buildgraph.NodeIndex]int),
	}
	for k, v := range fingerprints {
		s.result[k] = v
	}
	return s.run(ctx)
}

type scheduler struct {
	g       *buildgraph.Graph
	root    string
	dir     Direction
	workers int
	bus     *event.Bus

	baseline map[buildgraph.NodeIndex]res.Fingerprint
	pending  map[buildgraph.NodeIndex]bool

	mu       sync.Mutex
	result   map[buildgraph.NodeIndex]res.Fingerprint
	dirty    map[buildgraph.NodeIndex]bool
	failed   map[buildgraph.NodeIndex]bool
	indegree map[buildgraph.NodeIndex]int
}

// predecessors/successors abstract over Direction: Forward walks
// Resource->Task->Resource edges downstream; Reverse walks the same
// edges upstream, so derived outputs are visited (and deleted) before
// the tasks and inputs that produced them.
func (s *scheduler) predecessors(idx buildgraph.NodeIndex) []buildgraph.NodeIndex {
	var out []buildgraph.NodeIndex
	if s.dir == Forward {
		for _, e := range s.g.Incoming(idx) {
			out = append(out, e.From)
		}
	} else {
		for _, e := range s.g.Outgoing(idx) {
			out = append(out, e.To)
		}
	}
	return out
}

func (s *scheduler) successors(idx buildgraph.NodeIndex) []buildgraph.NodeIndex {
	var out []buildgraph.NodeIndex
	if s.dir == Forward {
		for _, e := range s.g.Outgoing(idx) {
			out = append(out, e.To)
		}
	} else {
		for _, e := range s.g.Incoming(idx) {
			out = append(out, e.From)
		}
	}
	return out
}

func (s *scheduler) roots() []buildgraph.NodeIndex {
	if s.dir == Forward {
		return s.g.RootNodes()
	}
	return s.g.TerminalNodes()
}

func (s *scheduler) run(ctx context.Context) (Result, error) {
	total := s.g.Len()
	if total == 0 {
		return Result{Fingerprints: s.result}, nil
	}

	for _, idx := range s.g.Nodes() {
		s.indegree[idx] = len(s.predecessors(idx))
	}

	work := make(chan buildgraph.NodeIndex, total)
	done := make(chan visitResult, total)
	eg, ctx := errgroup.WithContext(ctx)

	for w := 0; w < s.workers; w++ {
		worker := w
		eg.Go(func() error {
			for idx := range work {
				if err := ctx.Err(); err != nil {
					return err
				}
				dirty, err := s.visit(ctx, worker, idx)
				select {
				case done <- visitResult{idx: idx, dirty: dirty, err: err}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	for _, idx := range s.roots() {
		work <- idx
	}

	visited := 0
	go func() {
		defer close(work)
		for visited < total {
			select {
			case r := <-done:
				visited++
				s.mu.Lock()
				if r.err != nil {
					s.failed[r.idx] = true
				} else if r.dirty {
					s.dirty[r.idx] = true
				}
				s.mu.Unlock()

				if r.err != nil {
					visited += s.cascadeFailure(r.idx)
				}

				for _, next := range s.successors(r.idx) {
					s.mu.Lock()
					s.indegree[next]--
					ready := s.indegree[next] == 0 && !s.failed[next]
					alreadyFailed := s.failed[next]
					s.mu.Unlock()
					if alreadyFailed {
						continue
					}
					if ready {
						work <- next
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	err := eg.Wait()

	s.mu.Lock()
	var failedIdx []buildgraph.NodeIndex
	for idx := range s.failed {
		failedIdx = append(failedIdx, idx)
	}
	s.mu.Unlock()

	res := Result{Fingerprints: s.result, Failed: failedIdx}
	if err != nil {
		return res, err
	}
	if len(failedIdx) > 0 {
		return res, xerrors.Errorf("traverse: %d node(s) failed", len(failedIdx))
	}
	return res, nil
}

// cascadeFailure marks every node downstream of a failed node as failed
// too, without visiting it, mirroring the teacher's markFailed: a node
// whose dependency cannot be satisfied can never become ready. It returns
// the number of nodes newly marked, which the caller must add to the
// visited count since those nodes will never be dequeued from work/done.
func (s *scheduler) cascadeFailure(idx buildgraph.NodeIndex) int {
	count := 0
	for _, next := range s.successors(idx) {
		s.mu.Lock()
		already := s.failed[next]
		s.failed[next] = true
		s.mu.Unlock()
		if !already {
			count++
			count += s.cascadeFailure(next)
		}
	}
	return count
}

func (s *scheduler) isDirty(idx buildgraph.NodeIndex) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty[idx] || s.pending[idx]
}

// visit dispatches to the Resource or Task visitor, returning whether the
// node's observable state changed (and so its dependents must be treated
// as dirty too).
func (s *scheduler) visit(ctx context.Context, worker int, idx buildgraph.NodeIndex) (bool, error) {
	n, ok := s.g.Node(idx)
	if !ok {
		return false, xerrors.Errorf("traverse: unknown node %v", idx)
	}
	if n.Kind == buildgraph.NodeResource {
		return s.visitResource(worker, idx, n)
	}
	return s.visitTask(ctx, worker, idx, n)
}

// visitResource fingerprints the resource and compares it against the
// stored baseline. A resource with no producer (a source file) that has
// gone missing is a ChecksumError: the build cannot proceed without it,
// distinct from a derived output simply not having been built yet.
func (s *scheduler) visitResource(worker int, idx buildgraph.NodeIndex, n buildgraph.Node) (bool, error) {
	if s.dir == Reverse {
		return s.deleteResource(idx, n)
	}

	fp, err := n.Resource.State(s.root)
	if err != nil {
		return false, xerrors.Errorf("fingerprint %s: %w", n.Resource, err)
	}

	hasProducer := len(s.g.Incoming(idx)) > 0
	if fp.Missing && !hasProducer {
		s.bus.Publish(event.Event{Kind: event.KindChecksumError, Node: n, Err: xerrors.Errorf("%s: missing source resource", n.Resource)})
		return false, xerrors.Errorf("%s: missing source resource", n.Resource)
	}

	s.mu.Lock()
	prev, had := s.result[idx]
	s.result[idx] = fp
	s.mu.Unlock()

	changed := !had || !prev.Equal(fp)
	return changed, nil
}

func (s *scheduler) deleteResource(idx buildgraph.NodeIndex, n buildgraph.Node) (bool, error) {
	hasProducer := len(s.g.Incoming(idx)) > 0 // a node with no producing task is a source file, not owned by the build
	if !hasProducer {
		return false, nil // source resources are never owned by the build
	}
	if err := n.Resource.Delete(s.root); err != nil {
		return false, xerrors.Errorf("delete %s: %w", n.Resource, err)
	}
	s.bus.Publish(event.Event{Kind: event.KindDelete, Node: n})
	s.mu.Lock()
	delete(s.result, idx)
	s.mu.Unlock()
	return true, nil
}

// visitTask runs the task only if something upstream changed (or it is
// newly added / explicitly pending); otherwise it is a no-op that still
// propagates "unchanged" downstream, the early-cutoff optimization that
// keeps an unaffected branch of the graph from being rebuilt needlessly.
func (s *scheduler) visitTask(ctx context.Context, worker int, idx buildgraph.NodeIndex, n buildgraph.Node) (bool, error) {
	if s.dir == Reverse {
		return false, nil // tasks have nothing to delete; only their outputs do
	}

	dirtyInputs := false
	for _, pred := range s.predecessors(idx) {
		if s.isDirty(pred) {
			dirtyInputs = true
			break
		}
	}
	if !dirtyInputs && !s.pending[idx] {
		return false, nil
	}

	s.bus.Publish(event.Event{Kind: event.KindBeginTask, Worker: worker, Node: n})
	tev := trace.Event(n.String(), worker)

	var buf bytes.Buffer
	logw := &taskOutputWriter{buf: &buf, publish: func(p []byte) {
		s.bus.Publish(event.Event{Kind: event.KindTaskOutput, Worker: worker, Node: n, Output: append([]byte(nil), p...)})
	}}

	detected, err := n.Task.Execute(s.root, logw)
	tev.Done()
	s.bus.Publish(event.Event{Kind: event.KindEndTask, Worker: worker, Node: n, Err: err})
	if err != nil {
		return false, err
	}

	if err := s.installImplicitEdges(idx, detected); err != nil {
		return false, err
	}

	return true, nil
}

// installImplicitEdges adds an Implicit edge for every resource the task
// reported touching beyond its statically known inputs/outputs, rejecting
// (and reporting) any edge that would introduce a race or a cycle. A
// resource newly discovered this way is not itself visited during this
// traversal run (growing the active node set mid-run would require
// resizing the work/done channels and recomputing "total"); it is only
// recorded in g. facade.Build saves g with the state, but it builds each
// run's graph afresh from the rules, so implicit edges do not carry over to
// later builds.
func (s *scheduler) installImplicitEdges(taskIdx buildgraph.NodeIndex, detected task.Detected) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rejected []buildgraph.InvalidEdge
	for _, in := range detected.Inputs {
		resIdx := s.g.AddResource(in)
		if alreadyEdge(s.g, resIdx, taskIdx) {
			continue
		}
		if err := buildgraph.AddImplicitEdge(s.g, resIdx, taskIdx, buildgraph.Implicit); err != nil {
			if ie, ok := err.(*buildgraph.InvalidEdgesError); ok {
				rejected = append(rejected, ie.Edges...)
				continue
			}
			return err
		}
	}
	for _, out := range detected.Outputs {
		resIdx := s.g.AddResource(out)
		if alreadyEdge(s.g, taskIdx, resIdx) {
			continue
		}
		if err := buildgraph.AddImplicitEdge(s.g, taskIdx, resIdx, buildgraph.Implicit); err != nil {
			if ie, ok := err.(*buildgraph.InvalidEdgesError); ok {
				rejected = append(rejected, ie.Edges...)
				continue
			}
			return err
		}
	}
	if len(rejected) > 0 {
		return &buildgraph.InvalidEdgesError{Edges: rejected}
	}
	return nil
}

func alreadyEdge(g *buildgraph.Graph, from, to buildgraph.NodeIndex) bool {
	for _, e := range g.Outgoing(from) {
		if e.To == to {
			return true
		}
	}
	return false
}

// taskOutputWriter forwards every Write as a TaskOutput event while also
// retaining the bytes for any caller that wants the accumulated log.
type taskOutputWriter struct {
	buf     *bytes.Buffer
	publish func([]byte)
}

func (w *taskOutputWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	w.publish(p)
	return len(p), nil
}
