// Package facade wires the other internal packages into the two
// operations a button invocation performs: Build (load state, diff
// against the current rules, traverse forward) and Clean (traverse
// backward, deleting derived outputs).
package facade

import (
	"context"
	"os"

	"github.com/distr1/button/internal/buildgraph"
	"github.com/distr1/button/internal/buttonenv"
	"github.com/distr1/button/internal/event"
	"github.com/distr1/button/internal/res"
	"github.com/distr1/button/internal/rules"
	"github.com/distr1/button/internal/state"
	"github.com/distr1/button/internal/traverse"
	"golang.org/x/xerrors"
)

// Options configures a Build or Clean run.
type Options struct {
	Workers int
	Sinks   []event.Sink
}

// BuildResult is what a Build call returns for a caller to report or log.
type BuildResult struct {
	NodesVisited int
	Failed       []buildgraph.NodeIndex
}

// Build loads the project's persisted state, reconciles it against the
// current button.json (nodes absent from the previous graph are forced to
// run), traverses forward, and persists the updated state. Nodes removed
// from the rules are dropped from the graph; their outputs are not deleted.
func Build(ctx context.Context, p *buttonenv.Project, opts Options) (BuildResult, error) {
	if err := p.EnsureDir(); err != nil {
		return BuildResult{}, err
	}

	rs, err := rules.Load(p.RulesPath)
	if err != nil {
		return BuildResult{}, err
	}
	newGraph, err := buildgraph.Build(rs)
	if err != nil {
		return BuildResult{}, err
	}

	prev, err := loadOrEmpty(p.StatePath)
	if err != nil {
		return BuildResult{}, err
	}

	pending := reconcile(prev.Graph, newGraph)

	bus := event.NewBus(opts.Sinks...)
	defer bus.Close()
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	bus.Publish(event.Event{Kind: event.KindBeginBuild, Total: newGraph.Len()})

	fingerprints := carryForwardFingerprints(prev, newGraph)

	result, runErr := traverse.Run(ctx, newGraph, p.Root, fingerprints, pending, workers, bus, traverse.Forward)

	done := newGraph.Len() - len(result.Failed)
	bus.Publish(event.Event{Kind: event.KindEndBuild, Total: newGraph.Len(), Done: done, Err: runErr})

	next := &state.State{Graph: newGraph, Fingerprints: result.Fingerprints}
	if saveErr := state.Save(p.StatePath, next); saveErr != nil && runErr == nil {
		return BuildResult{NodesVisited: done, Failed: result.Failed}, saveErr
	}

	return BuildResult{NodesVisited: done, Failed: result.Failed}, runErr
}

// Test runs Build, then forces every task node belonging to a rule marked
// Test to re-execute regardless of fingerprint state — the equivalent of
// seeding the traversal engine from the test rules as an extra root set,
// without perturbing the fingerprints a plain Build would otherwise record
// for them.
func Test(ctx context.Context, p *buttonenv.Project, opts Options) (BuildResult, error) {
	result, err := Build(ctx, p, opts)
	if err != nil {
		return result, err
	}

	rs, err := rules.Load(p.RulesPath)
	if err != nil {
		return result, err
	}
	g, err := buildgraph.Build(rs)
	if err != nil {
		return result, err
	}
	testNodes := g.TestNodes()
	if len(testNodes) == 0 {
		return result, xerrors.Errorf("facade: no rule is tagged test")
	}

	prev, err := loadOrEmpty(p.StatePath)
	if err != nil {
		return result, err
	}
	fingerprints := carryForwardFingerprints(prev, g)
	pending := make(map[buildgraph.NodeIndex]bool, len(testNodes))
	for _, idx := range testNodes {
		pending[idx] = true
	}

	bus := event.NewBus(opts.Sinks...)
	defer bus.Close()
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	bus.Publish(event.Event{Kind: event.KindBeginBuild, Total: g.Len()})
	testResult, runErr := traverse.Run(ctx, g, p.Root, fingerprints, pending, workers, bus, traverse.Forward)
	done := g.Len() - len(testResult.Failed)
	bus.Publish(event.Event{Kind: event.KindEndBuild, Total: g.Len(), Done: done, Err: runErr})

	return BuildResult{NodesVisited: done, Failed: testResult.Failed}, runErr
}

// Clean traverses the current rules' graph in reverse, deleting every
// derived output, and clears the persisted fingerprint table so the next
// Build starts from scratch.
func Clean(ctx context.Context, p *buttonenv.Project, opts Options) error {
	rs, err := rules.Load(p.RulesPath)
	if err != nil {
		return err
	}
	g, err := buildgraph.Build(rs)
	if err != nil {
		return err
	}

	bus := event.NewBus(opts.Sinks...)
	defer bus.Close()
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if _, err := traverse.Run(ctx, g, p.Root, nil, nil, workers, bus, traverse.Reverse); err != nil {
		return err
	}

	return os.RemoveAll(p.StatePath)
}

// loadOrEmpty loads the persisted state, falling back to an empty one on
// any failure — missing file, I/O error, corrupt encoding, or a version
// mismatch all mean the same thing here: start fresh and rebuild
// everything, which is always safe, just slower.
func loadOrEmpty(path string) (*state.State, error) {
	s, err := state.Load(path)
	if err != nil {
		return state.Empty(), nil
	}
	return s, nil
}

// reconcile compares the previous graph to the new one and returns the
// set of new-graph node indices that must be treated as dirty regardless
// of fingerprint comparison: nodes with no correspondent in the previous
// graph (new rules, or rules whose task Key() changed).
func reconcile(prev, next *buildgraph.Graph) map[buildgraph.NodeIndex]bool {
	pending := make(map[buildgraph.NodeIndex]bool)
	if prev == nil {
		for _, idx := range next.Nodes() {
			pending[idx] = true
		}
		return pending
	}

	prevKeys := make(map[string]bool, prev.Len())
	for _, idx := range prev.Nodes() {
		n, _ := prev.Node(idx)
		prevKeys[nodeIdentity(n)] = true
	}
	for _, idx := range next.Nodes() {
		n, _ := next.Node(idx)
		if !prevKeys[nodeIdentity(n)] {
			pending[idx] = true
		}
	}
	return pending
}

// carryForwardFingerprints re-keys the previous state's fingerprint table
// from the previous graph's node indices to the new graph's, by node
// value, since indices are never meaningful across two separately built
// graphs.
func carryForwardFingerprints(prev *state.State, next *buildgraph.Graph) map[buildgraph.NodeIndex]res.Fingerprint {
	out := make(map[buildgraph.NodeIndex]res.Fingerprint, len(prev.Fingerprints))
	if prev.Graph == nil {
		return out
	}
	for prevIdx, fp := range prev.Fingerprints {
		n, ok := prev.Graph.Node(prevIdx)
		if !ok {
			continue
		}
		if nextIdx, ok := lookupByIdentity(next, n); ok {
			out[nextIdx] = fp
		}
	}
	return out
}

func nodeIdentity(n buildgraph.Node) string {
	if n.Kind == buildgraph.NodeResource {
		return "r\x1e" + n.Resource.Kind.String() + "\x1e" + n.Resource.Path
	}
	return "t\x1e" + n.Task.Key()
}

func lookupByIdentity(g *buildgraph.Graph, n buildgraph.Node) (buildgraph.NodeIndex, bool) {
	target := nodeIdentity(n)
	for _, idx := range g.Nodes() {
		cand, _ := g.Node(idx)
		if nodeIdentity(cand) == target {
			return idx, true
		}
	}
	return 0, false
}
