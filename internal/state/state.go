// Package state implements persistent build state: the build graph, the
// pending-work queue, and the per-resource fingerprint map, serialized to
// a single versioned file with crash-safe atomic writes (§4.3).
package state

import (
	"bytes"
	"encoding/gob"
	"io"
	"os"
	"sort"

	"github.com/distr1/button/internal/buildgraph"
	"github.com/distr1/button/internal/res"
	"github.com/distr1/button/internal/task"
	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

// Version is bumped whenever the on-disk schema changes incompatibly. A
// mismatched version (or any load failure) means the stored state is
// discarded and the next build starts from scratch (§4.3, §6).
const Version = "button-state-v1"

func init() {
	// Every concrete task.Task variant must be registered so gob can
	// encode/decode the Task interface field of nodeRecord.
	gob.Register(task.Command{})
	gob.Register(task.BatchScript{})
	gob.Register(task.Download{})
	gob.Register(task.Mkdir{})
	gob.Register(task.Copy{})
	gob.Register(task.List{})
}

// State bundles the four fields §3 specifies: the build graph, the pending
// queue, the fingerprint map, and (implicitly) the version tag checked on
// Load.
type State struct {
	Graph *buildgraph.Graph

	// Pending holds node indices that must be visited on the next
	// traversal regardless of apparent freshness (newly added nodes).
	// Duplicates are tolerated; the traversal engine treats re-enqueues of
	// an already-visited node as a no-op.
	Pending []buildgraph.NodeIndex

	// Fingerprints maps a Resource node index to its last-observed
	// fingerprint. A resource is "owned" by the build once it appears
	// here.
	Fingerprints map[buildgraph.NodeIndex]res.Fingerprint
}

// Empty returns a fresh, empty State — used both for a brand new project
// and as the fallback when Load fails.
func Empty() *State {
	return &State{
		Graph:        emptyGraph(),
		Fingerprints: make(map[buildgraph.NodeIndex]res.Fingerprint),
	}
}

func emptyGraph() *buildgraph.Graph {
	g, _ := buildgraph.Build(nil)
	return g
}

// nodeRecord is the durable, value-keyed encoding of one build graph node.
type nodeRecord struct {
	Kind     buildgraph.NodeKind
	Resource res.Resource
	Task     task.Task
}

// edgeRecord names an edge by the *value keys* of its endpoints, since
// NodeIndex is not meaningful across a save/load round-trip.
type edgeRecord struct {
	FromKey, ToKey string
	Kind           buildgraph.EdgeKind
}

// snapshot is the gob-serialized on-disk representation.
type snapshot struct {
	Version string

	Nodes []nodeRecord
	Edges []edgeRecord

	// PendingKeys/FingerprintsByKey re-key State.Pending/Fingerprints by
	// node value instead of index, for the same reason edges are.
	PendingKeys       []string
	FingerprintsByKey map[string]res.Fingerprint
}

func nodeKey(n nodeRecord) string {
	if n.Kind == buildgraph.NodeResource {
		return "r\x1e" + n.Resource.Kind.String() + "\x1e" + n.Resource.Path
	}
	return "t\x1e" + n.Task.Key()
}

// Save persists s to path atomically: write to a temp sibling file, fsync,
// rename into place (via renameio), exactly as the teacher's
// cmd/distri/build.go and cmd/distri/mirror.go persist build artifacts.
func Save(path string, s *State) error {
	snap := toSnapshot(s)
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return xerrors.Errorf("state: encode: %w", err)
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return xerrors.Errorf("state: save %s: %w", path, err)
	}
	return nil
}

// Load reads path and reconstructs a State. Any failure — I/O, gob
// decode, or a version mismatch — is reported to the caller, which per
// §4.3/§6 must substitute Empty() and force a full rebuild rather than
// treat it as fatal.
func Load(path string) (*State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("state: open %s: %w", path, err)
	}
	defer f.Close()
	return decode(f)
}

func decode(r io.Reader) (*State, error) {
	var snap snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, xerrors.Errorf("state: decode: %w", err)
	}
	if snap.Version != Version {
		return nil, xerrors.Errorf("state: version mismatch: got %q, want %q", snap.Version, Version)
	}
	return fromSnapshot(snap)
}

func toSnapshot(s *State) snapshot {
	snap := snapshot{
		Version:           Version,
		FingerprintsByKey: make(map[string]res.Fingerprint),
	}

	keyByIndex := make(map[buildgraph.NodeIndex]string)
	for _, idx := range s.Graph.Nodes() {
		n, _ := s.Graph.Node(idx)
		rec := nodeRecord{Kind: n.Kind, Resource: n.Resource, Task: n.Task}
		key := nodeKey(rec)
		keyByIndex[idx] = key
		snap.Nodes = append(snap.Nodes, rec)
	}
	sort.Slice(snap.Nodes, func(i, j int) bool { return nodeKey(snap.Nodes[i]) < nodeKey(snap.Nodes[j]) })

	seen := make(map[buildgraph.EdgeIndex]bool)
	for _, idx := range s.Graph.Nodes() {
		for _, e := range s.Graph.Outgoing(idx) {
			if seen[e] {
				continue
			}
			seen[e] = true
			kind, _ := s.Graph.EdgeWeight(e)
			snap.Edges = append(snap.Edges, edgeRecord{
				FromKey: keyByIndex[e.From],
				ToKey:   keyByIndex[e.To],
				Kind:    kind,
			})
		}
	}
	sort.Slice(snap.Edges, func(i, j int) bool {
		if snap.Edges[i].FromKey != snap.Edges[j].FromKey {
			return snap.Edges[i].FromKey < snap.Edges[j].FromKey
		}
		return snap.Edges[i].ToKey < snap.Edges[j].ToKey
	})

	for _, idx := range dedupIndices(s.Pending) {
		if key, ok := keyByIndex[idx]; ok {
			snap.PendingKeys = append(snap.PendingKeys, key)
		}
	}

	for idx, fp := range s.Fingerprints {
		if key, ok := keyByIndex[idx]; ok {
			snap.FingerprintsByKey[key] = fp
		}
	}

	return snap
}

func dedupIndices(idxs []buildgraph.NodeIndex) []buildgraph.NodeIndex {
	seen := make(map[buildgraph.NodeIndex]bool, len(idxs))
	out := make([]buildgraph.NodeIndex, 0, len(idxs))
	for _, idx := range idxs {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out
}

func fromSnapshot(snap snapshot) (*State, error) {
	g, _ := buildgraph.Build(nil)
	indexByKey := make(map[string]buildgraph.NodeIndex, len(snap.Nodes))

	for _, n := range snap.Nodes {
		var idx buildgraph.NodeIndex
		if n.Kind == buildgraph.NodeResource {
			idx = g.AddResource(n.Resource)
		} else {
			idx = g.AddTask(n.Task)
		}
		indexByKey[nodeKey(n)] = idx
	}

	for _, e := range snap.Edges {
		from, ok1 := indexByKey[e.FromKey]
		to, ok2 := indexByKey[e.ToKey]
		if !ok1 || !ok2 {
			return nil, xerrors.Errorf("state: edge %s->%s refers to unknown node", e.FromKey, e.ToKey)
		}
		g.AddEdge(from, to, e.Kind)
	}

	s := &State{
		Graph:        g,
		Fingerprints: make(map[buildgraph.NodeIndex]res.Fingerprint, len(snap.FingerprintsByKey)),
	}
	for _, key := range snap.PendingKeys {
		if idx, ok := indexByKey[key]; ok {
			s.Pending = append(s.Pending, idx)
		}
	}
	for key, fp := range snap.FingerprintsByKey {
		if idx, ok := indexByKey[key]; ok {
			s.Fingerprints[idx] = fp
		}
	}
	return s, nil
}
