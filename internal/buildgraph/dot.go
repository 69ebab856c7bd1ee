package buildgraph

import (
	"fmt"
	"io"
	"sort"
)

// WriteDOT renders the graph in Graphviz's dot language: resources as
// boxes, tasks as ellipses, implicit edges dashed. No pack library speaks
// dot, so this writes the textual format directly.
func WriteDOT(w io.Writer, bg *Graph) error {
	if _, err := fmt.Fprintln(w, "digraph button {"); err != nil {
		return err
	}
	fmt.Fprintln(w, "\trankdir=LR;")

	idxs := bg.Nodes()
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })

	for _, idx := range idxs {
		n, ok := bg.Node(idx)
		if !ok {
			continue
		}
		shape := "box"
		if n.Kind == NodeTask {
			shape = "ellipse"
		}
		if _, err := fmt.Fprintf(w, "\tn%d [label=%q shape=%s];\n", idx, n.String(), shape); err != nil {
			return err
		}
	}

	edgeIdxs := bg.Edges()
	sort.Slice(edgeIdxs, func(i, j int) bool {
		if edgeIdxs[i].From != edgeIdxs[j].From {
			return edgeIdxs[i].From < edgeIdxs[j].From
		}
		return edgeIdxs[i].To < edgeIdxs[j].To
	})
	for _, e := range edgeIdxs {
		kind, _ := bg.EdgeWeight(e)
		style := ""
		if kind == Implicit {
			style = " [style=dashed]"
		}
		if _, err := fmt.Fprintf(w, "\tn%d -> n%d%s;\n", e.From, e.To, style); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}
