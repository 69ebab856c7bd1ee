package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/distr1/button/internal/buttonenv"
	"github.com/distr1/button/internal/state"
)

func dump(args []string) error {
	fset := flag.NewFlagSet("dump", flag.ExitOnError)
	dir := fset.String("C", "", "project directory (default: search upward from the working directory)")
	if err := fset.Parse(args); err != nil {
		return err
	}

	p, err := buttonenv.Find(*dir)
	if err != nil {
		return err
	}

	s, err := state.Load(p.StatePath)
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}

	idxs := s.Graph.Nodes()
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })
	for _, idx := range idxs {
		n, ok := s.Graph.Node(idx)
		if !ok {
			continue
		}
		fp, hasFP := s.Fingerprints[idx]
		switch {
		case !hasFP:
			fmt.Fprintf(os.Stdout, "%s\n", n)
		case fp.Missing:
			fmt.Fprintf(os.Stdout, "%s (missing)\n", n)
		default:
			fmt.Fprintf(os.Stdout, "%s %s\n", n, fp)
		}
	}
	return nil
}
