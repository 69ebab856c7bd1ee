package main

import (
	"flag"
	"os"

	"github.com/distr1/button/internal/buildgraph"
	"github.com/distr1/button/internal/buttonenv"
	"github.com/distr1/button/internal/rules"
)

func graphCmd(args []string) error {
	fset := flag.NewFlagSet("graph", flag.ExitOnError)
	var (
		dir = fset.String("C", "", "project directory (default: search upward from the working directory)")
		out = fset.String("o", "", "output file (default: stdout)")
	)
	if err := fset.Parse(args); err != nil {
		return err
	}

	p, err := buttonenv.Find(*dir)
	if err != nil {
		return err
	}
	rs, err := rules.Load(p.RulesPath)
	if err != nil {
		return err
	}
	bg, err := buildgraph.Build(rs)
	if err != nil {
		return err
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		return buildgraph.WriteDOT(f, bg)
	}
	return buildgraph.WriteDOT(w, bg)
}
