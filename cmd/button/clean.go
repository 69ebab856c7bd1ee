package main

import (
	"flag"
	"os"
	"runtime"

	"github.com/distr1/button/internal/buttonctx"
	"github.com/distr1/button/internal/buttonenv"
	"github.com/distr1/button/internal/event"
	"github.com/distr1/button/internal/facade"
)

func clean(args []string) error {
	fset := flag.NewFlagSet("clean", flag.ExitOnError)
	var (
		dir     = fset.String("C", "", "project directory (default: search upward from the working directory)")
		workers = fset.Int("j", runtime.NumCPU(), "number of deletions to run in parallel")
	)
	if err := fset.Parse(args); err != nil {
		return err
	}

	p, err := buttonenv.Find(*dir)
	if err != nil {
		return err
	}

	sinks := []event.Sink{event.NewConsole(os.Stdout, *workers)}

	ctx, cancel := buttonctx.Interruptible()
	defer cancel()

	return facade.Clean(ctx, p, facade.Options{Workers: *workers, Sinks: sinks})
}
