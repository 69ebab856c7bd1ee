package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/distr1/button/internal/buttonctx"
	"github.com/distr1/button/internal/buttonenv"
	"github.com/distr1/button/internal/event"
	"github.com/distr1/button/internal/facade"
)

func test(args []string) error {
	fset := flag.NewFlagSet("test", flag.ExitOnError)
	var (
		dir     = fset.String("C", "", "project directory (default: search upward from the working directory)")
		workers = fset.Int("j", runtime.NumCPU(), "number of tasks to run in parallel")
	)
	if err := fset.Parse(args); err != nil {
		return err
	}

	p, err := buttonenv.Find(*dir)
	if err != nil {
		return err
	}
	if err := p.EnsureDir(); err != nil {
		return err
	}

	sinks := []event.Sink{event.NewConsole(os.Stdout, *workers)}

	ctx, cancel := buttonctx.Interruptible()
	defer cancel()

	result, err := facade.Test(ctx, p, facade.Options{Workers: *workers, Sinks: sinks})
	if err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d test node(s) failed", len(result.Failed))
	}
	return nil
}
