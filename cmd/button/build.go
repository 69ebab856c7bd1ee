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
	"github.com/distr1/button/internal/trace"
)

func build(args []string) error {
	fset := flag.NewFlagSet("build", flag.ExitOnError)
	var (
		dir       = fset.String("C", "", "project directory (default: search upward from the working directory)")
		workers   = fset.Int("j", runtime.NumCPU(), "number of tasks to run in parallel")
		debug     = fset.Bool("debug", false, "print errors with full detail (stack traces, wrapped causes)")
		traceFlag = fset.Bool("trace", false, "write a chrome://tracing-compatible trace of this build's tasks")
	)
	if err := fset.Parse(args); err != nil {
		return err
	}

	if err := buttonenv.RaiseFileLimit(); err != nil {
		fmt.Fprintf(os.Stderr, "button: raising file limit: %v\n", err)
	}

	if *traceFlag {
		fn, err := trace.Enable("build")
		if err != nil {
			return fmt.Errorf("enabling trace: %w", err)
		}
		fmt.Fprintf(os.Stderr, "button: writing trace to %s\n", fn)
	}

	p, err := buttonenv.Find(*dir)
	if err != nil {
		return err
	}
	if err := p.EnsureDir(); err != nil {
		return err
	}

	log, err := event.NewLog(p.LogPath)
	if err != nil {
		return err
	}
	sinks := []event.Sink{event.NewConsole(os.Stdout, *workers), log}

	ctx, cancel := buttonctx.Interruptible()
	defer cancel()

	result, err := facade.Build(ctx, p, facade.Options{Workers: *workers, Sinks: sinks})
	if closeErr := log.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		if *debug {
			return fmt.Errorf("%+v", err)
		}
		return err
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d node(s) failed", len(result.Failed))
	}
	return nil
}
