package main

import (
	"flag"
	"os"

	"github.com/distr1/button/internal/buttonenv"
	"github.com/distr1/button/internal/event"
)

func replay(args []string) error {
	fset := flag.NewFlagSet("replay", flag.ExitOnError)
	var (
		dir      = fset.String("C", "", "project directory (default: search upward from the working directory)")
		realtime = fset.Bool("realtime", false, "reproduce the original build's pacing instead of replaying instantaneously")
	)
	if err := fset.Parse(args); err != nil {
		return err
	}

	p, err := buttonenv.Find(*dir)
	if err != nil {
		return err
	}

	events, err := event.ReadLog(p.LogPath)
	if err != nil {
		return err
	}

	console := event.NewConsole(os.Stdout, countWorkers(events))
	event.Replay(events, []event.Sink{console}, *realtime)
	return nil
}

func countWorkers(events []event.Event) int {
	max := 0
	for _, e := range events {
		if e.Worker+1 > max {
			max = e.Worker + 1
		}
	}
	if max == 0 {
		max = 1
	}
	return max
}
