// Command button is an incremental, parallel build tool: it reads a
// button.json describing a bipartite resource/task graph, traverses the
// subgraph whose fingerprints have changed since the last run, and
// persists the result for the next invocation.
package main

import (
	"fmt"
	"os"
)

type cmd func(args []string) error

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintf(os.Stderr, "button: %v\n", err)
		os.Exit(1)
	}
}

func funcmain() error {
	verbs := map[string]cmd{
		"build":  build,
		"clean":  clean,
		"graph":  graphCmd,
		"dump":   dump,
		"replay": replay,
		"test":   test,
	}

	if len(os.Args) < 2 {
		printUsage(verbs)
		return fmt.Errorf("no verb specified")
	}

	verb := os.Args[1]
	if verb == "help" || verb == "-h" || verb == "--help" {
		printUsage(verbs)
		return nil
	}

	fn, ok := verbs[verb]
	if !ok {
		printUsage(verbs)
		return fmt.Errorf("unknown verb %q", verb)
	}
	return fn(os.Args[2:])
}

func printUsage(verbs map[string]cmd) {
	names := []string{"build", "clean", "graph", "dump", "replay", "test"}
	fmt.Fprintln(os.Stderr, "button is a tool for incremental, parallel builds.")
	fmt.Fprintln(os.Stderr, "usage: button <verb> [args]")
	fmt.Fprintln(os.Stderr, "verbs:")
	for _, n := range names {
		if _, ok := verbs[n]; ok {
			fmt.Fprintf(os.Stderr, "  %s\n", n)
		}
	}
}
