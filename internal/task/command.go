package task

import (
	"fmt"
	"io"
	"time"

	"github.com/distr1/button/internal/res"
)

// Command executes a single external process and applies the configured
// (or auto-detected) input/output detection strategy to its invocation.
type Command struct {
	Process Process
	Display string // human label; falls back to the full invocation
	Retry   *Retry
	Detect  DetectMode
}

func (c Command) Kind() Kind { return KindCommand }

func (c Command) KnownInputs() []res.Resource  { return c.Process.KnownInputs() }
func (c Command) KnownOutputs() []res.Resource { return c.Process.KnownOutputs() }

func (c Command) String() string {
	if c.Display != "" {
		return c.Display
	}
	return DisplayCommand(c.Process.Program, c.Process.Args)
}

func (c Command) Key() string {
	retry := ""
	if c.Retry != nil {
		retry = fmt.Sprintf("%+v", *c.Retry)
	}
	return fmt.Sprintf("command\x1f%s\x1f%s\x1f%s\x1f%s", processKey(c.Process), c.Display, retry, c.Detect)
}

func (c Command) Execute(root string, log io.Writer) (Detected, error) {
	run := func() (Detected, error) {
		return runDetected(c.Detect, c.Process, root, log)
	}
	if c.Retry == nil {
		return run()
	}
	var detected Detected
	err := c.Retry.Call(func() error {
		d, err := run()
		detected = d
		return err
	}, time.Sleep)
	return detected, err
}
