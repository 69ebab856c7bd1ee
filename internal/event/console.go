package event

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Console renders build progress as a block of per-worker status lines
// that repaint in place on a terminal, the same redraw-in-place technique
// the teacher's scheduler uses for per-package build status. On a
// non-terminal output (redirected to a file, piped to another program) the
// status block is not drawn, since cursor movement escapes would just
// corrupt the output; only the append-only lines for failed tasks,
// deletions, checksum errors and a failed build are printed.
type Console struct {
	out        io.Writer
	isTerminal bool
	start      time.Time

	mu         sync.Mutex
	status     []string // status[0] is the aggregate line, status[1:] per worker
	lastRepaint time.Time

	buffered map[string][]byte // Node.String() -> accumulated TaskOutput, flushed on failure
}

// NewConsole returns a Console writing to out with workers worker slots.
// isTerminal is normally isatty.IsTerminal(fd), overridable for tests.
func NewConsole(out io.Writer, workers int) *Console {
	isTerm := false
	if f, ok := out.(*os.File); ok {
		isTerm = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Console{
		out:        out,
		isTerminal: isTerm,
		start:      time.Now(),
		status:     make([]string, workers+1),
		buffered:   make(map[string][]byte),
	}
}

func (c *Console) Handle(e Event) {
	switch e.Kind {
	case KindBeginBuild:
		c.mu.Lock()
		c.status[0] = fmt.Sprintf("0 of %d node(s) done", e.Total)
		c.mu.Unlock()
		c.repaint(true)
	case KindBeginTask:
		c.setWorker(e.Worker, "building "+e.Node.String())
	case KindTaskOutput:
		c.mu.Lock()
		key := e.Node.String()
		c.buffered[key] = append(c.buffered[key], e.Output...)
		c.mu.Unlock()
	case KindEndTask:
		if e.Err != nil {
			c.mu.Lock()
			out := c.buffered[e.Node.String()]
			delete(c.buffered, e.Node.String())
			c.mu.Unlock()
			fmt.Fprintf(c.out, "FAILED: %s: %v\n", e.Node, e.Err)
			if len(out) > 0 {
				c.out.Write(out)
			}
		} else {
			c.mu.Lock()
			delete(c.buffered, e.Node.String())
			c.mu.Unlock()
		}
		c.setWorker(e.Worker, "idle")
	case KindDelete:
		fmt.Fprintf(c.out, "delete: %s\n", e.Node)
	case KindChecksumError:
		fmt.Fprintf(c.out, "checksum error: %s: %v\n", e.Node, e.Err)
	case KindEndBuild:
		elapsed := time.Since(c.start).Round(time.Millisecond)
		c.mu.Lock()
		c.status[0] = fmt.Sprintf("%d of %d node(s) done in %s", e.Done, e.Total, elapsed)
		c.mu.Unlock()
		c.repaint(true)
		if e.Err != nil {
			fmt.Fprintf(c.out, "build failed after %s: %v\n", elapsed, e.Err)
		}
	}
}

func (c *Console) setWorker(worker int, status string) {
	if worker < 0 || worker >= len(c.status)-1 {
		return
	}
	c.mu.Lock()
	c.status[worker+1] = status
	c.mu.Unlock()
	c.repaint(false)
}

// repaint redraws every status line in place, overwriting prior output
// with cursor-up escapes — force bypasses the 100ms throttle so
// begin/end-of-build repaints are never dropped.
func (c *Console) repaint(force bool) {
	if !c.isTerminal {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !force && time.Since(c.lastRepaint) < 100*time.Millisecond {
		return
	}
	c.lastRepaint = time.Now()

	var maxLen int
	for _, line := range c.status {
		if len(line) > maxLen {
			maxLen = len(line)
		}
	}
	var buf bytes.Buffer
	for _, line := range c.status {
		if len(line) < maxLen {
			line += strings.Repeat(" ", maxLen-len(line))
		}
		fmt.Fprintln(&buf, line)
	}
	fmt.Fprintf(&buf, "\033[%dA", len(c.status)) // restore cursor position
	c.out.Write(buf.Bytes())
}
