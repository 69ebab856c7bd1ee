package event

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/distr1/button/internal/buildgraph"
	"github.com/distr1/button/internal/res"
	"golang.org/x/xerrors"
)

func resourceNode(path string) buildgraph.Node {
	return buildgraph.Node{Kind: buildgraph.NodeResource, Resource: res.File(path)}
}

func TestBusPublishesInOrder(t *testing.T) {
	var got []Kind
	bus := NewBus(SinkFunc(func(e Event) { got = append(got, e.Kind) }))
	bus.Publish(Event{Kind: KindBeginBuild, Total: 1})
	bus.Publish(Event{Kind: KindBeginTask, Node: resourceNode("a.o")})
	bus.Publish(Event{Kind: KindEndTask, Node: resourceNode("a.o")})
	bus.Publish(Event{Kind: KindEndBuild, Total: 1, Done: 1})
	bus.Close() // wait for the dispatcher goroutine to drain before inspecting got

	want := []Kind{KindBeginBuild, KindBeginTask, KindEndTask, KindEndBuild}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestConsoleNonTerminalDoesNotPanic(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, 2)
	c.Handle(Event{Kind: KindBeginBuild, Total: 3})
	c.Handle(Event{Kind: KindBeginTask, Worker: 0, Node: resourceNode("a.o")})
	c.Handle(Event{Kind: KindTaskOutput, Worker: 0, Node: resourceNode("a.o"), Output: []byte("compiling\n")})
	c.Handle(Event{Kind: KindEndTask, Worker: 0, Node: resourceNode("a.o"), Err: xerrors.New("boom")})
	c.Handle(Event{Kind: KindEndBuild, Total: 3, Done: 1, Err: xerrors.New("build failed")})

	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("FAILED")) {
		t.Errorf("expected failure output, got %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("compiling")) {
		t.Errorf("expected buffered task output to be flushed on failure, got %q", out)
	}
}

func TestLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log")

	l, err := NewLog(path)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	l.Handle(Event{Kind: KindBeginBuild, Total: 2})
	l.Handle(Event{Kind: KindBeginTask, Node: resourceNode("a.o")})
	l.Handle(Event{Kind: KindEndTask, Node: resourceNode("a.o")})
	l.Handle(Event{Kind: KindEndBuild, Total: 2, Done: 2})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events, err := ReadLog(path)
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[0].Kind != KindBeginBuild || events[3].Kind != KindEndBuild {
		t.Errorf("unexpected event sequence: %+v", events)
	}
}

// TestLogSurvivesTruncationAfterLastFlush exercises the crash-recovery
// property spec.md demands of the log format: every Handle call flushes
// its record to disk immediately, so a reader can recover everything up
// through the last completed Handle even if the log was never Close'd
// (the process was killed mid-build) or its tail was cut off afterward.
func TestLogSurvivesTruncationAfterLastFlush(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log")

	l, err := NewLog(path)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	l.Handle(Event{Kind: KindBeginBuild, Total: 1})
	l.Handle(Event{Kind: KindBeginTask, Node: resourceNode("a.o")})
	l.Handle(Event{Kind: KindEndTask, Node: resourceNode("a.o")})
	// No Close: simulates a build killed before it could finalize the log.

	full, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	truncated := full[:len(full)-1]

	events, err := decodeLog(bytes.NewReader(truncated))
	if err != nil {
		t.Fatalf("decodeLog: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected at least the BeginBuild record to survive truncation")
	}
	if events[0].Kind != KindBeginBuild {
		t.Errorf("events[0].Kind = %v, want KindBeginBuild", events[0].Kind)
	}
}
